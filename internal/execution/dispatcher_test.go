package execution

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanzoai/node/internal/external"
	"github.com/hanzoai/node/internal/metrics"
	"github.com/hanzoai/node/internal/privacy"
)

func newTestDispatcher(t *testing.T, repo external.ToolRepository, vault external.SecretVault, executors map[RuntimeKind]Executor) *Dispatcher {
	t.Helper()
	gen := privacy.NewGenerator(privacy.ModeSimulation, privacy.Capabilities{SevSnp: true})
	ver := privacy.NewVerifier(privacy.ModeSimulation, nil)
	ctx := privacy.NewSecurityContext(gen, ver, privacy.NewLRUStore(10, nil), nil, true, nil)
	require.NoError(t, ctx.Initialize(privacy.Capabilities{SevSnp: true}, nil))

	policy := privacy.NewPolicyEnforcer(privacy.DefaultTierPolicies(), privacy.NewAuditLog(30, 0, nil), nil)
	m := metrics.New(prometheus.NewRegistry())
	oauth := NewOAuthHandler(vault)

	return NewDispatcher(repo, oauth, ctx, policy, m, executors, "test-app", nil, nil)
}

func TestDispatchNativeToolSucceeds(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{ToolKey: "echo.tool", Runtime: "native", DefaultConfig: map[string]interface{}{"privacy_tier": "Open"}})

	native := NewNativeExecutor(map[string]NativeHandler{
		"echo.tool": func(ctx context.Context, req ExecuteRequest) (interface{}, error) {
			return req.Parameters, nil
		},
	})

	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), map[RuntimeKind]Executor{RuntimeNative: native})
	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "echo.tool", Parameters: map[string]interface{}{"x": 1.0}})

	require.NoError(t, result.Err)
	assert.True(t, result.Succeeded())
}

func TestDispatchUnknownToolFails(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), nil)

	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "missing.tool"})
	assert.Error(t, result.Err)
}

func TestDispatchMissingOAuthTokenReturnsOauthRequired(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{
		ToolKey: "github.issues", Runtime: "native",
		OAuth: []external.OAuthSpec{{Name: "github", AuthorizationURL: "https://github.com/login/oauth/authorize", ClientID: "abc"}},
	})

	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), map[RuntimeKind]Executor{
		RuntimeNative: NewNativeExecutor(nil),
	})
	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "github.issues"})

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "oauth")
}

func TestDispatchMissingRequiredParameterPathFails(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{
		ToolKey: "echo.tool", Runtime: "native",
		DefaultConfig: map[string]interface{}{"privacy_tier": "Open"},
		InputSchema:   map[string]interface{}{"required_paths": []interface{}{"$.message"}},
	})

	native := NewNativeExecutor(map[string]NativeHandler{
		"echo.tool": func(ctx context.Context, req ExecuteRequest) (interface{}, error) { return req.Parameters, nil },
	})
	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), map[RuntimeKind]Executor{RuntimeNative: native})

	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "echo.tool", Parameters: map[string]interface{}{"other": 1.0}})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "required parameter path")

	ok := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "echo.tool", Parameters: map[string]interface{}{"message": "hi"}})
	assert.NoError(t, ok.Err)
}

func TestDispatchUnavailableRuntimeFails(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{ToolKey: "gpu.infer", Runtime: "kubernetes"})

	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), map[RuntimeKind]Executor{})
	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "gpu.infer"})
	assert.Error(t, result.Err)
}

func TestDispatchTierHeuristicDeniesInsufficientTier(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{ToolKey: "ml.inference.run", Runtime: "native"})

	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), map[RuntimeKind]Executor{
		RuntimeNative: NewNativeExecutor(map[string]NativeHandler{
			"ml.inference.run": func(ctx context.Context, req ExecuteRequest) (interface{}, error) { return nil, nil },
		}),
	})
	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "ml.inference.run"})
	assert.Error(t, result.Err, "ml.* heuristic requires GpuCc, context is only at CpuTee")
}

func TestDispatchTimeoutSurfacesAsTimeout(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{ToolKey: "slow.tool", Runtime: "native", DefaultConfig: map[string]interface{}{
		"privacy_tier": "Open", "timeout_seconds": 0.01,
	}})

	blocking := NewNativeExecutor(map[string]NativeHandler{
		"slow.tool": func(ctx context.Context, req ExecuteRequest) (interface{}, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return "done", nil
			}
		},
	})

	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), map[RuntimeKind]Executor{RuntimeNative: blocking})
	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "slow.tool"})

	require.Error(t, result.Err)
	assert.Equal(t, StateFailed, result.State)
}

func TestMergeConfigOverridesWinLastWrite(t *testing.T) {
	defaults := map[string]interface{}{"a": 1, "b": 2}
	overrides := map[string]interface{}{"b": 3, "c": 4}
	merged := mergeConfig(defaults, overrides)

	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 3, merged["b"])
	assert.Equal(t, 4, merged["c"])
}

func TestResolveTierHeuristics(t *testing.T) {
	assert.Equal(t, privacy.CpuTee, resolveTier(nil, "crypto.sign"))
	assert.Equal(t, privacy.GpuCc, resolveTier(nil, "ml.infer"))
	assert.Equal(t, privacy.CpuTee, resolveTier(nil, "secure.vault"))
	assert.Equal(t, privacy.Open, resolveTier(nil, "weather.lookup"))
	assert.Equal(t, privacy.GpuTeeIo, resolveTier(map[string]interface{}{"privacy_tier": "GpuTeeIo"}, "anything"))
}
