package execution

import (
	"context"
	"time"

	"github.com/hanzoai/node/infrastructure/logging"
	"github.com/hanzoai/node/internal/external"
	"github.com/hanzoai/node/internal/metrics"
	"github.com/hanzoai/node/internal/privacy"
	"github.com/hanzoai/node/internal/svcerr"
)

// Dispatcher implements dispatch(invocation, ctx) -> ExecutionResult
// (spec §4.7): tool lookup, config merge, tier resolution, OAuth
// resolution, policy enforcement, executor selection, a wall-clock timeout,
// and a metric observation plus operational log line on every path. The
// dispatcher appends no privacy.AuditLog entry itself.
type Dispatcher struct {
	repo      external.ToolRepository
	oauth     *OAuthHandler
	security  *privacy.SecurityContext
	policy    *privacy.PolicyEnforcer
	metrics   *metrics.Metrics
	executors map[RuntimeKind]Executor
	clock     external.Clock
	log       *logging.Logger

	appID string
}

// NewDispatcher constructs a dispatcher. executors maps RuntimeKind to the
// Executor handling it; an unlisted runtime fails RuntimeUnavailable. log
// may be nil to disable operational logging.
func NewDispatcher(
	repo external.ToolRepository,
	oauth *OAuthHandler,
	security *privacy.SecurityContext,
	policy *privacy.PolicyEnforcer,
	m *metrics.Metrics,
	executors map[RuntimeKind]Executor,
	appID string,
	clk external.Clock,
	log *logging.Logger,
) *Dispatcher {
	if clk == nil {
		clk = external.SystemClock
	}
	return &Dispatcher{
		repo: repo, oauth: oauth, security: security, policy: policy,
		metrics: m, executors: executors, appID: appID, clock: clk, log: log,
	}
}

// Dispatch runs the full pipeline for one invocation (spec §4.7).
func (d *Dispatcher) Dispatch(ctx context.Context, inv ToolInvocation) ExecutionResult {
	start := d.clock.Now()

	tool, err := d.repo.GetTool(ctx, inv.ToolKey)
	if err != nil {
		return d.finish(inv, RuntimeKind(""), start, ExecutionResult{State: StateFailed, ToolKey: inv.ToolKey, Err: err})
	}

	config := mergeConfig(tool.DefaultConfig, inv.ConfigOverrides)
	// The dispatcher, not the caller, is authoritative for recursion depth:
	// a SubAgent re-dispatch carries its depth on the invocation itself
	// (inv.RecursionDepth), and any stale recursion_depth riding along in
	// ConfigOverrides from the parent call's own config must not survive.
	config["recursion_depth"] = inv.RecursionDepth
	required := resolveTier(config, inv.ToolKey)

	if err := validateParameters(tool, inv.Parameters); err != nil {
		return d.finish(inv, RuntimeKind(tool.Runtime), start, ExecutionResult{State: StateFailed, ToolKey: inv.ToolKey, Err: err})
	}

	tokens, err := d.oauth.Resolve(ctx, tool.OAuth, d.appID, inv.ToolKey)
	if err != nil {
		return d.finish(inv, RuntimeKind(tool.Runtime), start, ExecutionResult{State: StateFailed, ToolKey: inv.ToolKey, Err: err})
	}

	if err := d.policy.CheckToolRequirements(toolSecurityRequirements(config, required), d.security); err != nil {
		return d.finish(inv, RuntimeKind(tool.Runtime), start, ExecutionResult{State: StateFailed, ToolKey: inv.ToolKey, Err: err})
	}

	runtime := RuntimeKind(tool.Runtime)
	executor, ok := d.executors[runtime]
	if !ok {
		return d.finish(inv, runtime, start, ExecutionResult{State: StateFailed, ToolKey: inv.ToolKey, Err: svcerr.RuntimeUnavailable(string(runtime))})
	}

	timeout := DefaultResourceLimits(runtime).Timeout
	if v, ok := config["timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v * float64(time.Second))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := ExecuteRequest{
		Tool:        tool,
		Parameters:  privacy.Sanitize(inv.Parameters, d.security.CurrentTier()).(map[string]interface{}),
		Config:      config,
		Mounts:      Mounts(tool.Mounts),
		OAuthTokens: tokens,
		Timeout:     timeout,
		ExecutionID: inv.ExecutionID,
		ContextID:   inv.ContextID,
	}

	result, execErr := d.runWithBounds(runCtx, executor, req)
	if execErr != nil {
		result = ExecutionResult{State: StateFailed, Runtime: runtime, ToolKey: inv.ToolKey, Err: execErr}
	}
	return d.finish(inv, runtime, start, result)
}

// runWithBounds wraps executor.Execute so a deadline expiry surfaces as
// Timeout even if the executor itself does not observe ctx promptly
// (spec §4.7 step 7, §5 cancellation).
func (d *Dispatcher) runWithBounds(ctx context.Context, executor Executor, req ExecuteRequest) (result ExecutionResult, err error) {
	type outcome struct {
		result ExecutionResult
	}
	done := make(chan outcome, 1)
	go func() {
		done <- outcome{result: executor.Execute(ctx, req)}
	}()

	select {
	case <-ctx.Done():
		return ExecutionResult{}, svcerr.Timeout(req.Tool.ToolKey)
	case o := <-done:
		return o.result, nil
	}
}

// finish records the metric observation and the operational log line for
// every code path, then returns result unchanged. It does not append an
// entry to privacy.AuditLog.
func (d *Dispatcher) finish(inv ToolInvocation, runtime RuntimeKind, start time.Time, result ExecutionResult) ExecutionResult {
	result.ToolKey = inv.ToolKey
	if result.Runtime == "" {
		result.Runtime = runtime
	}
	if result.Duration == 0 {
		result.Duration = d.clock.Now().Sub(start)
	}

	status := "succeeded"
	if result.Err != nil {
		status = string(svcerr.KindOf(result.Err))
		if result.State == "" {
			result.State = StateFailed
		}
	} else if result.State == "" {
		result.State = StateSucceeded
	}

	if d.metrics != nil {
		d.metrics.RecordToolExecution(string(result.Runtime), inv.ToolKey, status, result.Duration)
	}
	if d.log != nil {
		d.log.LogServiceCall(context.Background(), string(result.Runtime), inv.ToolKey, result.Duration, result.Err)
		if svcerr.KindOf(result.Err) == svcerr.KindOauthRequired {
			d.log.LogSecurityEvent(context.Background(), "oauth_required", map[string]interface{}{"tool_key": inv.ToolKey})
		}
	}
	return result
}

// mergeConfig applies config_overrides over defaults with per-key
// last-write semantics; absent override keys are inserted (spec §4.7 step 2).
func mergeConfig(defaults, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// resolveTier implements spec §4.7 step 3.
func resolveTier(config map[string]interface{}, toolKey string) privacy.Tier {
	if raw, ok := config["privacy_tier"].(string); ok {
		if tier, ok := privacy.ParseTier(raw); ok {
			return tier
		}
	}
	return requiredTierHeuristic(toolKey)
}

func toolSecurityRequirements(config map[string]interface{}, required privacy.Tier) privacy.ToolSecurityRequirements {
	reqs := privacy.ToolSecurityRequirements{MinTier: required}
	if v, ok := config["require_fresh_attestation"].(bool); ok {
		reqs.RequireFreshAttestation = v
	}
	if v, ok := config["allow_fallback"].(bool); ok {
		reqs.AllowFallback = v
	}
	reqs.HardwareRequirements = stringSlice(config["hardware_requirements"])
	return reqs
}
