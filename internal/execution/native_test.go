package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/hanzoai/node/internal/external"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeExecutorDispatchesRegisteredHandler(t *testing.T) {
	exec := NewNativeExecutor(nil)
	exec.Register("echo", func(ctx context.Context, req ExecuteRequest) (interface{}, error) {
		return req.Parameters["value"], nil
	})

	result := exec.Execute(context.Background(), ExecuteRequest{
		Tool:       external.ToolRecord{ToolKey: "echo"},
		Parameters: map[string]interface{}{"value": "hi"},
	})
	require.True(t, result.Succeeded())
	assert.Equal(t, "hi", result.Value)
	assert.Equal(t, RuntimeNative, result.Runtime)
}

func TestNativeExecutorMissingHandlerFails(t *testing.T) {
	exec := NewNativeExecutor(nil)
	result := exec.Execute(context.Background(), ExecuteRequest{Tool: external.ToolRecord{ToolKey: "missing"}})
	assert.Equal(t, StateFailed, result.State)
	assert.Error(t, result.Err)
}

func TestNativeExecutorHandlerErrorWraps(t *testing.T) {
	exec := NewNativeExecutor(map[string]NativeHandler{
		"boom": func(ctx context.Context, req ExecuteRequest) (interface{}, error) {
			return nil, errors.New("boom")
		},
	})
	result := exec.Execute(context.Background(), ExecuteRequest{Tool: external.ToolRecord{ToolKey: "boom"}})
	assert.Equal(t, StateFailed, result.State)
	assert.Error(t, result.Err)
}

func TestMountsAllowsExactAndPrefixPaths(t *testing.T) {
	mounts := Mounts{"/data", "/tmp/work"}
	assert.True(t, mounts.Allows("/data"))
	assert.True(t, mounts.Allows("/data/file.txt"))
	assert.True(t, mounts.Allows("/tmp/work/x"))
	assert.False(t, mounts.Allows("/etc/passwd"))
	assert.True(t, mounts.Allows("relative/path"))
	assert.True(t, mounts.Allows(""))
}

func TestRequiredTierHeuristicMapsSubstrings(t *testing.T) {
	assert.Equal(t, "CpuTee", requiredTierHeuristic("wallet.sign").String())
	assert.Equal(t, "GpuCc", requiredTierHeuristic("ml.infer").String())
	assert.Equal(t, "Open", requiredTierHeuristic("http.get").String())
}
