package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanzoai/node/internal/external"
)

func jsRequest(t *testing.T, script string, config map[string]interface{}) ExecuteRequest {
	t.Helper()
	cfg := map[string]interface{}{"script": script}
	for k, v := range config {
		cfg[k] = v
	}
	return ExecuteRequest{
		Tool:       external.ToolRecord{ToolKey: "js.tool"},
		Parameters: map[string]interface{}{},
		Config:     cfg,
	}
}

func TestJavaScriptExecutorRunsHandleEntryPoint(t *testing.T) {
	e := NewJavaScriptExecutor()
	script := `function handle(input) { return {doubled: input.n * 2}; }`
	result := e.Execute(context.Background(), jsRequest(t, script, map[string]interface{}{}))
	require.True(t, result.Succeeded())
}

func TestJavaScriptExecutorDeniesNetworkWithoutCapability(t *testing.T) {
	e := NewJavaScriptExecutor()
	script := `function handle(input) { fetch("http://example.com"); return 1; }`
	result := e.Execute(context.Background(), jsRequest(t, script, map[string]interface{}{}))
	assert.Equal(t, StateFailed, result.State)
	assert.Error(t, result.Err)
}

func TestJavaScriptExecutorAllowsNetworkWithCapability(t *testing.T) {
	e := NewJavaScriptExecutor()
	script := `function handle(input) { return typeof fetch; }`
	req := jsRequest(t, script, map[string]interface{}{
		"allowed_capabilities": []interface{}{"network"},
	})
	result := e.Execute(context.Background(), req)
	require.True(t, result.Succeeded())
	assert.Equal(t, "function", result.Value)
}

func TestJavaScriptExecutorEnvAllowlistFiltersHostEnvironment(t *testing.T) {
	t.Setenv("NODE_JS_TEST_VAR", "visible")
	t.Setenv("NODE_JS_TEST_SECRET", "hidden")

	e := NewJavaScriptExecutor()
	script := `function handle(input) { return {seen: env.NODE_JS_TEST_VAR, secret: env.NODE_JS_TEST_SECRET}; }`
	req := jsRequest(t, script, map[string]interface{}{
		"allowed_capabilities": []interface{}{"env"},
		"env_allowlist":        []interface{}{"NODE_JS_TEST_VAR"},
	})
	result := e.Execute(context.Background(), req)
	require.True(t, result.Succeeded())
	m, ok := result.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "visible", m["seen"])
	assert.Nil(t, m["secret"])
}

func TestJavaScriptExecutorWriteAndReadHomeRoundtrip(t *testing.T) {
	e := NewJavaScriptExecutor()
	e.homeRoot = t.TempDir()

	script := `function handle(input) { fs.writeHome("note.txt", "hello"); return fs.readHome("note.txt"); }`
	req := jsRequest(t, script, map[string]interface{}{
		"allowed_capabilities": []interface{}{"read_home", "write_home"},
	})
	req.ExecutionID = "exec-1"
	result := e.Execute(context.Background(), req)
	require.True(t, result.Succeeded())
	assert.Equal(t, "hello", result.Value)

	written, err := os.ReadFile(filepath.Join(e.homeRoot, "exec-1", "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(written))
}

func TestJavaScriptExecutorMountAllowedReflectsMounts(t *testing.T) {
	e := NewJavaScriptExecutor()
	script := `function handle(input) { return fs.mountAllowed("/data/x"); }`
	req := jsRequest(t, script, map[string]interface{}{
		"allowed_capabilities": []interface{}{"read_mount"},
	})
	req.Mounts = Mounts{"/data"}
	result := e.Execute(context.Background(), req)
	require.True(t, result.Succeeded())
	assert.Equal(t, true, result.Value)
}
