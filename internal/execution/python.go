package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/hanzoai/node/internal/svcerr"
)

// PythonExecutor runs a tool's entry point as a subprocess with a
// deterministic interpreter path and a restricted environment (spec §4.8
// Python): same allow-list discipline as JavaScript, applied to the
// process's argv/env rather than an in-process sandbox, since no embedded
// Python runtime exists in this stack.
type PythonExecutor struct {
	interpreterPath string
}

// NewPythonExecutor constructs an executor invoking interpreterPath (e.g.
// "python3", or a path to a tool-declared virtualenv interpreter).
func NewPythonExecutor(interpreterPath string) *PythonExecutor {
	if interpreterPath == "" {
		interpreterPath = "python3"
	}
	return &PythonExecutor{interpreterPath: interpreterPath}
}

func (e *PythonExecutor) Runtime() RuntimeKind { return RuntimePython }

func (e *PythonExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	entryScript, _ := req.Config["entry_script"].(string)
	if entryScript == "" {
		return e.fail(req, start, svcerr.ExecutionFailure("python tool missing entry_script", nil))
	}
	if !req.Mounts.Allows(entryScript) {
		return e.fail(req, start, svcerr.ExecutionFailure(fmt.Sprintf("entry_script %q not on mount list", entryScript), nil))
	}

	payload, err := json.Marshal(req.Parameters)
	if err != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("parameter encoding failed", err))
	}

	cmd := exec.CommandContext(ctx, e.interpreterPath, entryScript)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = e.restrictedEnv(req)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ExecutionResult{State: StateTimedOut, Runtime: RuntimePython, ToolKey: req.Tool.ToolKey, Err: svcerr.Timeout(req.Tool.ToolKey), Duration: time.Since(start)}
		}
		return e.fail(req, start, svcerr.ExecutionFailure("python process exited with error: "+stderr.String(), err))
	}

	var output interface{}
	if json.Unmarshal(stdout.Bytes(), &output) != nil {
		output = stdout.String()
	}
	return ExecutionResult{State: StateSucceeded, Runtime: RuntimePython, ToolKey: req.Tool.ToolKey, Value: output, Duration: time.Since(start)}
}

// restrictedEnv carries only execution/context identifiers as side-band
// environment (spec §4.8: never in parameters) plus a declared dependency
// pin, never the ambient process environment.
func (e *PythonExecutor) restrictedEnv(req ExecuteRequest) []string {
	env := []string{
		fmt.Sprintf("NODE_EXECUTION_ID=%s", req.ExecutionID),
		fmt.Sprintf("NODE_CONTEXT_ID=%s", req.ContextID),
	}
	if deps, ok := req.Config["dependencies"].(string); ok && deps != "" {
		env = append(env, fmt.Sprintf("NODE_TOOL_DEPENDENCIES=%s", deps))
	}
	return env
}

func (e *PythonExecutor) fail(req ExecuteRequest, start time.Time, err error) ExecutionResult {
	return ExecutionResult{State: StateFailed, Runtime: RuntimePython, ToolKey: req.Tool.ToolKey, Err: err, Duration: time.Since(start)}
}
