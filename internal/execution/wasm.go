package execution

import (
	"context"
	"time"

	"github.com/hanzoai/node/internal/svcerr"
)

// WasmModule is a loaded, instantiated module handle (spec §4.8 Wasm:
// "modules may be loaded, instantiated, called, and unloaded independently").
type WasmModule interface {
	Call(ctx context.Context, function string, parameters map[string]interface{}) (interface{}, int64, error)
	Unload() error
}

// WasmRuntime loads wasm bytecode under a memory limit, execution-time
// limit, and fuel metering budget, exposing only declared host functions.
// No wasm engine ships in this module's dependency stack; production
// wiring supplies a concrete runtime here.
type WasmRuntime interface {
	Load(ctx context.Context, bytecode []byte, limits ResourceLimits, hostFunctions []string) (WasmModule, error)
}

// WasmExecutor adapts a WasmRuntime to the uniform Executor contract
// (spec §4.8 Wasm).
type WasmExecutor struct {
	runtime WasmRuntime
	limits  ResourceLimits
}

// NewWasmExecutor constructs an executor over runtime. runtime is nil-able
// only at construction to let callers wire it later; Execute fails
// RuntimeUnavailable until one is set.
func NewWasmExecutor(runtime WasmRuntime, limits ResourceLimits) *WasmExecutor {
	if limits.FuelBudget == 0 {
		limits = DefaultResourceLimits(RuntimeWasm)
	}
	return &WasmExecutor{runtime: runtime, limits: limits}
}

func (e *WasmExecutor) Runtime() RuntimeKind { return RuntimeWasm }

func (e *WasmExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	if e.runtime == nil {
		return e.fail(req, start, svcerr.RuntimeUnavailable("wasm"))
	}

	bytecode, _ := req.Config["bytecode"].([]byte)
	function, _ := req.Config["function"].(string)
	if len(bytecode) == 0 || function == "" {
		return e.fail(req, start, svcerr.ExecutionFailure("wasm tool missing bytecode or function", nil))
	}
	hostFunctions := stringSlice(req.Config["host_functions"])

	mod, err := e.runtime.Load(ctx, bytecode, e.limits, hostFunctions)
	if err != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("wasm module load failed", err))
	}
	defer mod.Unload()

	value, fuelUsed, err := mod.Call(ctx, function, req.Parameters)
	if err != nil {
		if ctx.Err() != nil {
			return ExecutionResult{State: StateTimedOut, Runtime: RuntimeWasm, ToolKey: req.Tool.ToolKey, Err: svcerr.Timeout(req.Tool.ToolKey), Duration: time.Since(start)}
		}
		if fuelUsed >= e.limits.FuelBudget {
			return ExecutionResult{State: StateFailed, Runtime: RuntimeWasm, ToolKey: req.Tool.ToolKey, Err: svcerr.ResourceExhausted("wasm_fuel"), Duration: time.Since(start)}
		}
		return e.fail(req, start, svcerr.ExecutionFailure("wasm call failed", err))
	}

	return ExecutionResult{State: StateSucceeded, Runtime: RuntimeWasm, ToolKey: req.Tool.ToolKey, Value: value, Duration: time.Since(start)}
}

func (e *WasmExecutor) fail(req ExecuteRequest, start time.Time, err error) ExecutionResult {
	return ExecutionResult{State: StateFailed, Runtime: RuntimeWasm, ToolKey: req.Tool.ToolKey, Err: err, Duration: time.Since(start)}
}
