package execution

import (
	"context"
	"time"

	"github.com/hanzoai/node/internal/svcerr"
)

// NativeHandler is an in-process tool implementation registered by tool_key
// (spec §4.8 Native).
type NativeHandler func(ctx context.Context, req ExecuteRequest) (interface{}, error)

// NativeExecutor dispatches to in-process handlers. It may call back into
// the dispatcher for sub-tool invocation via the handler closure itself.
type NativeExecutor struct {
	handlers map[string]NativeHandler
}

// NewNativeExecutor constructs an executor over handlers keyed by tool_key.
func NewNativeExecutor(handlers map[string]NativeHandler) *NativeExecutor {
	if handlers == nil {
		handlers = map[string]NativeHandler{}
	}
	return &NativeExecutor{handlers: handlers}
}

// Register adds or replaces the handler for toolKey.
func (e *NativeExecutor) Register(toolKey string, handler NativeHandler) {
	e.handlers[toolKey] = handler
}

func (e *NativeExecutor) Runtime() RuntimeKind { return RuntimeNative }

func (e *NativeExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	handler, ok := e.handlers[req.Tool.ToolKey]
	if !ok {
		return ExecutionResult{
			State: StateFailed, Runtime: RuntimeNative, ToolKey: req.Tool.ToolKey,
			Err: svcerr.RuntimeUnavailable(req.Tool.ToolKey), Duration: time.Since(start),
		}
	}

	value, err := handler(ctx, req)
	if err != nil {
		return ExecutionResult{
			State: StateFailed, Runtime: RuntimeNative, ToolKey: req.Tool.ToolKey,
			Err: svcerr.ExecutionFailure("native handler failed", err), Duration: time.Since(start),
		}
	}
	return ExecutionResult{
		State: StateSucceeded, Runtime: RuntimeNative, ToolKey: req.Tool.ToolKey,
		Value: value, Duration: time.Since(start),
	}
}
