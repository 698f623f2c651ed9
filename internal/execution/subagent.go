package execution

import (
	"context"
	"time"

	"github.com/hanzoai/node/internal/svcerr"
)

// DefaultMaxRecursionDepth bounds SubAgent fan-out (spec §4.8 SubAgent).
const DefaultMaxRecursionDepth = 4

// Dispatch is the shape SubAgentExecutor re-enters; Dispatcher satisfies it.
type Dispatch func(ctx context.Context, invocation ToolInvocation) ExecutionResult

// SubAgentExecutor re-enters the dispatcher with an agent-scoped tool_key,
// enforcing a maximum recursion depth to prevent unbounded fan-out
// (spec §4.8 SubAgent).
type SubAgentExecutor struct {
	dispatch Dispatch
	maxDepth int
}

// NewSubAgentExecutor constructs an executor bound to dispatch. maxDepth<=0
// uses DefaultMaxRecursionDepth.
func NewSubAgentExecutor(dispatch Dispatch, maxDepth int) *SubAgentExecutor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRecursionDepth
	}
	return &SubAgentExecutor{dispatch: dispatch, maxDepth: maxDepth}
}

func (e *SubAgentExecutor) Runtime() RuntimeKind { return RuntimeSubAgent }

func (e *SubAgentExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	depth, _ := req.Config["recursion_depth"].(int)
	if depth >= e.maxDepth {
		return ExecutionResult{
			State: StateFailed, Runtime: RuntimeSubAgent, ToolKey: req.Tool.ToolKey,
			Err: svcerr.ResourceExhausted("recursion_depth"), Duration: time.Since(start),
		}
	}

	agentToolKey, _ := req.Config["agent_tool_key"].(string)
	if agentToolKey == "" {
		agentToolKey = req.Tool.ToolKey
	}

	result := e.dispatch(ctx, ToolInvocation{
		ToolKey:         agentToolKey,
		Parameters:      req.Parameters,
		ConfigOverrides: req.Config,
		ExecutionID:     req.ExecutionID,
		ContextID:       req.ContextID,
		RecursionDepth:  depth + 1,
	})
	result.Runtime = RuntimeSubAgent
	result.Duration = time.Since(start)
	return result
}
