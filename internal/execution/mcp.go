package execution

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hanzoai/node/internal/svcerr"
)

// McpClientFactory resolves a tool_key to a connected MCP client. Transport
// is opaque to the dispatcher (spec §4.8 McpClient): stdio, SSE, or HTTP
// clients all satisfy this signature.
type McpClientFactory func(ctx context.Context, toolKey string) (*client.Client, error)

// McpExecutor forwards an invocation to a registered external tool server
// and returns its result unchanged (spec §4.8 McpClient).
type McpExecutor struct {
	resolve McpClientFactory
}

// NewMcpExecutor constructs an executor that resolves a client per call via
// resolve.
func NewMcpExecutor(resolve McpClientFactory) *McpExecutor {
	return &McpExecutor{resolve: resolve}
}

func (e *McpExecutor) Runtime() RuntimeKind { return RuntimeMcpClient }

func (e *McpExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	if e.resolve == nil {
		return e.fail(req, start, svcerr.RuntimeUnavailable("mcp_client"))
	}

	cli, err := e.resolve(ctx, req.Tool.ToolKey)
	if err != nil {
		return e.fail(req, start, svcerr.RuntimeUnavailable("mcp_client:"+req.Tool.ToolKey))
	}

	toolName, _ := req.Config["mcp_tool_name"].(string)
	if toolName == "" {
		toolName = req.Tool.ToolKey
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = toolName
	callReq.Params.Arguments = req.Parameters

	result, err := cli.CallTool(ctx, callReq)
	if err != nil {
		if ctx.Err() != nil {
			return ExecutionResult{State: StateTimedOut, Runtime: RuntimeMcpClient, ToolKey: req.Tool.ToolKey, Err: svcerr.Timeout(req.Tool.ToolKey), Duration: time.Since(start)}
		}
		return e.fail(req, start, svcerr.ExecutionFailure("mcp call failed", err))
	}

	return ExecutionResult{State: StateSucceeded, Runtime: RuntimeMcpClient, ToolKey: req.Tool.ToolKey, Value: result, Duration: time.Since(start)}
}

func (e *McpExecutor) fail(req ExecuteRequest, start time.Time, err error) ExecutionResult {
	return ExecutionResult{State: StateFailed, Runtime: RuntimeMcpClient, ToolKey: req.Tool.ToolKey, Err: err, Duration: time.Since(start)}
}
