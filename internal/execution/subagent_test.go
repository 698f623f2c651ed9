package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanzoai/node/internal/external"
	"github.com/hanzoai/node/internal/svcerr"
)

func TestSubAgentExecutorEnforcesMaxRecursionDepth(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{
		ToolKey: "agent.task", Runtime: "sub_agent",
		DefaultConfig: map[string]interface{}{"privacy_tier": "Open", "agent_tool_key": "agent.task"},
	})

	executors := map[RuntimeKind]Executor{}
	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), executors)
	executors[RuntimeSubAgent] = NewSubAgentExecutor(d.Dispatch, 3)

	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "agent.task"})
	require.Error(t, result.Err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, svcerr.KindResourceExhausted, svcerr.KindOf(result.Err), "depth counter must actually advance and trip the limit")
}

func TestSubAgentExecutorAllowsDispatchWithinDepth(t *testing.T) {
	repo := external.NewMemoryToolRepository()
	repo.Put(external.ToolRecord{
		ToolKey: "agent.task", Runtime: "sub_agent",
		DefaultConfig: map[string]interface{}{"privacy_tier": "Open", "agent_tool_key": "final.native"},
	})
	repo.Put(external.ToolRecord{
		ToolKey: "final.native", Runtime: "native",
		DefaultConfig: map[string]interface{}{"privacy_tier": "Open"},
	})

	executors := map[RuntimeKind]Executor{
		RuntimeNative: NewNativeExecutor(map[string]NativeHandler{
			"final.native": func(ctx context.Context, req ExecuteRequest) (interface{}, error) { return "done", nil },
		}),
	}
	d := newTestDispatcher(t, repo, external.NewMemorySecretVault(), executors)
	executors[RuntimeSubAgent] = NewSubAgentExecutor(d.Dispatch, DefaultMaxRecursionDepth)

	result := d.Dispatch(context.Background(), ToolInvocation{ToolKey: "agent.task"})
	require.NoError(t, result.Err)
	assert.Equal(t, "done", result.Value)
}
