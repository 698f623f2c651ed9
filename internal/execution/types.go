// Package execution implements the runtime dispatcher and its executors
// (spec §4.7-§4.9): tool lookup, tier resolution, OAuth resolution, policy
// enforcement, and the per-runtime execution contract.
package execution

import (
	"context"
	"strings"
	"time"

	"github.com/hanzoai/node/internal/external"
	"github.com/hanzoai/node/internal/privacy"
)

// RuntimeKind names one of the executors a tool record can select (spec §4.8).
type RuntimeKind string

const (
	RuntimeNative     RuntimeKind = "native"
	RuntimeJavaScript RuntimeKind = "javascript"
	RuntimePython     RuntimeKind = "python"
	RuntimeWasm       RuntimeKind = "wasm"
	RuntimeDocker     RuntimeKind = "docker"
	RuntimeKubernetes RuntimeKind = "kubernetes"
	RuntimeMcpClient  RuntimeKind = "mcp_client"
	RuntimeSubAgent   RuntimeKind = "sub_agent"
)

// RunState is a runtime call's position in its state machine (spec §4.8).
type RunState string

const (
	StatePrepared  RunState = "Prepared"
	StateRunning   RunState = "Running"
	StateSucceeded RunState = "Succeeded"
	StateFailed    RunState = "Failed"
	StateTimedOut  RunState = "TimedOut"
	StateCancelled RunState = "Cancelled"
)

// ToolInvocation is a dispatch request (spec §4.7).
type ToolInvocation struct {
	ToolKey        string
	Parameters     map[string]interface{}
	ConfigOverrides map[string]interface{}
	ExecutionID    string
	ContextID      string
	AgentID        string
	RecursionDepth int
}

// Mounts is the filesystem visibility granted to an executor by default
// (spec §4.8): the only paths it may touch.
type Mounts []string

// Allows reports whether path is on the mount list or not absolute.
func (m Mounts) Allows(path string) bool {
	if path == "" || path[0] != '/' {
		return true
	}
	for _, mount := range m {
		if path == mount || (len(path) > len(mount) && path[:len(mount)+1] == mount+"/") {
			return true
		}
	}
	return false
}

// ExecutionResult is what dispatch and every executor return (spec §4.7,
// §4.8). Exactly one of Value or Err is meaningful.
type ExecutionResult struct {
	State    RunState
	Runtime  RuntimeKind
	ToolKey  string
	Value    interface{}
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the call reached a non-error terminal state.
func (r ExecutionResult) Succeeded() bool { return r.State == StateSucceeded }

// ExecuteRequest is the uniform contract every executor implements
// (spec §4.8): execute(tool, parameters, config, mounts, oauth_tokens,
// timeout, ctx) -> ExecutionResult.
type ExecuteRequest struct {
	Tool        external.ToolRecord
	Parameters  map[string]interface{} // already sanitized; executors never re-sanitize
	Config      map[string]interface{}
	Mounts      Mounts
	OAuthTokens map[string]external.OAuthToken
	Timeout     time.Duration
	ExecutionID string
	ContextID   string
}

// Executor is the runtime-specific execution contract (spec §4.8).
type Executor interface {
	Runtime() RuntimeKind
	Execute(ctx context.Context, req ExecuteRequest) ExecutionResult
}

// requiredTierHeuristic maps a tool_key substring to the tier it implies
// when config.privacy_tier is absent (spec §4.7 step 3).
func requiredTierHeuristic(toolKey string) privacy.Tier {
	switch {
	case containsAny(toolKey, "crypto", "wallet", "private"):
		return privacy.CpuTee
	case containsAny(toolKey, "ml", "gpu", "inference"):
		return privacy.GpuCc
	case containsAny(toolKey, "secure", "confidential"):
		return privacy.CpuTee
	default:
		return privacy.Open
	}
}

func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
