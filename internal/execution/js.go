package execution

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/hanzoai/node/internal/svcerr"
)

// JSCapability names one allow-listed capability a JavaScript tool may
// request (spec §4.8 JavaScript).
type JSCapability string

const (
	JSReadHome   JSCapability = "read_home"
	JSWriteHome  JSCapability = "write_home"
	JSReadMount  JSCapability = "read_mount"
	JSNetwork    JSCapability = "network"
	JSSubprocess JSCapability = "subprocess"
	JSEnv        JSCapability = "env"
)

// JavaScriptExecutor runs a tool's script in an isolated goja runtime per
// call, default-deny outside the tool's declared capability allow-list
// (spec §4.8 JavaScript).
type JavaScriptExecutor struct {
	timeoutTick time.Duration
	homeRoot    string
	httpClient  *http.Client
}

// NewJavaScriptExecutor constructs a JS executor. Per-execution home
// directories for JSReadHome/JSWriteHome are rooted under the OS temp dir.
func NewJavaScriptExecutor() *JavaScriptExecutor {
	return &JavaScriptExecutor{
		timeoutTick: 50 * time.Millisecond,
		homeRoot:    filepath.Join(os.TempDir(), "node-js-sandbox"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *JavaScriptExecutor) Runtime() RuntimeKind { return RuntimeJavaScript }

func allowedCapabilities(config map[string]interface{}) map[JSCapability]bool {
	allowed := make(map[JSCapability]bool)
	raw, ok := config["allowed_capabilities"].([]interface{})
	if !ok {
		return allowed
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			allowed[JSCapability(s)] = true
		}
	}
	return allowed
}

func (e *JavaScriptExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	script, _ := req.Config["script"].(string)
	entryPoint, _ := req.Config["entry_point"].(string)
	if entryPoint == "" {
		entryPoint = "handle"
	}
	if script == "" {
		return e.fail(req, start, svcerr.ExecutionFailure("javascript tool missing script", nil))
	}

	vm := goja.New()
	caps := allowedCapabilities(req.Config)
	e.installSandbox(ctx, vm, caps, req)

	_ = vm.Set("input", vm.ToValue(req.Parameters))
	_ = vm.Set("executionId", req.ExecutionID)
	_ = vm.Set("contextId", req.ContextID)

	done := make(chan struct{})
	var resultVal goja.Value
	var runErr error
	go func() {
		defer close(done)
		if _, err := vm.RunString(script); err != nil {
			runErr = err
			return
		}
		fn, ok := goja.AssertFunction(vm.Get(entryPoint))
		if !ok {
			runErr = svcerr.ExecutionFailure("entry point is not a function", nil)
			return
		}
		resultVal, runErr = fn(goja.Undefined(), vm.Get("input"))
	}()

	select {
	case <-ctx.Done():
		vm.Interrupt("timeout")
		return ExecutionResult{State: StateTimedOut, Runtime: RuntimeJavaScript, ToolKey: req.Tool.ToolKey, Err: svcerr.Timeout(req.Tool.ToolKey), Duration: time.Since(start)}
	case <-done:
	}

	if runErr != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("javascript execution failed", runErr))
	}

	var output interface{}
	if resultVal != nil && !goja.IsUndefined(resultVal) && !goja.IsNull(resultVal) {
		exported := resultVal.Export()
		raw, err := json.Marshal(exported)
		if err == nil {
			_ = json.Unmarshal(raw, &output)
		} else {
			output = exported
		}
	}

	return ExecutionResult{State: StateSucceeded, Runtime: RuntimeJavaScript, ToolKey: req.Tool.ToolKey, Value: output, Duration: time.Since(start)}
}

func (e *JavaScriptExecutor) fail(req ExecuteRequest, start time.Time, err error) ExecutionResult {
	return ExecutionResult{State: StateFailed, Runtime: RuntimeJavaScript, ToolKey: req.Tool.ToolKey, Err: err, Duration: time.Since(start)}
}

// installSandbox wires only the host functions the tool's capability set
// allows. Ungranted fetch and exec are left unset, so referencing them
// throws a ReferenceError; fs is always present but carries only the granted
// methods, so calling a missing one throws a TypeError; env is an empty
// object unless the env capability is granted.
func (e *JavaScriptExecutor) installSandbox(ctx context.Context, vm *goja.Runtime, caps map[JSCapability]bool, req ExecuteRequest) {
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = vm.Set("console", console)

	fsObj := vm.NewObject()
	if caps[JSReadMount] {
		_ = fsObj.Set("mountAllowed", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return vm.ToValue(false)
			}
			return vm.ToValue(req.Mounts.Allows(call.Arguments[0].String()))
		})
	}
	home := filepath.Join(e.homeRoot, req.ExecutionID)
	if caps[JSReadHome] {
		_ = fsObj.Set("readHome", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				panic(vm.ToValue("readHome requires a relative path"))
			}
			data, err := os.ReadFile(homePath(home, call.Arguments[0].String()))
			if err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return vm.ToValue(string(data))
		})
	}
	if caps[JSWriteHome] {
		_ = fsObj.Set("writeHome", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 2 {
				panic(vm.ToValue("writeHome requires a path and contents"))
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				panic(vm.ToValue(err.Error()))
			}
			path := homePath(home, call.Arguments[0].String())
			if err := os.WriteFile(path, []byte(call.Arguments[1].String()), 0o600); err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return goja.Undefined()
		})
	}
	_ = vm.Set("fs", fsObj)

	if caps[JSNetwork] {
		_ = vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				panic(vm.ToValue("fetch requires a url"))
			}
			result, err := e.fetch(ctx, call.Arguments[0].String())
			if err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return vm.ToValue(result)
		})
	}

	if caps[JSSubprocess] {
		_ = vm.Set("exec", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				panic(vm.ToValue("exec requires a command"))
			}
			name := call.Arguments[0].String()
			args := make([]string, 0, len(call.Arguments)-1)
			for _, a := range call.Arguments[1:] {
				args = append(args, a.String())
			}
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			result := map[string]interface{}{"output": string(out)}
			if err != nil {
				result["error"] = err.Error()
			}
			return vm.ToValue(result)
		})
	}

	if caps[JSEnv] {
		_ = vm.Set("env", vm.ToValue(filteredEnv(req.Config)))
	} else {
		_ = vm.Set("env", vm.NewObject())
	}
}

// homePath joins a script-supplied relative path under home. The path is
// cleaned as if rooted at "/", so ".." segments and absolute paths resolve
// inside home instead of escaping it; no error is returned.
func homePath(home, rel string) string {
	clean := filepath.Clean("/" + rel)
	return filepath.Join(home, clean)
}

// fetch performs a bounded GET request on behalf of a script granted
// JSNetwork. Run synchronously: goja has no event loop here, so there is
// no promise to resolve asynchronously.
func (e *JavaScriptExecutor) fetch(ctx context.Context, url string) (map[string]interface{}, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, svcerr.ExecutionFailure("fetch: only http(s) urls are allowed", nil)
	}
	reqHTTP, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(reqHTTP)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": resp.StatusCode, "body": string(body)}, nil
}

// filteredEnv exposes only the host environment keys a tool's config
// explicitly allow-lists (config.env_allowlist); granting JSEnv alone does
// not hand a script the entire host environment.
func filteredEnv(config map[string]interface{}) map[string]string {
	out := map[string]string{}
	allowlist, _ := config["env_allowlist"].([]interface{})
	for _, v := range allowlist {
		key, ok := v.(string)
		if !ok {
			continue
		}
		if val, ok := os.LookupEnv(key); ok {
			out[key] = val
		}
	}
	return out
}
