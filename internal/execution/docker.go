package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/tidwall/gjson"

	"github.com/hanzoai/node/internal/svcerr"
)

// DockerExecutor runs a tool inside a short-lived container (spec §4.8
// Docker): pulls the image if missing, applies CPU/memory/network/capability
// bounds, and removes the container on completion.
type DockerExecutor struct {
	client  *dockerclient.Client
	limits  ResourceLimits
}

// NewDockerExecutor constructs an executor over a negotiated Docker client.
func NewDockerExecutor(limits ResourceLimits) (*DockerExecutor, error) {
	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, svcerr.RuntimeUnavailable("docker")
	}
	if limits.CPUCores == 0 {
		limits = DefaultResourceLimits(RuntimeDocker)
	}
	return &DockerExecutor{client: cli, limits: limits}, nil
}

func (e *DockerExecutor) Runtime() RuntimeKind { return RuntimeDocker }

func (e *DockerExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	img, _ := req.Config["image"].(string)
	if img == "" {
		return e.fail(req, start, svcerr.ExecutionFailure("docker tool missing image", nil))
	}

	if err := e.ensureImage(ctx, img); err != nil {
		return e.fail(req, start, err)
	}

	payload, _ := json.Marshal(req.Parameters)
	networkMode := "none"
	if e.limits.NetworkAllow {
		networkMode = "bridge"
	}

	readonlyRootfs, _ := req.Config["readonly_rootfs"].(bool)
	capAdd := stringSlice(req.Config["capabilities"])

	containerCfg := &container.Config{
		Image: img,
		Env:   []string{fmt.Sprintf("TOOL_PARAMETERS=%s", payload), fmt.Sprintf("EXECUTION_ID=%s", req.ExecutionID)},
		Labels: map[string]string{
			"node.managed-by": "confidential-compute-node",
			"node.tool-key":   req.Tool.ToolKey,
		},
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(networkMode),
		Resources: container.Resources{
			NanoCPUs: int64(e.limits.CPUCores * 1e9),
			Memory:   e.limits.MemoryMiB * 1024 * 1024,
			MemorySwap: memorySwapBytes(e.limits),
		},
		CapDrop:     []string{"ALL"},
		CapAdd:      capAdd,
		ReadonlyRootfs: readonlyRootfs,
		AutoRemove:  true,
	}

	created, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("container create failed", err))
	}

	if err := e.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("container start failed", err))
	}

	statusCh, errCh := e.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case <-ctx.Done():
		_ = e.client.ContainerKill(context.Background(), created.ID, "SIGKILL")
		_, _ = e.client.ContainerWait(context.Background(), created.ID, container.WaitConditionRemoved)
		return ExecutionResult{State: StateTimedOut, Runtime: RuntimeDocker, ToolKey: req.Tool.ToolKey, Err: svcerr.Timeout(req.Tool.ToolKey), Duration: time.Since(start)}
	case err := <-errCh:
		return e.fail(req, start, svcerr.ExecutionFailure("container wait failed", err))
	case status := <-statusCh:
		out, logErr := e.collectLogs(ctx, created.ID)
		if logErr != nil {
			return e.fail(req, start, logErr)
		}
		value := parseStructuredOutput(out, status.StatusCode)
		if resultPath, _ := req.Config["result_path"].(string); resultPath != "" {
			extracted, err := extractResultPath(out.stdout, resultPath)
			if err != nil {
				return e.fail(req, start, err)
			}
			value = extracted
		}
		return ExecutionResult{State: StateSucceeded, Runtime: RuntimeDocker, ToolKey: req.Tool.ToolKey, Value: value, Duration: time.Since(start)}
	}
}

func (e *DockerExecutor) ensureImage(ctx context.Context, img string) error {
	_, _, err := e.client.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil
	}
	reader, pullErr := e.client.ImagePull(ctx, img, image.PullOptions{})
	if pullErr != nil {
		return svcerr.RuntimeUnavailable("docker:" + img)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func (e *DockerExecutor) collectLogs(ctx context.Context, containerID string) (stdoutStderr, error) {
	logs, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return stdoutStderr{}, svcerr.ExecutionFailure("container logs unavailable", err)
	}
	defer logs.Close()
	return demuxLogs(logs)
}

// demuxLogs splits Docker's multiplexed log stream (the container runs
// without a TTY, so stdout/stderr share one stream framed per
// pkg/stdcopy) into separate buffers. Pulled out of collectLogs so the
// framing logic is testable without a live Docker daemon.
func demuxLogs(r io.Reader) (stdoutStderr, error) {
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, r); err != nil {
		return stdoutStderr{}, svcerr.ExecutionFailure("container log demux failed", err)
	}
	return stdoutStderr{stdout: stdout.String(), stderr: stderr.String()}, nil
}

type stdoutStderr struct{ stdout, stderr string }

// parseStructuredOutput tries to parse stdout as JSON (spec §4.8 Docker:
// "parses stdout as a value if it is valid structured data"); otherwise
// falls back to the raw triple.
func parseStructuredOutput(out stdoutStderr, exitCode int64) interface{} {
	var parsed interface{}
	if json.Unmarshal([]byte(out.stdout), &parsed) == nil {
		return parsed
	}
	return map[string]interface{}{"stdout": out.stdout, "stderr": out.stderr, "exit_code": exitCode}
}

// extractResultPath narrows container stdout to a single gjson path when a
// tool's config names one (config.result_path), mirroring the teacher's
// JSONPath-scoped oracle response extraction.
func extractResultPath(stdout, path string) (interface{}, error) {
	result := gjson.Get(stdout, path)
	if !result.Exists() {
		return nil, svcerr.ExecutionFailure(fmt.Sprintf("result_path %q not found in tool output", path), nil)
	}
	return result.Value(), nil
}

func (e *DockerExecutor) fail(req ExecuteRequest, start time.Time, err error) ExecutionResult {
	return ExecutionResult{State: StateFailed, Runtime: RuntimeDocker, ToolKey: req.Tool.ToolKey, Err: err, Duration: time.Since(start)}
}

func memorySwapBytes(limits ResourceLimits) int64 {
	if limits.SwapMiB <= 0 {
		return limits.MemoryMiB * 1024 * 1024 // equal to Memory disables additional swap
	}
	return (limits.MemoryMiB + limits.SwapMiB) * 1024 * 1024
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
