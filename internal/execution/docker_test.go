package execution

import (
	"bytes"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractResultPathNarrowsStdout(t *testing.T) {
	stdout := `{"status":"ok","data":{"score":0.91}}`
	value, err := extractResultPath(stdout, "data.score")
	require.NoError(t, err)
	assert.Equal(t, 0.91, value)
}

func TestExtractResultPathMissingReturnsError(t *testing.T) {
	stdout := `{"status":"ok"}`
	_, err := extractResultPath(stdout, "data.score")
	assert.Error(t, err)
}

func TestParseStructuredOutputFallsBackToRawTriple(t *testing.T) {
	value := parseStructuredOutput(stdoutStderr{stdout: "not json", stderr: "oops"}, 1)
	m, ok := value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "not json", m["stdout"])
	assert.Equal(t, int64(1), m["exit_code"])
}

func TestMemorySwapBytesEqualsMemoryWhenNoSwapConfigured(t *testing.T) {
	limits := ResourceLimits{MemoryMiB: 512}
	assert.Equal(t, int64(512*1024*1024), memorySwapBytes(limits))
}

func TestDemuxLogsSeparatesStdoutAndStderr(t *testing.T) {
	var framed bytes.Buffer
	stdoutWriter := stdcopy.NewStdWriter(&framed, stdcopy.Stdout)
	_, err := stdoutWriter.Write([]byte("benchmark\n"))
	require.NoError(t, err)

	out, err := demuxLogs(&framed)
	require.NoError(t, err)
	assert.Equal(t, "benchmark\n", out.stdout)
	assert.Equal(t, "", out.stderr)
}

func TestDemuxLogsInterleavesStdoutAndStderr(t *testing.T) {
	var framed bytes.Buffer
	_, err := stdcopy.NewStdWriter(&framed, stdcopy.Stdout).Write([]byte("out-line\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&framed, stdcopy.Stderr).Write([]byte("err-line\n"))
	require.NoError(t, err)

	out, err := demuxLogs(&framed)
	require.NoError(t, err)
	assert.Equal(t, "out-line\n", out.stdout)
	assert.Equal(t, "err-line\n", out.stderr)
}
