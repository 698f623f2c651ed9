package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeFS struct {
	present map[string]bool
	cmdOut  map[string]string
}

func (f fakeFS) Exists(path string) bool { return f.present[path] }

func (f fakeFS) RunCommand(name string, args ...string) (string, error) {
	return f.cmdOut[name], nil
}

func TestDetectNoFeatures(t *testing.T) {
	d := &Detector{FS: fakeFS{}, Flags: func() ([]string, error) { return nil, nil }}
	caps := d.Detect()
	assert.Equal(t, Open, caps.MaxSupportedTier())
}

func TestNewDetectorDefaultsToOSProbeFS(t *testing.T) {
	d := NewDetector(nil)
	assert.NotNil(t, d.FS)
	assert.IsType(t, osProbeFS{}, d.FS)
}

func TestOSProbeFSExistsReflectsRealFilesystem(t *testing.T) {
	fs := osProbeFS{}
	assert.True(t, fs.Exists("/"))
	assert.False(t, fs.Exists("/this/path/does/not/exist/ever"))
}

func TestOSProbeFSRunCommandReportsMissingBinary(t *testing.T) {
	fs := osProbeFS{}
	_, err := fs.RunCommand("this-binary-should-not-exist-anywhere")
	assert.Error(t, err)
}

func TestDetectSevSnpViaDeviceNode(t *testing.T) {
	fs := fakeFS{present: map[string]bool{"/dev/sev-guest": true}}
	d := &Detector{FS: fs, Flags: func() ([]string, error) { return nil, nil }}
	caps := d.Detect()
	assert.True(t, caps.SevSnp)
	assert.Equal(t, CpuTee, caps.MaxSupportedTier())
}

func TestDetectSevSnpViaCPUFlagFallback(t *testing.T) {
	fs := fakeFS{}
	d := &Detector{FS: fs, Flags: func() ([]string, error) { return []string{"sev_snp"}, nil }}
	caps := d.Detect()
	assert.True(t, caps.SevSnp)
}

func TestDetectH100ViaNvidiaSMIFallback(t *testing.T) {
	fs := fakeFS{cmdOut: map[string]string{"nvidia-smi": "H100-SXM5-80GB, 9.0\n"}}
	d := &Detector{FS: fs, Flags: func() ([]string, error) { return nil, nil }}
	caps := d.Detect()
	assert.True(t, caps.H100Cc)
	assert.Equal(t, GpuCc, caps.MaxSupportedTier())
}

func TestMaxSupportedTierPrefersHighestFeature(t *testing.T) {
	caps := Capabilities{SevSnp: true, H100Cc: true, BlackwellTeeIo: true}
	assert.Equal(t, GpuTeeIo, caps.MaxSupportedTier())
}
