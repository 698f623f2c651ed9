package privacy

import (
	"os"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Capabilities is the immutable record of locally detected hardware/software
// privacy features (spec §3).
type Capabilities struct {
	SevSnp         bool
	Tdx            bool
	Sgx            bool
	H100Cc         bool
	BlackwellTeeIo bool
	SimEid         bool
}

// MaxSupportedTier derives the highest tier these capabilities can prove,
// per the rule in spec §3.
func (c Capabilities) MaxSupportedTier() Tier {
	switch {
	case c.BlackwellTeeIo:
		return GpuTeeIo
	case c.H100Cc:
		return GpuCc
	case c.SevSnp || c.Tdx || c.Sgx:
		return CpuTee
	case c.SimEid:
		return AtRest
	default:
		return Open
	}
}

// ProbeFS abstracts filesystem existence checks and command execution so
// capability detection is unit-testable without touching /dev.
type ProbeFS interface {
	// Exists reports whether path is present on the local filesystem.
	Exists(path string) bool
	// RunCommand runs name with args and returns combined stdout+stderr,
	// or an error if the command could not be run at all (not found is not
	// fatal — callers treat it as "feature absent").
	RunCommand(name string, args ...string) (string, error)
}

// Well-known attestation device paths (spec §6) — generic names, not
// platform-binding.
const (
	pathSevGuest   = "/dev/sev-guest"
	pathTdxGuest   = "/dev/tdx-guest"
	pathSgxEnclave = "/dev/sgx_enclave"
	pathNvidiaCc   = "/dev/nvidia-cc"
	pathNvidiaTeeIO = "/dev/nvidia-tee-io"
)

// cpuFlags is the subset of cpu.Info the detector consults; abstracted so
// tests can substitute a fixed flag set instead of calling gopsutil.
type cpuFlags func() ([]string, error)

func gopsutilFlags() ([]string, error) {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return nil, err
	}
	return infos[0].Flags, nil
}

// Detector runs Detect() against an injected ProbeFS and CPU flag source.
type Detector struct {
	FS    ProbeFS
	Flags cpuFlags
}

// NewDetector constructs a Detector using the real filesystem and gopsutil.
// A nil fs is replaced with osProbeFS, the real-OS implementation.
func NewDetector(fs ProbeFS) *Detector {
	if fs == nil {
		fs = osProbeFS{}
	}
	return &Detector{FS: fs, Flags: gopsutilFlags}
}

// osProbeFS is the production ProbeFS: os.Stat for device-node presence,
// os/exec for the CLI fallbacks. No embedded mocking here — this is the
// real-environment implementation tests substitute fakeFS for.
type osProbeFS struct{}

func (osProbeFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (osProbeFS) RunCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	return string(out), err
}

// Detect probes, in the fixed order spec §4.1 requires, and returns
// Capabilities. Probe failures are never fatal — they are recorded as
// "feature absent".
func (d *Detector) Detect() Capabilities {
	var caps Capabilities

	caps.SevSnp = d.FS.Exists(pathSevGuest)
	caps.Tdx = d.FS.Exists(pathTdxGuest)
	caps.Sgx = d.FS.Exists(pathSgxEnclave)

	if flags, err := d.Flags(); err == nil {
		for _, f := range flags {
			switch strings.ToLower(f) {
			case "sev_snp", "sev-snp":
				caps.SevSnp = true
			case "tdx", "tdx_guest":
				caps.Tdx = true
			}
		}
	}

	caps.H100Cc = d.FS.Exists(pathNvidiaCc) || d.probeGPU("h100")
	caps.BlackwellTeeIo = d.FS.Exists(pathNvidiaTeeIO) || d.probeGPU("blackwell") || d.probeGPU("gb")

	caps.SimEid = d.probeSmartcard()

	return caps
}

// probeGPU shells out to nvidia-smi as a best-effort fallback when the
// device node itself is unreadable (spec Design Notes: external CLI probes
// are intentional and never fatal).
func (d *Detector) probeGPU(family string) bool {
	out, err := d.FS.RunCommand("nvidia-smi", "--query-gpu=name,compute_cap", "--format=csv,noheader")
	if err != nil || out == "" {
		return false
	}
	lower := strings.ToLower(out)
	switch family {
	case "h100":
		return strings.Contains(lower, "h100")
	case "blackwell", "gb":
		return strings.Contains(lower, "blackwell") || strings.Contains(lower, "gb100") || strings.Contains(lower, "gb200")
	}
	return false
}

// probeSmartcard checks for a SIM/eSIM modem via mmcli/qmicli CLI fallbacks.
func (d *Detector) probeSmartcard() bool {
	if out, err := d.FS.RunCommand("mmcli", "-L"); err == nil && strings.Contains(out, "/Modem/") {
		return true
	}
	if out, err := d.FS.RunCommand("qmicli", "--dms-get-ids"); err == nil && strings.TrimSpace(out) != "" {
		return true
	}
	return false
}
