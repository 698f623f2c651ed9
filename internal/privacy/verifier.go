package privacy

import (
	"time"

	"github.com/hanzoai/node/internal/svcerr"
)

// Clock abstracts time.Now for deterministic tests (spec §6 external Clock).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production Clock.
var SystemClock Clock = systemClock{}

// Verifier validates an AttestationBlob and derives a verified
// AttestationResult (spec §4.3).
type Verifier struct {
	Mode  Mode
	Clock Clock
}

// NewVerifier constructs a Verifier for mode using clk (SystemClock in production).
func NewVerifier(mode Mode, clk Clock) *Verifier {
	if clk == nil {
		clk = SystemClock
	}
	return &Verifier{Mode: mode, Clock: clk}
}

// Verify runs the four-step fail-closed verification pipeline (spec §4.3).
func (v *Verifier) Verify(blob *AttestationBlob) (*AttestationResult, error) {
	if blob == nil {
		return nil, svcerr.AttestationInvalid("nil blob")
	}

	switch {
	case blob.SimEid != nil:
		return v.verifySimEid(blob.SimEid)
	case blob.SevSnp != nil:
		return v.verifySevSnp(blob.SevSnp)
	case blob.Tdx != nil:
		return v.verifyTdx(blob.Tdx)
	case blob.H100Cc != nil:
		return v.verifyH100Cc(blob.H100Cc)
	case blob.BlackwellTeeIo != nil:
		return v.verifyBlackwellTeeIo(blob.BlackwellTeeIo)
	default:
		return nil, svcerr.AttestationInvalid("no recognized variant")
	}
}

func (v *Verifier) isDevOrSim() bool { return v.Mode == ModeDevelopment || v.Mode == ModeSimulation }

func (v *Verifier) result(tier Tier, measurements []Measurement, platform map[string]string) *AttestationResult {
	return &AttestationResult{
		Verified:      true,
		MaxTier:       tier,
		Measurements:  measurements,
		PlatformInfo:  platform,
		ExpiresAtUnix: v.Clock.Now().Add(tier.TTL()).Unix(),
		Simulated:     v.Mode == ModeSimulation,
	}
}

func (v *Verifier) verifySimEid(blob *SimEidBlob) (*AttestationResult, error) {
	if blob.EID == "" || len(blob.Signature) == 0 {
		return nil, svcerr.AttestationInvalid("sim_eid: missing eid or signature")
	}
	return v.result(AtRest, []Measurement{{Name: "sim_eid", Value: []byte(blob.EID)}}, map[string]string{"variant": "sim_eid"}), nil
}

func (v *Verifier) verifySevSnp(blob *SevSnpBlob) (*AttestationResult, error) {
	if len(blob.Report) != sevSnpReportSize {
		return nil, svcerr.AttestationInvalid("sev_snp: report must be 4096 bytes")
	}
	if !v.isDevOrSim() {
		// Production verification requires the vendor certificate chain and
		// signature check; not modeled here beyond the structural gate.
		if len(blob.VcekCert) == 0 {
			return nil, svcerr.AttestationInvalid("sev_snp: missing VCEK certificate")
		}
	}
	measurement := append([]byte(nil), blob.Report[sevMeasurementOff:sevMeasurementOff+sevMeasurementLen]...)
	return v.result(CpuTee, []Measurement{{Name: "measurement", Value: measurement}}, map[string]string{"variant": "sev_snp"}), nil
}

func (v *Verifier) verifyTdx(blob *TdxBlob) (*AttestationResult, error) {
	if len(blob.Quote) != tdxQuoteSize {
		return nil, svcerr.AttestationInvalid("tdx: quote must be 2048 bytes")
	}
	if !v.isDevOrSim() && len(blob.Collateral) == 0 {
		return nil, svcerr.AttestationInvalid("tdx: missing collateral")
	}
	mrtd := append([]byte(nil), blob.Quote[tdxMRTDOff:tdxMRTDOff+tdxMRTDLen]...)
	return v.result(CpuTee, []Measurement{{Name: "mrtd", Value: mrtd}}, map[string]string{"variant": "tdx"}), nil
}

func (v *Verifier) verifyH100Cc(blob *H100CcBlob) (*AttestationResult, error) {
	if len(blob.GPUAttestation) != h100ReportSize {
		return nil, svcerr.AttestationInvalid("h100cc: report must be 1024 bytes")
	}
	if string(blob.GPUAttestation[h100MarkerOff:h100MarkerOff+h100MarkerLen]) != string(nvccMarker[:]) {
		return nil, svcerr.AttestationInvalid("h100cc: missing NVCC marker")
	}
	if blob.CpuAttestation == nil {
		return nil, svcerr.AttestationInvalid("h100cc: must embed a verified CPU TEE proof")
	}
	if err := blob.validateNesting(); err != nil {
		return nil, svcerr.AttestationInvalid(err.Error())
	}
	inner, err := v.Verify(blob.CpuAttestation)
	if err != nil {
		// Failure of the inner proof is failure of the outer (spec §4.3.4).
		return nil, svcerr.AttestationInvalid("h100cc: embedded CPU attestation failed: " + err.Error())
	}
	if inner.MaxTier != CpuTee {
		// Belt and suspenders: validateNesting already rejects a SimEid
		// (or any non-CpuTee) variant field, but a forged CpuAttestation
		// could in principle still verify to a tier other than CpuTee
		// (e.g. a future variant added to validateNesting's allow-list
		// without a corresponding Tier() case) — this check makes the
		// tier requirement the thing spec §8 Testable Property 4
		// actually tests, not just the variant shape.
		return nil, svcerr.AttestationInvalid("h100cc: embedded attestation verified to tier " + inner.MaxTier.String() + ", not CpuTee")
	}
	firmware := append([]byte(nil), blob.GPUAttestation[h100FirmwareOff:h100FirmwareOff+h100FirmwareLen]...)
	measurements := append([]Measurement{{Name: "gpu_firmware", Value: firmware}}, inner.Measurements...)
	return v.result(GpuCc, measurements, map[string]string{"variant": "h100cc"}), nil
}

func (v *Verifier) verifyBlackwellTeeIo(blob *BlackwellTeeIoBlob) (*AttestationResult, error) {
	if len(blob.TeeIoReport) != blackwellReportSize {
		return nil, svcerr.AttestationInvalid("blackwell: report must be 2048 bytes")
	}
	if string(blob.TeeIoReport[bwMarkerOff:bwMarkerOff+bwMarkerLen]) != string(teioMarker[:]) {
		return nil, svcerr.AttestationInvalid("blackwell: missing TEIO marker")
	}
	if blob.Mig != nil && blob.TeeIoReport[bwMigEnabledOff] == 0 {
		return nil, svcerr.AttestationInvalid("blackwell: MIG config present but MIG-enabled flag unset")
	}
	firmware := append([]byte(nil), blob.TeeIoReport[bwFirmwareOff:bwFirmwareOff+bwFirmwareLen]...)
	return v.result(GpuTeeIo, []Measurement{{Name: "firmware", Value: firmware}}, map[string]string{"variant": "blackwell_tee_io"}), nil
}

// IsUsable reports whether r is verified and not yet expired at clk.Now().
func IsUsable(r *AttestationResult, clk Clock) bool {
	if r == nil || !r.Verified {
		return false
	}
	if clk == nil {
		clk = SystemClock
	}
	return clk.Now().Unix() < r.ExpiresAtUnix
}
