package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/hanzoai/node/internal/svcerr"
	"golang.org/x/crypto/hkdf"
)

// Mode selects how a Generator produces attestation content (spec §4.2).
// Mode selection never implicitly escalates: Simulation output is always
// marked Simulated in its AttestationResult.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeSimulation  Mode = "simulation"
	ModeDevelopment Mode = "development"
)

// Generator produces a tier-appropriate AttestationBlob.
type Generator struct {
	Mode         Mode
	Capabilities Capabilities

	// randSource supplies the nonce seed entropy; NewGenerator sets it to
	// crypto/rand.
	randSource io.Reader
}

// NewGenerator constructs a Generator for mode against the detected caps.
func NewGenerator(mode Mode, caps Capabilities) *Generator {
	return &Generator{Mode: mode, Capabilities: caps, randSource: rand.Reader}
}

// Generate produces the blob required by tier.
func (g *Generator) Generate(tier Tier) (*AttestationBlob, error) {
	switch tier {
	case Open:
		return nil, fmt.Errorf("attestation not required for Open tier: %w", errAttestationNotRequired)
	case AtRest:
		return g.generateSimEid()
	case CpuTee:
		return g.generateCpuTee()
	case GpuCc:
		return g.generateGpuCc()
	case GpuTeeIo:
		return g.generateGpuTeeIo()
	default:
		return nil, fmt.Errorf("unknown tier %v", tier)
	}
}

var errAttestationNotRequired = fmt.Errorf("AttestationNotRequired")

func (g *Generator) generateSimEid() (*AttestationBlob, error) {
	switch g.Mode {
	case ModeDevelopment:
		return &AttestationBlob{SimEid: &SimEidBlob{EID: devEID, Signature: devSignature}}, nil
	default:
		nonce, err := g.hkdfNonce("sim-eid", 32)
		if err != nil {
			return nil, err
		}
		sig := sha256.Sum256(append([]byte("sim-eid-sig:"), nonce...))
		return &AttestationBlob{SimEid: &SimEidBlob{EID: fmt.Sprintf("sim-%x", nonce[:8]), Signature: sig[:]}}, nil
	}
}

func (g *Generator) generateCpuTee() (*AttestationBlob, error) {
	switch {
	case g.Capabilities.SevSnp:
		return g.generateSevSnp()
	case g.Capabilities.Tdx:
		return g.generateTdx()
	default:
		return nil, svcerr.CapabilityMissing("cpu_tee")
	}
}

func (g *Generator) generateSevSnp() (*AttestationBlob, error) {
	report := make([]byte, sevSnpReportSize)
	blob := &SevSnpBlob{Report: report}
	if g.Mode == ModeDevelopment {
		fillDeterministic(report, "sev-snp-dev")
	} else {
		nonce, err := g.hkdfNonce("sev-snp", 64)
		if err != nil {
			return nil, err
		}
		copy(report[sevMeasurementOff:sevMeasurementOff+sevMeasurementLen], nonce)
		if g.Mode == ModeProduction {
			cert, err := g.hkdfNonce("sev-snp-vcek", 96)
			if err != nil {
				return nil, err
			}
			blob.VcekCert = cert
		}
	}
	return &AttestationBlob{SevSnp: blob}, nil
}

func (g *Generator) generateTdx() (*AttestationBlob, error) {
	quote := make([]byte, tdxQuoteSize)
	blob := &TdxBlob{Quote: quote}
	if g.Mode == ModeDevelopment {
		fillDeterministic(quote, "tdx-dev")
	} else {
		nonce, err := g.hkdfNonce("tdx", 32)
		if err != nil {
			return nil, err
		}
		copy(quote[tdxMRTDOff:tdxMRTDOff+tdxMRTDLen], nonce)
		if g.Mode == ModeProduction {
			collateral, err := g.hkdfNonce("tdx-collateral", 96)
			if err != nil {
				return nil, err
			}
			blob.Collateral = collateral
		}
	}
	return &AttestationBlob{Tdx: blob}, nil
}

func (g *Generator) generateGpuCc() (*AttestationBlob, error) {
	cpuBlob, err := g.generateCpuTee()
	if err != nil {
		return nil, err
	}

	report := make([]byte, h100ReportSize)
	copy(report[h100MarkerOff:h100MarkerOff+h100MarkerLen], nvccMarker[:])
	if g.Mode == ModeDevelopment {
		fillDeterministic(report[h100NonceOff:h100NonceOff+h100NonceLen], "h100-dev")
	} else {
		nonce, err := g.hkdfNonce("h100-cc", h100NonceLen)
		if err != nil {
			return nil, err
		}
		copy(report[h100NonceOff:h100NonceOff+h100NonceLen], nonce)
	}

	h100, err := NewH100Cc(report, cpuBlob)
	if err != nil {
		return nil, err
	}
	return &AttestationBlob{H100Cc: h100}, nil
}

func (g *Generator) generateGpuTeeIo() (*AttestationBlob, error) {
	report := make([]byte, blackwellReportSize)
	copy(report[bwMarkerOff:bwMarkerOff+bwMarkerLen], teioMarker[:])
	if g.Mode == ModeDevelopment {
		fillDeterministic(report[bwNonceOff:bwNonceOff+bwNonceLen], "blackwell-dev")
	} else {
		nonce, err := g.hkdfNonce("blackwell-tee-io", bwNonceLen)
		if err != nil {
			return nil, err
		}
		copy(report[bwNonceOff:bwNonceOff+bwNonceLen], nonce)
	}
	return &AttestationBlob{BlackwellTeeIo: &BlackwellTeeIoBlob{TeeIoReport: report}}, nil
}

// hkdfNonce derives deterministic-given-seed but production-unpredictable
// nonce bytes via HKDF over a fixed label plus fresh entropy (spec
// SPEC_FULL §C2/C3 detail).
func (g *Generator) hkdfNonce(label string, size int) ([]byte, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(g.randSource, seed); err != nil {
		return nil, svcerr.IO("generate_nonce", err)
	}
	kdf := hkdf.New(sha256.New, seed, nil, []byte("hanzo-node-attestation:"+label))
	out := make([]byte, size)
	if _, err := io.ReadFull(kdf, out); err != nil {
		return nil, svcerr.IO("derive_nonce", err)
	}
	return out, nil
}

func fillDeterministic(buf []byte, label string) {
	h := sha256.Sum256([]byte(label))
	for i := range buf {
		buf[i] = h[i%len(h)]
	}
}

var (
	devEID       = "dev-sim-eid-0000000000000000"
	devSignature = []byte("development-mode-constant-signature")
)
