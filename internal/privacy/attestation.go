package privacy

import (
	"fmt"

	nodehex "github.com/hanzoai/node/infrastructure/hex"
)

// AttestationBlob is the sum type from spec §3. Exactly one variant field is
// non-nil on any valid value; the type has no constructor, so nothing
// enforces that invariant when a value is built.
type AttestationBlob struct {
	SimEid         *SimEidBlob
	SevSnp         *SevSnpBlob
	Tdx            *TdxBlob
	H100Cc         *H100CcBlob
	BlackwellTeeIo *BlackwellTeeIoBlob
}

// SimEidBlob is the AtRest-tier simulated-identity attestation.
type SimEidBlob struct {
	EID       string
	Signature []byte
}

// SevSnpBlob is a CPU-TEE AMD SEV-SNP attestation report.
type SevSnpBlob struct {
	Report            []byte // sevSnpReportSize bytes
	VcekCert          []byte
	PlatformCertChain []byte
}

// TdxBlob is a CPU-TEE Intel TDX quote.
type TdxBlob struct {
	Quote      []byte // tdxQuoteSize bytes
	Collateral []byte
}

// MigConfig describes an optional GPU MIG partition.
type MigConfig struct {
	InstanceID   uint32
	MemoryMiB    uint64
	ComputeUnits uint32
}

// H100CcBlob is a GpuCc-tier attestation. CpuAttestation embeds exactly one
// level of CPU-TEE nesting (SevSnp or Tdx only) per spec §3/§9.
type H100CcBlob struct {
	GPUAttestation []byte // h100ReportSize bytes
	CpuAttestation *AttestationBlob
}

// BlackwellTeeIoBlob is a GpuTeeIo-tier attestation.
type BlackwellTeeIoBlob struct {
	TeeIoReport []byte // blackwellReportSize bytes
	Mig         *MigConfig
}

// Tier returns the privacy tier this blob variant targets.
func (b AttestationBlob) Tier() Tier {
	switch {
	case b.SimEid != nil:
		return AtRest
	case b.SevSnp != nil, b.Tdx != nil:
		return CpuTee
	case b.H100Cc != nil:
		return GpuCc
	case b.BlackwellTeeIo != nil:
		return GpuTeeIo
	default:
		return Open
	}
}

// validateNesting rejects any CpuAttestation that is not itself a genuine
// CPU-TEE variant — the spec permits exactly one level of nesting, and
// that level must be CpuTee-tier (SevSnp or Tdx). A SimEid (AtRest-tier
// simulated identity) embedded inside an H100Cc blob must not verify as
// GpuCc: AtRest attests nothing about the CPU's execution environment.
func (b *H100CcBlob) validateNesting() error {
	if b.CpuAttestation == nil {
		return nil
	}
	inner := b.CpuAttestation
	if inner.SevSnp == nil && inner.Tdx == nil {
		return fmt.Errorf("h100cc: embedded attestation must be a CPU TEE variant (SevSnp or Tdx)")
	}
	return nil
}

// NewH100Cc constructs a GpuCc blob, rejecting nesting deeper than one level.
func NewH100Cc(gpuAttestation []byte, cpuAttestation *AttestationBlob) (*H100CcBlob, error) {
	blob := &H100CcBlob{GPUAttestation: gpuAttestation, CpuAttestation: cpuAttestation}
	if err := blob.validateNesting(); err != nil {
		return nil, err
	}
	return blob, nil
}

// Measurement is a named measurement value extracted during verification.
type Measurement struct {
	Name  string
	Value []byte
}

// AttestationResult is the verified outcome of AttestationBlob verification
// (spec §3). A result is usable iff Verified && now < ExpiresAt.
type AttestationResult struct {
	Verified     bool
	MaxTier      Tier
	Measurements []Measurement
	PlatformInfo map[string]string
	ExpiresAtUnix int64 // unix seconds; avoids embedding time.Time for deterministic byte-round-trips
	Simulated    bool
}

// MeasurementHex renders a named measurement as a "0x"-prefixed hex string
// for audit metadata and logs, where raw bytes would be unreadable.
func (r AttestationResult) MeasurementHex(name string) (string, bool) {
	for _, m := range r.Measurements {
		if m.Name == name {
			return nodehex.EncodeWithPrefix(m.Value), true
		}
	}
	return "", false
}
