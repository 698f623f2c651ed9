package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTripSimulation(t *testing.T) {
	caps := Capabilities{SevSnp: true, H100Cc: true, BlackwellTeeIo: true}
	gen := NewGenerator(ModeSimulation, caps)
	verifier := NewVerifier(ModeSimulation, nil)

	for _, tier := range []Tier{AtRest, CpuTee, GpuCc, GpuTeeIo} {
		blob, err := gen.Generate(tier)
		require.NoError(t, err, tier.String())

		result, err := verifier.Verify(blob)
		require.NoError(t, err, tier.String())
		assert.True(t, result.Verified)
		assert.GreaterOrEqual(t, result.MaxTier, tier)
		assert.True(t, result.Simulated)
	}
}

func TestAttestationResultMeasurementHex(t *testing.T) {
	gen := NewGenerator(ModeSimulation, Capabilities{SevSnp: true})
	verifier := NewVerifier(ModeSimulation, nil)

	blob, err := gen.Generate(CpuTee)
	require.NoError(t, err)
	result, err := verifier.Verify(blob)
	require.NoError(t, err)

	hexVal, ok := result.MeasurementHex("measurement")
	require.True(t, ok)
	assert.Contains(t, hexVal, "0x")

	_, ok = result.MeasurementHex("does_not_exist")
	assert.False(t, ok)
}

func TestGenerateOpenTierErrors(t *testing.T) {
	gen := NewGenerator(ModeSimulation, Capabilities{})
	_, err := gen.Generate(Open)
	assert.Error(t, err)
}

func TestH100CcNestingRejectsDeeperNesting(t *testing.T) {
	innerInner := &AttestationBlob{SimEid: &SimEidBlob{EID: "x", Signature: []byte{1}}}
	innerH100 := &H100CcBlob{GPUAttestation: make([]byte, h100ReportSize), CpuAttestation: &AttestationBlob{SevSnp: &SevSnpBlob{Report: make([]byte, sevSnpReportSize)}}}
	outer := &AttestationBlob{H100Cc: innerH100}
	_ = innerInner
	_ = outer

	_, err := NewH100Cc(make([]byte, h100ReportSize), &AttestationBlob{H100Cc: innerH100})
	assert.Error(t, err, "embedding a GPU variant as the CPU attestation must be rejected")
}

func TestVerifyFailsOnBadStructure(t *testing.T) {
	verifier := NewVerifier(ModeSimulation, nil)
	_, err := verifier.Verify(&AttestationBlob{SevSnp: &SevSnpBlob{Report: []byte{1, 2, 3}}})
	assert.Error(t, err)
}

func TestH100CcNestingRejectsSimEid(t *testing.T) {
	simEid := &AttestationBlob{SimEid: &SimEidBlob{EID: "x", Signature: []byte{1}}}
	_, err := NewH100Cc(make([]byte, h100ReportSize), simEid)
	assert.Error(t, err, "an AtRest-tier SimEid proof must not be accepted as the embedded CPU TEE attestation")
}

func TestVerifyH100CcRejectsEmbeddedSimEid(t *testing.T) {
	verifier := NewVerifier(ModeSimulation, nil)
	report := make([]byte, h100ReportSize)
	copy(report[h100MarkerOff:h100MarkerOff+h100MarkerLen], nvccMarker[:])

	blob := &AttestationBlob{H100Cc: &H100CcBlob{
		GPUAttestation: report,
		CpuAttestation: &AttestationBlob{SimEid: &SimEidBlob{EID: "x", Signature: []byte{1}}},
	}}

	_, err := verifier.Verify(blob)
	assert.Error(t, err, "verifying an H100Cc blob whose embedded proof is SimEid (AtRest) must fail, not verify as GpuCc")
}

func TestH100CcInnerFailurePropagates(t *testing.T) {
	verifier := NewVerifier(ModeSimulation, nil)
	badInner := &AttestationBlob{SevSnp: &SevSnpBlob{Report: []byte{1}}}
	blob := &AttestationBlob{H100Cc: &H100CcBlob{GPUAttestation: func() []byte {
		b := make([]byte, h100ReportSize)
		copy(b[h100MarkerOff:h100MarkerOff+h100MarkerLen], nvccMarker[:])
		return b
	}(), CpuAttestation: badInner}}

	_, err := verifier.Verify(blob)
	assert.Error(t, err)
}
