package privacy

import "encoding/binary"

// Byte layouts from spec §6. Offsets are reproduced bit-exactly so blobs
// remain interoperable with external verification services; each accessor
// is a thin encoding/binary view over a fixed-size buffer.

const (
	sevSnpReportSize = 4096
	sevVersionOff, sevVersionLen           = 0, 4
	sevSigAlgoOff, sevSigAlgoLen           = 4, 4
	sevGuestPolicyOff                      = 8 // LE u64, 8..16
	sevPlatformVersionOff, sevPlatformLen  = 16, 8
	sevMeasurementOff, sevMeasurementLen   = 32, 48
	sevHostDataOff, sevHostDataLen         = 80, 32
	sevIDKeyDigestOff, sevIDKeyDigestLen   = 112, 48
	sevAuthKeyDigestOff, sevAuthKeyLen     = 160, 48
	sevReportIDOff, sevReportIDLen         = 208, 32
	sevReportIDMAOff, sevReportIDMALen     = 240, 32
	sevTCBVersionOff, sevTCBVersionLen     = 272, 8
	sevSignatureOff, sevSignatureLen       = 672, 96
)

const (
	tdxQuoteSize = 2048
	tdxVersionOff, tdxVersionLen       = 0, 2
	tdxAttKeyTypeOff, tdxAttKeyTypeLen = 2, 2
	tdxTeeTypeOff, tdxTeeTypeLen       = 4, 4
	tdxQeSvnOff, tdxQeSvnLen           = 8, 2
	tdxPceSvnOff, tdxPceSvnLen         = 10, 2
	tdxQeVendorIDOff, tdxQeVendorIDLen = 12, 16
	tdxUserDataOff, tdxUserDataLen     = 28, 64
	tdxMRTDOff, tdxMRTDLen             = 100, 32
	tdxConfigIDOff, tdxConfigIDLen     = 132, 32
	tdxAttributesOff                  = 164 // LE u64, 164..172
	tdxXFAMOff                        = 172 // LE u64, 172..180
	tdxMRSignerOff, tdxMRSignerLen     = 180, 32
	tdxSignatureOff, tdxSignatureLen   = 432, 64
)

const (
	h100ReportSize = 1024
	h100MarkerOff, h100MarkerLen         = 0, 4
	h100VersionOff, h100VersionLen       = 4, 2
	h100UUIDHashOff, h100UUIDHashLen     = 16, 32
	h100FirmwareOff, h100FirmwareLen     = 48, 32
	h100SecureBootOff                    = 80 // LE u32, 80..84
	h100MemoryMiBOff                     = 84 // LE u64, 84..92
	h100ComputeCapOff, h100ComputeCapLen = 92, 4
	h100NonceOff, h100NonceLen           = 96, 32
	h100SignatureOff, h100SignatureLen   = 512, 128
)

const (
	blackwellReportSize = 2048
	bwMarkerOff, bwMarkerLen             = 0, 4
	bwVersionOff, bwVersionLen           = 4, 2
	bwUUIDHashOff, bwUUIDHashLen         = 16, 64
	bwCapFlagsOff, bwCapFlagsLen         = 80, 4
	bwFirmwareOff, bwFirmwareLen         = 84, 64
	bwMigInstanceIDOff                   = 148 // u32, 148..152
	bwMigMemoryMiBOff                    = 152 // u64, 152..160
	bwMigComputeUnitsOff                 = 160 // u32, 160..164
	bwMigEnabledOff                      = 164 // bool byte
	bwIOIsolationOff                     = 165 // bool byte
	bwMemEncryptionOff, bwMemEncLen      = 166, 4
	bwNonceOff, bwNonceLen               = 170, 32
	bwRootOfTrustOff, bwRootOfTrustLen   = 202, 64
	bwSignatureOff, bwSignatureLen       = 1024, 64
)

var nvccMarker = [4]byte{'N', 'V', 'C', 'C'}
var teioMarker = [4]byte{'T', 'E', 'I', 'O'}

func putU64(buf []byte, off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:off+8], v) }
func getU64(buf []byte, off int) uint64    { return binary.LittleEndian.Uint64(buf[off : off+8]) }
func putU32(buf []byte, off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:off+4], v) }
func getU32(buf []byte, off int) uint32    { return binary.LittleEndian.Uint32(buf[off : off+4]) }
