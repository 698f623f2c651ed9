package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleValue() map[string]interface{} {
	return map[string]interface{}{
		"user_password": "hunnter2",
		"api_key":       "abc123",
		"auth_token":    "tok-xyz",
		"name":          "alice",
		"nested": map[string]interface{}{
			"secret_value": "hidden",
			"tags":         []interface{}{"a", "b"},
		},
	}
}

func TestSanitizeOpenIsNoop(t *testing.T) {
	v := sampleValue()
	assert.Equal(t, v, Sanitize(v, Open))
}

func TestSanitizeAtRestRedactsPasswordSecretKey(t *testing.T) {
	out := Sanitize(sampleValue(), AtRest).(map[string]interface{})
	assert.Equal(t, redactedSentinel, out["user_password"])
	assert.Equal(t, redactedSentinel, out["api_key"])
	assert.Equal(t, "tok-xyz", out["auth_token"], "token not redacted until CpuTee")
	assert.Equal(t, "alice", out["name"])
}

func TestSanitizeCpuTeeAlsoRedactsTokenAndCredential(t *testing.T) {
	out := Sanitize(sampleValue(), CpuTee).(map[string]interface{})
	assert.Equal(t, redactedSentinel, out["auth_token"])
}

func TestSanitizeGpuTiersClassifyEverything(t *testing.T) {
	out := Sanitize(sampleValue(), GpuCc).(map[string]interface{})
	assert.Equal(t, redactedSentinel, out["name"])
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, redactedSentinel, nested["tags"])
}

func TestSanitizeIdempotent(t *testing.T) {
	for _, tier := range []Tier{Open, AtRest, CpuTee, GpuCc, GpuTeeIo} {
		once := Sanitize(sampleValue(), tier)
		twice := Sanitize(once, tier)
		assert.Equal(t, once, twice, tier.String())
	}
}

func TestSanitizeMonotonic(t *testing.T) {
	v := sampleValue()
	atRest := Sanitize(v, AtRest).(map[string]interface{})
	cpuTee := Sanitize(v, CpuTee).(map[string]interface{})

	// Everything AtRest redacts, CpuTee redacts too.
	for k, val := range atRest {
		if val == redactedSentinel {
			assert.Equal(t, redactedSentinel, cpuTee[k], k)
		}
	}
}
