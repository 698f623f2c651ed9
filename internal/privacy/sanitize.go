package privacy

import "strings"

// redactedSentinel is the constant classified value substituted at GpuCc/GpuTeeIo.
const redactedSentinel = "[CLASSIFIED]"

var (
	atRestRedactSubstrings = []string{"password", "secret", "key"}
	cpuTeeRedactSubstrings = append(append([]string{}, atRestRedactSubstrings...), "token", "credential")
)

func keyMatchesAny(key string, substrings []string) bool {
	lower := strings.ToLower(key)
	for _, s := range substrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Sanitize applies the tier-dependent redaction in spec §4.6 to v,
// traversing nested maps/arrays recursively. Sanitize is idempotent and
// monotonic in tier (spec §8 properties 5, 6).
func Sanitize(v interface{}, tier Tier) interface{} {
	switch tier {
	case Open:
		return v
	case AtRest:
		return redactByKey(v, atRestRedactSubstrings)
	case CpuTee:
		return redactByKey(v, cpuTeeRedactSubstrings)
	case GpuCc, GpuTeeIo:
		return classifyLeaves(v)
	default:
		return v
	}
}

func redactByKey(v interface{}, substrings []string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if keyMatchesAny(k, substrings) {
				out[k] = redactedSentinel
				continue
			}
			out[k] = redactByKey(inner, substrings)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = redactByKey(inner, substrings)
		}
		return out
	default:
		return v
	}
}

func classifyLeaves(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = classifyLeaves(inner)
		}
		return out
	case []interface{}:
		return redactedSentinel
	case string, float64, int, int64, bool, nil:
		return redactedSentinel
	default:
		return redactedSentinel
	}
}
