// internal/service/metering/estimate.go
package metering

import (
	"math"
	"strings"
)

// tokensPerWord is the fixed estimation ratio for free-form text.
const tokensPerWord = 1.3

// EstimateTokens sizes arbitrary request/response payloads for metering.
// Strings are estimated at a fixed tokens-per-word ratio; composite inputs sum
// their parts recursively. Any non-empty input estimates at least 1 so no
// invocation can ever be metered at exactly zero.
func EstimateTokens(input interface{}) int64 {
	est := estimate(input)
	if est == 0 && !isEmpty(input) {
		return 1
	}
	return est
}

func estimate(input interface{}) int64 {
	switch v := input.(type) {
	case nil:
		return 0
	case string:
		words := len(strings.Fields(v))
		if words == 0 {
			return 0
		}
		return int64(math.Ceil(float64(words) * tokensPerWord))
	case []interface{}:
		var sum int64
		for _, item := range v {
			sum += EstimateTokens(item)
		}
		return sum
	case map[string]interface{}:
		var sum int64
		for _, item := range v {
			sum += EstimateTokens(item)
		}
		return sum
	case bool:
		return 1
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return 1
	default:
		// Unknown scalar shapes still count as one unit.
		return 1
	}
}

func isEmpty(input interface{}) bool {
	switch v := input.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	}
	return false
}
