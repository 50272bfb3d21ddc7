package doc

import (
	"github.com/tiendc/go-deepcopy"
)

// cloneValue deep-copies composite inline values before they enter a
// container, so callers holding the original cannot mutate shared state
// behind the transaction machinery's back. Scalars pass through.
func cloneValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case map[string]interface{}:
		var out map[string]interface{}
		if err := deepcopy.Copy(&out, vv); err != nil {
			return v
		}
		return out
	case []interface{}:
		var out []interface{}
		if err := deepcopy.Copy(&out, vv); err != nil {
			return v
		}
		return out
	default:
		return v
	}
}
