package table

import (
	"reflect"

	"github.com/spf13/cast"

	"github.com/kasuganosora/doctable/pkg/doc"
)

// Filter is a pure predicate over a row's shallow container view. Filters
// inspect inline fields through the container's direct Get and never
// trigger a full row decode, which keeps them cheap enough to evaluate on
// every table-index event. A filter can therefore only see fields stored
// inline; referencing a sub-container field yields implementation-defined
// results.
type Filter func(row *doc.Map) bool

// Any matches every row.
func Any() Filter {
	return func(*doc.Map) bool { return true }
}

// Eq matches rows whose inline field equals the given value. Numeric
// values compare by coerced float64 so int literals match stored numbers.
func Eq(field string, value interface{}) Filter {
	return func(row *doc.Map) bool {
		v, ok := row.Get(field)
		if !ok {
			return false
		}
		return equalValues(v, value)
	}
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return func(row *doc.Map) bool { return !f(row) }
}

// And matches rows matching every filter, short-circuit.
func And(filters ...Filter) Filter {
	return func(row *doc.Map) bool {
		for _, f := range filters {
			if !f(row) {
				return false
			}
		}
		return true
	}
}

// Or matches rows matching at least one filter, short-circuit.
func Or(filters ...Filter) Filter {
	return func(row *doc.Map) bool {
		for _, f := range filters {
			if f(row) {
				return true
			}
		}
		return false
	}
}

func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) && isNumeric(b) {
		af, errA := cast.ToFloat64E(a)
		bf, errB := cast.ToFloat64E(b)
		return errA == nil && errB == nil && af == bf
	}
	switch a.(type) {
	case string, bool:
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
