package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is the latest known value of a channel, already coerced to the channel's kind
type Value struct {
	Kind Kind
	bits uint64
}

func floatValue(f float64) Value { return Value{Kind: KindFloat, bits: math.Float64bits(f)} }
func intValue(i int64) Value     { return Value{Kind: KindInt, bits: uint64(i)} }
func boolValue(b bool) Value {
	if b {
		return Value{Kind: KindBool, bits: 1}
	}
	return Value{Kind: KindBool}
}

// defaultValue builds the initial value of a channel
func defaultValue(c Channel) Value {
	switch c.Kind {
	case KindInt:
		return intValue(int64(c.Default))
	case KindBool:
		return boolValue(c.Default != 0)
	default:
		return floatValue(c.Default)
	}
}

// Float returns the value as float64 regardless of kind; bools are 0 or 1
func (v Value) Float() float64 {
	switch v.Kind {
	case KindInt:
		return float64(int64(v.bits))
	case KindBool:
		return float64(v.bits)
	default:
		return math.Float64frombits(v.bits)
	}
}

// Int returns the value as int64, truncating floats
func (v Value) Int() int64 {
	switch v.Kind {
	case KindFloat:
		return int64(math.Float64frombits(v.bits))
	default:
		return int64(v.bits)
	}
}

// Bool reports whether the value is non-zero
func (v Value) Bool() bool {
	return v.Float() != 0
}

// Interface returns the value as float64, int64 or bool depending on kind
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindInt:
		return v.Int()
	case KindBool:
		return v.Bool()
	default:
		return v.Float()
	}
}

func (v Value) String() string {
	return fmt.Sprint(v.Interface())
}

// MarshalJSON encodes the value as its natural JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// coerce converts a decoded packet scalar into a value of the given kind.
// Accepted inputs are JSON numbers, Go numeric types, bools and numeric-like strings.
func coerce(kind Kind, raw interface{}) (Value, error) {
	if kind == KindBool {
		switch r := raw.(type) {
		case bool:
			return boolValue(r), nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(r)); err == nil {
				return boolValue(b), nil
			}
		}
	}

	f, err := toFloat(raw)
	if err != nil {
		return Value{}, err
	}

	switch kind {
	case KindInt:
		if n, ok := raw.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return intValue(i), nil
			}
		}
		r := math.Round(f)
		if r >= math.MaxInt64 || r < math.MinInt64 {
			return Value{}, fmt.Errorf("%v overflows int64", f)
		}
		return intValue(int64(r)), nil
	case KindBool:
		return boolValue(f != 0), nil
	default:
		return floatValue(f), nil
	}
}

func toFloat(raw interface{}) (float64, error) {
	var f float64
	switch r := raw.(type) {
	case json.Number:
		v, err := r.Float64()
		if err != nil {
			return 0, err
		}
		f = v
	case float64:
		f = r
	case float32:
		f = float64(r)
	case int:
		f = float64(r)
	case int32:
		f = float64(r)
	case int64:
		f = float64(r)
	case uint:
		f = float64(r)
	case uint32:
		f = float64(r)
	case uint64:
		f = float64(r)
	case bool:
		if r {
			f = 1
		}
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric")
		}
		f = v
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return f, nil
}
