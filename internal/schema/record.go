package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Record is one stored row of a model. Values holds stored scalar fields
// keyed by field name, including "id", typed as int64, string or time.Time.
type Record struct {
	Model  string
	ID     int64
	Values map[string]any
}

// Get returns a stored value.
func (r Record) Get(field string) any {
	return r.Values[field]
}

// Int returns a stored integer value, or zero when absent.
func (r Record) Int(field string) int64 {
	v, _ := r.Values[field].(int64)
	return v
}

// Coerce converts a decoded wire value into the canonical Go type of f.
func Coerce(f Field, v any) (any, error) {
	switch f.Kind {
	case KindInt:
		return CoerceInt(v)
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s expects a string, got %s", f.Name, describe(v))
		}
		return s, nil
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("%s expects an RFC 3339 timestamp, got %q", f.Name, t)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("%s expects an RFC 3339 timestamp, got %s", f.Name, describe(v))
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s expects a boolean, got %s", f.Name, describe(v))
		}
		return b, nil
	}
	return nil, fmt.Errorf("%s has unsupported kind %s", f.Name, f.Kind)
}

// CoerceInt converts a decoded JSON number into an int64 id or count.
func CoerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n.String())
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	}
	return 0, fmt.Errorf("expected an integer, got %s", describe(v))
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	return int64(f), nil
}

// Compare orders two canonical values of the same kind: -1, 0 or 1.
func Compare(a, b any) int {
	switch x := a.(type) {
	case int64:
		y, _ := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64, int, int64:
		return "a number"
	case []any:
		return "a list"
	case map[string]any:
		return "an object"
	}
	return fmt.Sprintf("%T", v)
}
