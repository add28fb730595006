package store

import (
	"fmt"
	"strconv"
	"strings"
)

// CounterKey names one denormalized counter: a field of one record.
type CounterKey struct {
	Model string
	ID    int64
	Field string
}

// String formats the key as "model:id:field".
func (k CounterKey) String() string {
	return k.Model + ":" + strconv.FormatInt(k.ID, 10) + ":" + k.Field
}

// ParseCounterKey is the inverse of CounterKey.String.
func ParseCounterKey(s string) (CounterKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return CounterKey{}, fmt.Errorf("malformed counter key %q", s)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return CounterKey{}, fmt.Errorf("malformed counter key %q", s)
	}
	return CounterKey{Model: parts[0], ID: id, Field: parts[2]}, nil
}
