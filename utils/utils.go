package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConvertToFloat64 converts a decoded record field to a float64. The boolean
// is false when the field does not hold a number.
func ConvertToFloat64(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case []byte:
		return ConvertToFloat64(string(v))
	}
	return 0, false
}

// ConvertToUint converts a decoded record field to a count. Negative and
// non numeric fields are rejected.
func ConvertToUint(v interface{}) (uint, bool) {
	switch v := v.(type) {
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		return uint(u), err == nil
	case []byte:
		return ConvertToUint(string(v))
	}
	f, ok := ConvertToFloat64(v)
	if !ok || f < 0 {
		return 0, false
	}
	return uint(f), true
}

func Find[T any](array []T, test func(T) bool) int {
	found := -1
	for i, v := range array {
		if test(v) {
			found = i
			break
		}
	}
	return found
}

func Every[T any](array []T, test func(T) bool) bool {
	for _, v := range array {
		if !test(v) {
			return false
		}
	}
	return true
}

// Helper function to convert interface{} to string
func ToString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
