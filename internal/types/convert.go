package types

import (
	"strconv"
	"strings"
)

// ToInt64 converts a scanned column value to int64.
// Supports all integer and float kinds, bool, and decimal text in string or []byte form.
// Unsupported or unparsable values return 0 and false.
func ToInt64(v interface{}) (int64, bool) {
	switch i := v.(type) {
	case int64:
		return i, true
	case int:
		return int64(i), true
	case int32:
		return int64(i), true
	case int16:
		return int64(i), true
	case int8:
		return int64(i), true
	case uint:
		return int64(i), true
	case uint64:
		return int64(i), true
	case uint32:
		return int64(i), true
	case uint16:
		return int64(i), true
	case uint8:
		return int64(i), true
	case float64:
		return int64(i), true
	case float32:
		return int64(i), true
	case bool:
		if i {
			return 1, true
		}
		return 0, true
	case []byte:
		return parseInt(string(i))
	case string:
		return parseInt(i)
	default:
		return 0, false
	}
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// ToFloat64 converts a scanned column value to float64.
func ToFloat64(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case []byte:
		return parseFloat(string(f))
	case string:
		return parseFloat(f)
	case nil:
		return 0, false
	}
	if n, ok := ToInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ToBool converts a scanned column value to bool.
// Numbers are true when non-zero; text accepts the strconv.ParseBool spellings.
func ToBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case []byte:
		return parseBool(string(b))
	case string:
		return parseBool(b)
	case nil:
		return false, false
	}
	if n, ok := ToInt64(v); ok {
		return n != 0, true
	}
	return false, false
}

func parseBool(s string) (bool, bool) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}
