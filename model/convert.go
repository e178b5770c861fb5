package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Conversion helpers used by the field dispatch tables. They accept the
// loose types produced by JSON decoding and query strings and convert them
// into the field's native type, failing on anything ambiguous.

// AsString converts a value to a string.
func AsString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

// AsInt converts a value to an int64. Floats must be integral.
func AsInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("cannot convert %v to integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

// AsFloat converts a value to a float64.
func AsFloat(v interface{}) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case int64:
		return float64(f), nil
	case int:
		return float64(f), nil
	case json.Number:
		return f.Float64()
	case string:
		return strconv.ParseFloat(f, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

// AsBool converts a value to a bool.
func AsBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsTime converts a value to a time. Strings must be ISO datetimes; an
// unparseable string is an error, not a zero time.
func AsTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as datetime", t)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to datetime", v)
}
