package expr

import (
	"encoding/json"
	"fmt"
	"reflect"
	"unicode/utf8"
)

// IsTruthy returns whether a value is truthy.
// nil is false, bools return their value, empty strings and collections are
// false, zero numbers are false, everything else is true.
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	}
	if f, ok := toNumber(v); ok {
		return f != 0
	}
	if l, ok := length(v); ok {
		return l > 0
	}
	return true
}

// ToFloat64 converts a numeric value to float64.
// Returns 0 for values that are not numbers.
func ToFloat64(v any) float64 {
	f, _ := toNumber(v)
	return f
}

// toNumber reports whether v is a number and returns it as float64.
// Booleans and numeric-looking strings are not numbers.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint8:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

func isMapping(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(map[string]any); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

// lookup indexes a mapping by string key or a sequence by integer position.
// Strings are indexed by character, not byte. Negative positions count from
// the end. found is false when the key or
// position does not exist; err is set when the target cannot be indexed.
func lookup(target, key any) (v any, found bool, err error) {
	if m, ok := target.(map[string]any); ok {
		k, ok := key.(string)
		if !ok {
			return nil, false, &EvalError{Msg: fmt.Sprintf("mapping key must be a string, got %T", key)}
		}
		v, found = m[k]
		return v, found, nil
	}

	if target == nil {
		return nil, false, &EvalError{Msg: "cannot index nil"}
	}

	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, &EvalError{Msg: fmt.Sprintf("unsupported mapping key type %s", rv.Type().Key())}
		}
		k, ok := key.(string)
		if !ok {
			return nil, false, &EvalError{Msg: fmt.Sprintf("mapping key must be a string, got %T", key)}
		}
		mv := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false, nil
		}
		return mv.Interface(), true, nil
	case reflect.Slice, reflect.Array, reflect.String:
		f, ok := toNumber(key)
		if !ok || f != float64(int(f)) {
			return nil, false, &EvalError{Msg: fmt.Sprintf("sequence index must be an integer, got %T", key)}
		}
		if rv.Kind() == reflect.String {
			runes := []rune(rv.String())
			i, ok := position(int(f), len(runes))
			if !ok {
				return nil, false, nil
			}
			return string(runes[i]), true, nil
		}
		i, ok := position(int(f), rv.Len())
		if !ok {
			return nil, false, nil
		}
		return rv.Index(i).Interface(), true, nil
	}
	return nil, false, &EvalError{Msg: fmt.Sprintf("cannot index %T", target)}
}

// position resolves a possibly negative index against a sequence of size n.
func position(i, n int) (int, bool) {
	if i < 0 {
		i += n
	}
	return i, i >= 0 && i < n
}

// length counts elements, or characters for strings.
func length(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return utf8.RuneCountInString(rv.String()), true
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len(), true
	}
	return 0, false
}
