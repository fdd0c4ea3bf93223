package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// Compare compares two values using the specified operator.
//
// Numbers compare numerically regardless of their Go type and strings
// compare lexically. Ordering operands of different kinds is an error;
// equality across kinds is false, except that true and false equal 1 and 0.
func Compare(left, right any, op string) (bool, error) {
	switch op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "<", "<=", ">", ">=":
		return order(left, right, op)
	case "in":
		return contains(right, left)
	case "not in":
		ok, err := contains(right, left)
		return !ok, err
	case "contains":
		return contains(left, right)
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

func equal(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if l, ok := toNumber(left); ok {
		if b, ok := right.(bool); ok {
			return l == boolNumber(b)
		}
		r, ok := toNumber(right)
		return ok && l == r
	}
	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		return ok && l == r
	case bool:
		if r, ok := toNumber(right); ok {
			return boolNumber(l) == r
		}
		r, ok := right.(bool)
		return ok && l == r
	}
	return reflect.DeepEqual(left, right)
}

// boolNumber is the numeric value a bool takes in equality: 1 or 0.
func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func order(left, right any, op string) (bool, error) {
	if l, ok := toNumber(left); ok {
		if r, ok := toNumber(right); ok {
			return orderResult(compareFloat(l, r), op), nil
		}
	}
	if l, ok := left.(string); ok {
		if r, ok := right.(string); ok {
			return orderResult(strings.Compare(l, r), op), nil
		}
	}
	return false, &EvalError{Msg: fmt.Sprintf("cannot order %T %s %T", left, op, right)}
}

func compareFloat(l, r float64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func orderResult(cmp int, op string) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// contains reports whether container holds item: substring for strings,
// key membership for mappings, element equality for sequences.
func contains(container, item any) (bool, error) {
	if s, ok := container.(string); ok {
		sub, ok := item.(string)
		if !ok {
			return false, &EvalError{Msg: fmt.Sprintf("string membership requires a string, got %T", item)}
		}
		return strings.Contains(s, sub), nil
	}
	if isMapping(container) {
		_, found, err := lookup(container, item)
		return found, err
	}
	if container != nil {
		rv := reflect.ValueOf(container)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for i := 0; i < rv.Len(); i++ {
				if equal(rv.Index(i).Interface(), item) {
					return true, nil
				}
			}
			return false, nil
		}
	}
	return false, &EvalError{Msg: fmt.Sprintf("%T is not a container", container)}
}
