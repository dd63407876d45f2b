// Package expression evaluates rule condition operators against node field
// values. Operators are registered in a lookup table so the set can be
// extended without touching the evaluation path.
package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skovalik/cognograph/types/rule"
)

// OperatorFunc evaluates a single operator given the extracted field value
// and the condition's comparison value.
type OperatorFunc func(fieldValue, compareValue any) (bool, error)

// Evaluator holds the operator registry.
type Evaluator struct {
	operators map[string]OperatorFunc
}

// NewEvaluator creates an evaluator with all supported operators registered.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		operators: make(map[string]OperatorFunc),
	}

	e.operators[rule.OpEquals] = operatorEquals
	e.operators[rule.OpNotEquals] = operatorNotEquals
	e.operators[rule.OpGreaterThan] = operatorGreaterThan
	e.operators[rule.OpLessThan] = operatorLessThan

	e.operators[rule.OpContains] = operatorContains
	e.operators[rule.OpNotContains] = operatorNotContains
	e.operators[rule.OpRegex] = operatorRegex

	e.operators[rule.OpIsEmpty] = operatorIsEmpty
	e.operators[rule.OpIsNotEmpty] = operatorIsNotEmpty

	return e
}

// Evaluate applies an operator to a field value. Unknown operators are an
// error; callers treat any error as a failed condition.
func (e *Evaluator) Evaluate(operator string, fieldValue, compareValue any) (bool, error) {
	opFunc, exists := e.operators[operator]
	if !exists {
		return false, &EvaluationError{
			Operator: operator,
			Message:  "unsupported operator",
		}
	}

	result, err := opFunc(fieldValue, compareValue)
	if err != nil {
		return false, &EvaluationError{
			Operator: operator,
			Message:  "operator execution failed",
			Err:      err,
		}
	}
	return result, nil
}

// FieldValue resolves a dot-separated path into a node's data map. A path
// segment that is not a nested map terminates the walk with not-found.
func FieldValue(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = data
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Operator implementations

func operatorEquals(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) == 0, nil
}

func operatorNotEquals(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) != 0, nil
}

func operatorGreaterThan(fieldValue, compareValue any) (bool, error) {
	cmp, err := compareNumeric(fieldValue, compareValue)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

func operatorLessThan(fieldValue, compareValue any) (bool, error) {
	cmp, err := compareNumeric(fieldValue, compareValue)
	if err != nil {
		return false, err
	}
	return cmp < 0, nil
}

func operatorContains(fieldValue, compareValue any) (bool, error) {
	return strings.Contains(stringify(fieldValue), stringify(compareValue)), nil
}

func operatorNotContains(fieldValue, compareValue any) (bool, error) {
	return !strings.Contains(stringify(fieldValue), stringify(compareValue)), nil
}

func operatorRegex(fieldValue, compareValue any) (bool, error) {
	pattern, ok := compareValue.(string)
	if !ok {
		return false, fmt.Errorf("regex pattern must be a string")
	}

	re, err := compileRegex(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(stringify(fieldValue)), nil
}

func operatorIsEmpty(fieldValue, _ any) (bool, error) {
	return isEmpty(fieldValue), nil
}

func operatorIsNotEmpty(fieldValue, _ any) (bool, error) {
	return !isEmpty(fieldValue), nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// Comparison helpers

// compareValues orders two values: numerically when both coerce to float64,
// lexically on their string forms otherwise.
func compareValues(a, b any) int {
	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)

	if aIsNum && bIsNum {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	aStr := stringify(a)
	bStr := stringify(b)
	switch {
	case aStr < bStr:
		return -1
	case aStr > bStr:
		return 1
	default:
		return 0
	}
}

// compareNumeric requires both sides to be numeric; gt/lt on non-numeric
// values is an error rather than a silent string comparison.
func compareNumeric(a, b any) (int, error) {
	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)
	if !aIsNum || !bIsNum {
		return 0, fmt.Errorf("numeric comparison requires numeric values, got %T and %T", a, b)
	}

	switch {
	case aNum < bNum:
		return -1, nil
	case aNum > bNum:
		return 1, nil
	default:
		return 0, nil
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
