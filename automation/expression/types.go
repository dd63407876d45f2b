package expression

import "fmt"

// EvaluationError reports a failure while evaluating a condition operator.
type EvaluationError struct {
	Operator string
	Message  string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("expression: %s (operator %q): %v", e.Message, e.Operator, e.Err)
	}
	return fmt.Sprintf("expression: %s (operator %q)", e.Message, e.Operator)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
