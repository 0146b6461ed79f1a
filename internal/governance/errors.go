package governance

import (
	"errors"
	"fmt"
)

// ExecErrorCode categorizes executor failures.
type ExecErrorCode string

const (
	// ErrCodeExecFailed indicates the domain command could not be run or
	// exited without a readable result.
	ErrCodeExecFailed ExecErrorCode = "EXEC_FAILED"

	// ErrCodeInvalidResult indicates the result document failed the schema.
	ErrCodeInvalidResult ExecErrorCode = "INVALID_RESULT"

	// ErrCodeNoResult indicates the executor returned neither a result nor
	// an error.
	ErrCodeNoResult ExecErrorCode = "NO_RESULT"
)

// ExecError reports why a domain command produced no usable result.
type ExecError struct {
	Code    ExecErrorCode
	Command string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Command)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsInvalidResult reports whether err is a result schema failure.
func IsInvalidResult(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee) && ee.Code == ErrCodeInvalidResult
}
