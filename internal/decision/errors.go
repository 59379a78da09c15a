package decision

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed engine errors.
var (
	ErrValidation = errors.New("validation error")
	ErrMapping    = errors.New("mapping error")
	ErrData       = errors.New("data error")
)

// ValidationError reports a malformed matrix shape or a length mismatch between
// weights, criteria and benefit flags.
type ValidationError struct {
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation error: %s", e.Op, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// MappingError reports a criterion name that cannot be resolved to a data field.
type MappingError struct {
	Criterion string
	Msg       string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping error: criterion %q: %s", e.Criterion, e.Msg)
}

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// DataError reports missing or unusable input: empty criteria, empty
// alternatives, an empty matrix list or a weight vector with no usable sum.
type DataError struct {
	Op  string
	Msg string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: data error: %s", e.Op, e.Msg)
}

func (e *DataError) Is(target error) bool { return target == ErrData }

func validationErrorf(op, format string, args ...interface{}) error {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func dataErrorf(op, format string, args ...interface{}) error {
	return &DataError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
