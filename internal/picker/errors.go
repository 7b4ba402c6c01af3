package picker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid construction options.
	ErrConfiguration = errors.New("invalid picker configuration")
	// ErrRangeViolation marks a date or bound outside what the picker allows.
	ErrRangeViolation = errors.New("date out of range")
	// ErrDuplicateBinding marks an anchor or pair id that is already taken.
	ErrDuplicateBinding = errors.New("duplicate picker binding")
	// ErrInvalidDate marks a missing or unparseable date argument.
	ErrInvalidDate = errors.New("invalid date")
	// ErrRemoved is returned by methods called on a removed instance.
	ErrRemoved = errors.New("picker removed")
	// ErrNotPaired is returned by range operations on a standalone picker.
	ErrNotPaired = errors.New("picker is not part of a range pair")
)

// Violation is one failed option check.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError collects every violation found while validating options.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrConfiguration, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrConfiguration }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

func rangeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRangeViolation, fmt.Sprintf(format, args...))
}

func duplicateError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDuplicateBinding, fmt.Sprintf(format, args...))
}
