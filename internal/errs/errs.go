// Package errs defines the error kinds shared by the message core.
package errs

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown         = "UNKNOWN"
	CodeInvalidIdentity = "INVALID_IDENTITY"
	CodeNotFound        = "NOT_FOUND"
	CodePersistence     = "PERSISTENCE"
	CodeConfig          = "CONFIG"
)

// Sentinels usable with errors.Is.
var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrNotFound        = errors.New("not found")
	ErrPersistence     = errors.New("persistence failure")
	ErrConfig          = errors.New("configuration error")
)

// Error carries a kind code, a message and an optional cause.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

// Code returns the kind code.
func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches the sentinel belonging to the error's kind.
func (e *Error) Is(target error) bool {
	switch e.code {
	case CodeInvalidIdentity:
		return target == ErrInvalidIdentity
	case CodeNotFound:
		return target == ErrNotFound
	case CodePersistence:
		return target == ErrPersistence
	case CodeConfig:
		return target == ErrConfig
	}
	return false
}

// Code returns the kind code of err, or CodeUnknown.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}

// InvalidIdentity is returned when an operation that needs a real message id
// was handed a reserved one.
func InvalidIdentity(format string, args ...any) error {
	return &Error{code: CodeInvalidIdentity, message: fmt.Sprintf(format, args...)}
}

// NotFound is returned when no row exists for a real id.
func NotFound(format string, args ...any) error {
	return &Error{code: CodeNotFound, message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage error.
func Persistence(message string, cause error) error {
	return &Error{code: CodePersistence, message: message, err: cause}
}

// Config wraps a configuration error.
func Config(message string, cause error) error {
	return &Error{code: CodeConfig, message: message, err: cause}
}
