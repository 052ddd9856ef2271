package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		code     string
	}{
		{InvalidIdentity("msg %d", 3), ErrInvalidIdentity, CodeInvalidIdentity},
		{NotFound("msg %d", 42), ErrNotFound, CodeNotFound},
		{Persistence("exec", fmt.Errorf("disk full")), ErrPersistence, CodePersistence},
		{Config("load", nil), ErrConfig, CodeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if got := Code(wrapped); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestPersistenceUnwrapsCause(t *testing.T) {
	cause := errors.New("locked")
	err := Persistence("update state", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if err.Error() != "update state: locked" {
		t.Errorf("Error() = %q", err.Error())
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("persistence error must not match ErrNotFound")
	}
}

func TestCodeUnknown(t *testing.T) {
	if got := Code(errors.New("plain")); got != CodeUnknown {
		t.Errorf("Code() = %q, want UNKNOWN", got)
	}
}
