package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeRegistry, cause, "failed to fetch")

	if err.Code != ErrCodeRegistry {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeRegistry)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeInvalidInput,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeRegistry,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeRegistry, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeRegistry,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidPackage, "test"),
			expected: ErrCodeInvalidPackage,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessageWithCause(t *testing.T) {
	err := Wrap(ErrCodeRegistry, errors.New("connection refused"), "list versions of %s", "beatsaber-hook")
	want := "list versions of beatsaber-hook: connection refused"
	if got := UserMessage(err); got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestDependencyConflictError(t *testing.T) {
	err := &DependencyConflictError{
		ID:       "codegen",
		Existing: Requirement{Requester: "custom-types", Range: "1.x"},
		Incoming: Requirement{Requester: "questui", Range: "2.x"},
	}

	t.Run("message names both requesters", func(t *testing.T) {
		msg := err.Error()
		for _, want := range []string{"custom-types", "questui", "codegen@1.x", "codegen@2.x"} {
			if !strings.Contains(msg, want) {
				t.Errorf("Error() = %q, missing %q", msg, want)
			}
		}
	})

	t.Run("code through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("resolve: %w", err)
		if !Is(wrapped, ErrCodeDependencyConflict) {
			t.Error("Is(wrapped, DEPENDENCY_CONFLICT) = false, want true")
		}
		if GetCode(wrapped) != ErrCodeDependencyConflict {
			t.Errorf("GetCode() = %v", GetCode(wrapped))
		}
		var target *DependencyConflictError
		if !errors.As(wrapped, &target) || target.ID != "codegen" {
			t.Error("errors.As should find the conflict")
		}
	})
}

func TestIsEmptyCode(t *testing.T) {
	if Is(errors.New("plain"), "") {
		t.Error("Is(plain, \"\") should be false")
	}
}
