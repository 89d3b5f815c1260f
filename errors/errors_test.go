package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"store unavailable", ErrStoreUnavailable, true},
		{"connection lost", ErrConnectionLost, true},
		{"connection timeout", ErrConnectionTimeout, true},
		{"rate limited", ErrRateLimited, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"missing input", ErrMissingInput, false},
		{"corrupt media", ErrCorruptMedia, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network connection failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"corrupt media", ErrCorruptMedia, true},
		{"disk full in message", fmt.Errorf("write failed: disk full"), true},
		{"transient error", ErrConnectionLost, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"missing input", ErrMissingInput, true},
		{"unsupported media", ErrUnsupportedMedia, true},
		{"file not tracked", ErrFileNotTracked, true},
		{"transient error", ErrConnectionLost, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults to transient", nil, ErrorTransient},
		{"store unavailable", ErrStoreUnavailable, ErrorTransient},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"missing input", ErrMissingInput, ErrorInvalid},
		{"unknown defaults to transient", fmt.Errorf("mystery failure"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v", test.expected, result)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Error("nil error must not be retryable")
	}
	if !Retryable(ErrConnectionLost) {
		t.Error("transient error must be retryable")
	}
	if Retryable(ErrCorruptMedia) {
		t.Error("fatal error must not be retryable")
	}
	if Retryable(ErrMissingInput) {
		t.Error("invalid error must not be retryable")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "Splitter", "Process", "stem separation") != nil {
		t.Error("wrapping nil must return nil")
	}

	base := errors.New("boom")
	err := Wrap(base, "Splitter", "Process", "stem separation")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Splitter.Process: stem separation failed") {
		t.Errorf("unexpected message: %v", err)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error must unwrap to the original")
	}
}

func TestWrapClassification(t *testing.T) {
	base := errors.New("boom")

	transient := WrapTransient(base, "Store", "Get", "redis get")
	if !IsTransient(transient) {
		t.Error("WrapTransient must classify as transient")
	}
	if !errors.Is(transient, base) {
		t.Error("classification wrapper must preserve the chain")
	}

	fatal := WrapFatal(base, "Packager", "Write", "archive write")
	if !IsFatal(fatal) {
		t.Error("WrapFatal must classify as fatal")
	}

	invalid := WrapInvalid(base, "Metadata", "Parse", "tag parse")
	if !IsInvalid(invalid) {
		t.Error("WrapInvalid must classify as invalid")
	}

	var ce *ClassifiedError
	if !errors.As(invalid, &ce) {
		t.Fatal("expected *ClassifiedError in chain")
	}
	if ce.Component != "Metadata" || ce.Operation != "Parse" {
		t.Errorf("unexpected context: %+v", ce)
	}

	if WrapTransient(nil, "a", "b", "c") != nil || WrapFatal(nil, "a", "b", "c") != nil || WrapInvalid(nil, "a", "b", "c") != nil {
		t.Error("classification wrappers must pass nil through")
	}
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	inner := WrapFatal(errors.New("boom"), "Packager", "Write", "archive write")
	outer := fmt.Errorf("outer context: %w", inner)

	if !IsFatal(outer) {
		t.Error("classification must survive fmt.Errorf wrapping")
	}
}
