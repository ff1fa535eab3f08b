package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestCodeAndStatusFollowWrappedErrors(t *testing.T) {
	base := NewValidationError("no se generaron segmentos", "segments", 0)
	wrapped := fmt.Errorf("segmentation: %w", base)

	if got := CodeOf(wrapped); got != CodeValidation {
		t.Fatalf("expected %s, got %s", CodeValidation, got)
	}
	if got := StatusOf(wrapped); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	if got := MessageOf(wrapped); got != "no se generaron segmentos" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUnknownErrorsMapToInternal(t *testing.T) {
	err := fmt.Errorf("boom")
	if CodeOf(err) != CodeAppError {
		t.Fatalf("expected generic code, got %s", CodeOf(err))
	}
	if StatusOf(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", StatusOf(err))
	}
	if CodeOf(nil) != "" || StatusOf(nil) != http.StatusOK {
		t.Fatalf("nil error should map to empty code and 200")
	}
}

func TestGenerationErrorKeepsCause(t *testing.T) {
	cause := fmt.Errorf("503 unavailable")
	err := NewGenerationError("el servicio generativo no respondió", "analysis", cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be preserved")
	}
	if err.Error() != "el servicio generativo no respondió: 503 unavailable" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if err.Operation != "analysis" {
		t.Fatalf("unexpected operation %q", err.Operation)
	}
}

func TestInFlightErrorIsConflict(t *testing.T) {
	err := NewInFlightError("ya hay una generación en curso", "image:seg-1")
	if StatusOf(err) != http.StatusConflict {
		t.Fatalf("expected 409, got %d", StatusOf(err))
	}
	if err.Key != "image:seg-1" {
		t.Fatalf("unexpected key %q", err.Key)
	}
}
