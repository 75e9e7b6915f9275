package common

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatorCollectsFailures(t *testing.T) {
	err := NewValidator().
		Field("name", "  ", Required, MaxLength(5)).
		Field("target_url", "ftp://example.com", HTTPURL).
		Field("status", "paused", OneOf("pending", "running")).
		Field("max_retries", -1, NonNegative).
		Field("id", "not-a-uuid", UUID).
		Check(false, "target", "", "target_url or target_handle is required").
		Error()

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 6 {
		t.Fatalf("unexpected failures: %v", verrs)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationErrors should match ErrValidation")
	}
	var single *ValidationError
	if !errors.As(err, &single) || single.Field != "name" {
		t.Fatalf("unexpected first failure: %+v", single)
	}
	if !strings.Contains(err.Error(), "target_url or target_handle is required") {
		t.Fatalf("unexpected message: %s", err)
	}
	if IsRetryable(err) {
		t.Fatal("validation failures must not be retryable")
	}
}

func TestValidatorPasses(t *testing.T) {
	err := NewValidator().
		Field("name", "Taco Bus", Required, MaxLength(100)).
		Field("target_url", "https://tacobus.example", HTTPURL).
		Field("status", "", OneOf("pending")).
		Error()
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}
