package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

type retryableErr bool

func (r retryableErr) Error() string   { return "custom" }
func (r retryableErr) Retryable() bool { return bool(r) }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "io", err: errors.New("connection reset"), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "validation", err: NewValidationError("name", "", "insufficient data"), want: false},
		{name: "wrapped validation", err: fmt.Errorf("job: %w", NewValidationError("", nil, "x")), want: false},
		{name: "invalid input", err: NewAppError("BAD", "bad", ErrInvalidInput), want: false},
		{name: "self classified", err: fmt.Errorf("wrap: %w", retryableErr(true)), want: true},
		{name: "self classified no", err: retryableErr(false), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NewAppError("AUTH", "bad token", ErrUnauthorized), http.StatusUnauthorized},
		{WrapError(ErrNotFound, "truck"), http.StatusNotFound},
		{NewValidationError("limit", -1, "must be positive"), http.StatusBadRequest},
		{ErrUsageLimit, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError(nil, "x") != nil {
		t.Fatal("WrapError(nil) should be nil")
	}
}
