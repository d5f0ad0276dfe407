package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWalksWrapChain(t *testing.T) {
	t.Parallel()

	base := New(Conflict, "version mismatch")
	wrapped := fmt.Errorf("update order: %w", fmt.Errorf("retry: %w", base))

	if got := KindOf(wrapped); got != Conflict {
		t.Fatalf("KindOf=%v want=%v", got, Conflict)
	}
}

func TestKindOfUntaggedDefaultsToInternal(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("boom")); got != Internal {
		t.Fatalf("KindOf=%v want=%v", got, Internal)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Wrap(Unavailable, "ping broker", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("wrapped error must match its cause with errors.Is")
	}
	if err.Error() != "ping broker: connection refused" {
		t.Fatalf("Error()=%q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{New(Validation, "bad input"), http.StatusBadRequest},
		{New(NotFound, "no such order"), http.StatusNotFound},
		{New(Conflict, "already cancelled"), http.StatusConflict},
		{New(Unavailable, "broker down"), http.StatusServiceUnavailable},
		{New(Internal, "oops"), http.StatusInternalServerError},
		{errors.New("untagged"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v)=%d want=%d", tt.err, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{Internal, "internal"},
		{Validation, "validation"},
		{NotFound, "not_found"},
		{Conflict, "conflict"},
		{Unavailable, "unavailable"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String()=%q want=%q", tt.kind, got, tt.want)
		}
	}
}
