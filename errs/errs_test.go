package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesFieldsAndCause(t *testing.T) {
	err := New(
		"trading/submit",
		KindDomain,
		WithHTTP(400),
		WithMessage("insufficient balance for buy"),
		WithReason(ReasonInsufficientBalance),
		WithField("instrument", "EQ-ACME"),
		WithCause(errors.New("cash 100 < consideration 1005")),
	)

	out := err.Error()
	if !strings.Contains(out, "op=trading/submit") {
		t.Fatalf("expected op marker in error string: %s", out)
	}
	if !strings.Contains(out, "kind=domain_rejection") {
		t.Fatalf("expected kind marker in error string: %s", out)
	}
	if !strings.Contains(out, "reason=\"insufficient_balance\"") {
		t.Fatalf("expected reason field in error string: %s", out)
	}
	if !strings.Contains(out, "instrument=\"EQ-ACME\"") {
		t.Fatalf("expected instrument field in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"cash 100 < consideration 1005\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestKindOfWalksWrappedChain(t *testing.T) {
	inner := New("session/get", KindAuth, WithMessage("session expired"))
	wrapped := fmt.Errorf("resolve session: %w", inner)

	if got := KindOf(wrapped); got != KindAuth {
		t.Fatalf("expected auth kind through wrapping, got %q", got)
	}
	if got := KindOf(errors.New("plain failure")); got != KindTransient {
		t.Fatalf("expected unclassified errors to default to transient, got %q", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusUnprocessableEntity},
		{KindAuth, http.StatusUnauthorized},
		{KindConflict, http.StatusConflict},
		{KindNotFound, http.StatusNotFound},
		{KindDomain, http.StatusBadRequest},
		{KindTransient, http.StatusInternalServerError},
		{KindFatal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New("op", tc.kind)); got != tc.want {
			t.Fatalf("kind %q: expected status %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestHTTPStatusHonoursExplicitOverride(t *testing.T) {
	err := New("auth/login", KindAuth, WithHTTP(http.StatusTooManyRequests))
	if got := HTTPStatus(err); got != http.StatusTooManyRequests {
		t.Fatalf("expected explicit status to win, got %d", got)
	}
}

func TestReasonExtraction(t *testing.T) {
	err := fmt.Errorf("submit: %w", InsufficientPosition("trading/submit", "sell 10 exceeds position 0"))
	if got := Reason(err); got != ReasonInsufficientPosition {
		t.Fatalf("expected insufficient_position reason, got %q", got)
	}
	if got := Reason(errors.New("plain")); got != "" {
		t.Fatalf("expected empty reason for plain error, got %q", got)
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
}
