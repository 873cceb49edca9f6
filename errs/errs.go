// Package errs provides structured error types and helpers for trading-board services.
package errs

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies an error category with a fixed recovery policy.
type Kind string

const (
	// KindValidation indicates malformed caller input.
	KindValidation Kind = "validation"
	// KindAuth indicates a missing, expired, or rejected credential.
	KindAuth Kind = "auth"
	// KindConflict indicates a uniqueness or concurrent-mutation conflict.
	KindConflict Kind = "conflict"
	// KindNotFound indicates a missing resource.
	KindNotFound Kind = "not_found"
	// KindDomain indicates a business-rule rejection.
	KindDomain Kind = "domain_rejection"
	// KindTransient indicates a retryable infrastructure failure.
	KindTransient Kind = "transient_infra"
	// KindFatal indicates an unrecoverable failure; the process should exit.
	KindFatal Kind = "fatal_infra"
)

// Reason labels commonly surfaced domain rejections so callers can branch
// without string matching.
const (
	ReasonInsufficientBalance  = "insufficient_balance"
	ReasonInsufficientPosition = "insufficient_position"
	ReasonDuplicateEmail       = "duplicate_email"
	ReasonInvalidCredentials   = "invalid_credentials"
)

// E captures structured error information produced across the trading-board stack.
type E struct {
	Op      string
	Kind    Kind
	HTTP    int
	Message string
	Fields  map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and error kind.
func New(op string, kind Kind, opts ...Option) *E {
	e := &E{
		Op:      strings.TrimSpace(op),
		Kind:    kind,
		HTTP:    0,
		Message: "",
		Fields:  nil,
		cause:   nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records an explicit HTTP status, overriding the kind default.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithField appends a single key/value pair to the error envelope.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Fields == nil {
			e.Fields = make(map[string]string, 1)
		}
		e.Fields[trimmedKey] = strings.TrimSpace(value)
	}
}

// WithReason tags the envelope with a domain-rejection reason label.
func WithReason(reason string) Option {
	return WithField("reason", reason)
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	op := strings.TrimSpace(e.Op)
	if op == "" {
		op = "unknown"
	}
	parts = append(parts, "op="+op)

	kind := strings.TrimSpace(string(e.Kind))
	if kind == "" {
		kind = "unknown"
	}
	parts = append(parts, "kind="+kind)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+strconv.Quote(e.Fields[k]))
		}
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// KindOf extracts the kind from an error chain, or KindTransient when the
// chain carries no envelope. Unclassified failures are treated as retryable
// infrastructure trouble rather than caller mistakes.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindTransient
}

// Reason extracts the domain-rejection reason label, if any.
func Reason(err error) string {
	var e *E
	if errors.As(err, &e) && e != nil && e.Fields != nil {
		return e.Fields["reason"]
	}
	return ""
}

// HTTPStatus maps an error to the HTTP status the API surfaces for it.
func HTTPStatus(err error) int {
	var e *E
	if errors.As(err, &e) && e != nil && e.HTTP > 0 {
		return e.HTTP
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuth:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindDomain:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// InsufficientBalance returns the standardized rejection for a buy exceeding cash.
func InsufficientBalance(op, msg string) *E {
	return New(op, KindDomain, WithMessage(msg), WithReason(ReasonInsufficientBalance))
}

// InsufficientPosition returns the standardized rejection for a sell exceeding inventory.
func InsufficientPosition(op, msg string) *E {
	return New(op, KindDomain, WithMessage(msg), WithReason(ReasonInsufficientPosition))
}

// InvalidCredentials returns the single indistinguishable login failure.
func InvalidCredentials(op string) *E {
	return New(op, KindAuth, WithMessage("invalid credentials"), WithReason(ReasonInvalidCredentials))
}
