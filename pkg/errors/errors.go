// Package errors provides custom error types for the PubGuard engine.
// It follows industry best practices (HashiCorp, AWS SDK) for error handling.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// Base Error Types
// =============================================================================

// Error is the base error type for all engine errors.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "vuln.Search")
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Kind represents the kind/category of error.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindInvalidTarget marks a malformed scan reference. This is the only
	// kind that surfaces to the caller as a hard failure; it is raised
	// before any network I/O.
	KindInvalidTarget

	// KindTimeout marks a per-source deadline expiry.
	KindTimeout

	// KindNetwork marks a transport-level failure (DNS, TLS, connection).
	KindNetwork

	// KindRateLimit marks an upstream quota rejection.
	KindRateLimit

	// KindMalformedResponse marks an upstream payload that could not be decoded.
	KindMalformedResponse

	// KindInaccessible marks a target that exists but cannot be read
	// (private repository, deleted project). Analyzers normally report
	// this as a nil analysis rather than an error.
	KindInaccessible

	// KindServer marks an upstream 5xx.
	KindServer

	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidTarget:
		return "invalid_target"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindRateLimit:
		return "rate_limit"
	case KindMalformedResponse:
		return "malformed_response"
	case KindInaccessible:
		return "inaccessible"
	case KindServer:
		return "server"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// =============================================================================
// Upstream Error
// =============================================================================

// UpstreamError represents an error response from a third-party data source.
type UpstreamError struct {
	// Source is the data source name (e.g., "github", "nvd", "search")
	Source string `json:"source"`

	// StatusCode is the HTTP status code
	StatusCode int `json:"status_code"`

	// Message is the error message from the upstream API
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Source, http.StatusText(e.StatusCode), e.Message)
}

// Kind maps the upstream HTTP status to an error kind.
func (e *UpstreamError) Kind() Kind {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case e.StatusCode == http.StatusNotFound,
		e.StatusCode == http.StatusForbidden,
		e.StatusCode == http.StatusUnauthorized:
		return KindInaccessible
	case e.StatusCode >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// =============================================================================
// Constructors
// =============================================================================

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op then Message), error.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// New creates a new simple error.
func New(message string) error {
	return &Error{Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// InvalidTarget creates an invalid-target error for a scan reference.
func InvalidTarget(reference, reason string) error {
	return &Error{
		Kind:    KindInvalidTarget,
		Message: fmt.Sprintf("invalid target %q: %s", reference, reason),
	}
}

// =============================================================================
// Error Checkers
// =============================================================================

// GetKind returns the Kind of the error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind()
	}
	return KindUnknown
}

// IsInvalidTarget checks if the error is an invalid-target error.
func IsInvalidTarget(err error) bool {
	return GetKind(err) == KindInvalidTarget
}

// IsTimeout checks if the error is a timeout error. Deadline expiry
// arrives wrapped by transports (*url.Error and similar), so the check
// must unwrap rather than compare directly.
func IsTimeout(err error) bool {
	if GetKind(err) == KindTimeout {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsCanceled checks if the error stems from a cancelled context,
// however deeply wrapped.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsRateLimit checks if the error is a rate limit error.
func IsRateLimit(err error) bool {
	if GetKind(err) == KindRateLimit {
		return true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsInaccessible checks if the error marks a benign inaccessible target.
func IsInaccessible(err error) bool {
	return GetKind(err) == KindInaccessible
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	if IsRateLimit(err) || IsTimeout(err) {
		return true
	}
	if GetKind(err) == KindNetwork {
		return true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		// Retry on 5xx errors (except 501 Not Implemented)
		return ue.StatusCode >= 500 && ue.StatusCode != 501
	}
	return false
}

// =============================================================================
// Common Errors
// =============================================================================

var (
	// ErrTimeout is returned when a source operation times out.
	ErrTimeout = &Error{Kind: KindTimeout, Message: "source timed out"}

	// ErrRateLimited is returned when an upstream quota rejects us.
	ErrRateLimited = &Error{Kind: KindRateLimit, Message: "rate limited"}

	// ErrInaccessible is returned when a target cannot be read.
	ErrInaccessible = &Error{Kind: KindInaccessible, Message: "target inaccessible"}

	// ErrInvalidConfig is returned for invalid configuration.
	ErrInvalidConfig = &Error{Kind: KindInternal, Message: "invalid configuration"}
)
