package partner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// ErrCircuitOpen is returned without touching the network when the circuit
// breaker for an exchange is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrorKind classifies a business rejection returned by a partner exchange.
type ErrorKind string

const (
	KindAuthentication    ErrorKind = "AUTHENTICATION"
	KindClientValidation  ErrorKind = "CLIENT_VALIDATION"
	KindTransaction       ErrorKind = "TRANSACTION"
	KindMandate           ErrorKind = "MANDATE"
	KindCancellation      ErrorKind = "CANCELLATION"
	KindSystemUnavailable ErrorKind = "SYSTEM_UNAVAILABLE"
	KindUnknown           ErrorKind = "UNKNOWN"
)

// Error is a typed partner rejection. Code carries the raw status token from
// the wire so it can be stored against the order for support to look up.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("partner error %s (%s)", e.Code, e.Kind)
	}
	return fmt.Sprintf("partner error %s (%s): %s", e.Code, e.Kind, e.Message)
}

// Retryable reports whether resubmitting the same request could succeed.
// Only infrastructure-side rejections qualify; business rejections are final.
func (e *Error) Retryable() bool {
	return e.Kind == KindSystemUnavailable
}

// TransientError wraps a network-level failure that is safe to retry:
// connection refused/reset, timeouts, interrupted reads.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient partner failure: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err represents a failure worth retrying.
// Context cancellation by the caller is deliberately not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	// A peer dropping the connection mid-response surfaces as EOF.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Some proxies surface resets as plain text errors.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}
