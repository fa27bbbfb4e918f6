package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/maheshrc27/postflow/internal/models"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrTransient           = errors.New("transient platform error")
	ErrPermanent           = errors.New("permanent platform error")
	ErrNotSupported        = errors.New("operation not supported by platform")
	ErrCredentialExpired   = errors.New("platform credential expired or revoked")
)

// APIError is the typed error adapters return. Kind is one of the sentinels above.
type APIError struct {
	Kind       error
	Platform   models.Platform
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches the error kind. A revoked credential is also a permanent failure.
func (e *APIError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return target == ErrPermanent && e.Kind == ErrCredentialExpired
}

func NewError(kind error, p models.Platform, op string, err error) *APIError {
	return &APIError{Kind: kind, Platform: p, Op: op, Err: err}
}

func Transient(p models.Platform, op string, err error) error {
	return NewError(ErrTransient, p, op, err)
}

func Permanent(p models.Platform, op string, err error) error {
	return NewError(ErrPermanent, p, op, err)
}

func NotSupported(p models.Platform, op string) error {
	return NewError(ErrNotSupported, p, op, nil)
}

func CredentialExpired(p models.Platform, op string, err error) error {
	return NewError(ErrCredentialExpired, p, op, err)
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(p models.Platform, op string, status int, err error) error {
	kind := ErrPermanent
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		kind = ErrTransient
	case status == http.StatusUnauthorized:
		kind = ErrCredentialExpired
	}
	return &APIError{Kind: kind, Platform: p, Op: op, StatusCode: status, Err: err}
}

// FromTransport classifies an error returned before any response was read.
// Connection failures and timeouts are transient; a canceled context is not.
func FromTransport(p models.Platform, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return Permanent(p, op, err)
	}
	return Transient(p, op, err)
}

// IsRetryable reports whether another attempt could succeed. Unclassified
// errors are treated as faults and never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
