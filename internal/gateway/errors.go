package gateway

import (
	"errors"
	"net"
)

// AuthError indicates a bad or missing credential. Fatal; never retried.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// TransientError indicates a network failure, 5xx, or timeout. Safe to
// retry with backoff; the gateway itself performs no retries.
type TransientError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// QuotaError indicates a rate-limit rejection. The caller must back off
// before retrying.
type QuotaError struct {
	Provider string
	Err      error
}

func (e *QuotaError) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e *QuotaError) Unwrap() error { return e.Err }

// MalformedError indicates the provider returned content that cannot be
// interpreted as the expected shape.
type MalformedError struct {
	Provider string
	Err      error
}

func (e *MalformedError) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e *MalformedError) Unwrap() error { return e.Err }

// IsAuth reports whether the chain contains an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransient reports whether the chain contains a TransientError or a
// network-level timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsQuota reports whether the chain contains a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// IsMalformed reports whether the chain contains a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// transientHTTPStatus reports whether an HTTP status code indicates a
// transient server-side issue.
func transientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
