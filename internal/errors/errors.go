// Package errors defines the error taxonomy shared by the gateway, the
// challenge flows and the client registry. Callers match kinds with the
// standard library errors.Is.
package errors

import (
	"errors"
	"net/http"
)

// Caller errors. These never reach the authorization server.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Authorization server errors.
var (
	ErrNotFound    = errors.New("invalid or expired")
	ErrRejected    = errors.New("request rejected by authorization server")
	ErrUnavailable = errors.New("authorization server unavailable")
)

// Local errors.
var (
	ErrChallengeFailed = errors.New("challenge resolution failed")
	ErrStorage         = errors.New("local storage failure")
)

// Kind names returned by KindOf.
const (
	KindValidation  = "validation"
	KindNotFound    = "not_found"
	KindRejected    = "rejected"
	KindUnavailable = "unavailable"
	KindInternal    = "internal"
)

// KindOf classifies err into one of the taxonomy kinds. Validation wins
// over the remote kinds because it is decided before any remote call.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidCredentials):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRejected):
		return KindRejected
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// HTTPStatus maps err to the status code reported to HTTP callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRejected:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a read that failed with err may be retried.
// Only transport failures qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
