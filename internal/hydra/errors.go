package hydra

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/tidwall/gjson"
)

// APIError is the normalized failure of a gateway call. Kind is one of
// ErrNotFound, ErrRejected or ErrUnavailable; errors.Is matches it, as
// well as the underlying transport error when there is one.
type APIError struct {
	Op          string
	StatusCode  int
	Code        string
	Description string
	Kind        error
	Err         error
}

func (e *APIError) Error() string {
	var b strings.Builder

	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())

	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}

	switch {
	case e.Description != "":
		b.WriteString(": ")
		b.WriteString(e.Description)
	case e.Code != "":
		b.WriteString(": ")
		b.WriteString(e.Code)
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// kindForStatus collapses Hydra's status codes into the taxonomy. 410
// is what Hydra answers for a challenge that was already handled, so it
// counts as not found.
func kindForStatus(code int) error {
	switch {
	case code == http.StatusNotFound, code == http.StatusGone:
		return apperrors.ErrNotFound
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return apperrors.ErrUnavailable
	default:
		return apperrors.ErrRejected
	}
}

// statusError builds an APIError from a non-2xx response. Hydra has
// used two error body shapes across releases; both are understood.
func statusError(op string, code int, body []byte) *APIError {
	e := &APIError{
		Op:         op,
		StatusCode: code,
		Kind:       kindForStatus(code),
	}

	if !gjson.ValidBytes(body) {
		e.Description = sanitizeResponseBody(body)
		return e
	}

	errField := gjson.GetBytes(body, "error")
	if errField.IsObject() {
		e.Code = errField.Get("status").String()
		e.Description = errField.Get("message").String()

		if reason := errField.Get("reason").String(); reason != "" {
			e.Description = strings.TrimSpace(e.Description + " " + reason)
		}
	} else {
		e.Code = errField.String()
		e.Description = gjson.GetBytes(body, "error_description").String()

		if hint := gjson.GetBytes(body, "error_hint").String(); hint != "" {
			e.Description = strings.TrimSpace(e.Description + " " + hint)
		}
	}

	e.Code = sanitizeResponseBody([]byte(e.Code))
	e.Description = sanitizeResponseBody([]byte(e.Description))

	return e
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}
