package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed call. Callers rarely need it; user-facing code
// should prefer Detail.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindValidation
	KindUnauthorized
	KindNotFound
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// HTTPError represents a non-2xx HTTP response from the API.
// Body is the raw response payload, kept unmodified.
type HTTPError struct {
	StatusCode int
	Detail     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	}
	if len(e.Body) > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// newHTTPError pulls a human-readable message out of the body. The backend
// reports errors as {"detail": "..."}; validation failures carry a list instead,
// which is left in Body only.
func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: status, Body: body}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return e
	}
	var detail string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil {
		e.Detail = detail
	} else if payload.Error != "" {
		e.Detail = payload.Error
	}
	return e
}

// TransportError is a failure before any HTTP response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized, httpErr.StatusCode == http.StatusForbidden:
			return KindUnauthorized
		case httpErr.StatusCode == http.StatusNotFound:
			return KindNotFound
		case httpErr.StatusCode >= 500:
			return KindServer
		default:
			return KindValidation
		}
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return KindTransport
	}
	return KindUnknown
}

// Detail returns the backend's human-readable detail message when err carries one.
func Detail(err error) (string, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Detail != "" {
		return httpErr.Detail, true
	}
	return "", false
}

// Message returns Detail(err) or fallback.
func Message(err error, fallback string) string {
	if d, ok := Detail(err); ok {
		return d
	}
	return fallback
}
