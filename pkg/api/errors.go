package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrEmptyBody is returned when a successful response carries no payload
var ErrEmptyBody = errors.New("empty response body from server")

// HTTPError is a non-2xx response from the backend
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

// TransportError is a failure to reach the backend or read its response
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorResponse covers both error shapes the backend produces: FastAPI's
// {"detail": ...} and the OAuth {"error", "error_description"} pair.
type ErrorResponse struct {
	Detail           json.RawMessage `json:"detail"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func newHTTPError(op string, status int, body []byte) *HTTPError {
	httpErr := &HTTPError{
		Op:         op,
		StatusCode: status,
		Body:       string(body),
	}

	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil {
		return httpErr
	}

	switch {
	case len(errorResp.Detail) > 0:
		var detail string
		if err := json.Unmarshal(errorResp.Detail, &detail); err == nil {
			httpErr.Detail = detail
		} else {
			// Validation errors come back as a list of objects
			httpErr.Detail = strings.TrimSpace(string(errorResp.Detail))
		}
	case errorResp.Error != "":
		httpErr.Detail = strings.TrimSpace(errorResp.Error + " " + errorResp.ErrorDescription)
	}

	return httpErr
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an HTTPError
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	return StatusCode(err) == 404
}
