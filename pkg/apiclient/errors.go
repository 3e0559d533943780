package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is returned for every non-2xx response.
type Error struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Header     http.Header
	// Body is the response parsed as JSON, nil when it is not JSON.
	Body any
	Raw  []byte
}

func newError(req *http.Request, resp *http.Response, raw []byte) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		Header:     resp.Header,
		Raw:        raw,
	}
	var body any
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Body = body
	}
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("apiclient: %s %s: %s", e.Method, e.URL, e.Status)
}

// Decode unmarshals the JSON error body into v.
func (e *Error) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// AsError reports whether err carries an *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
