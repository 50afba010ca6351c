package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a request that produced no usable response. Status codes
// are never reported here; a response with any status is a success for the
// transport.
type RequestError struct {
	Method string
	// URL is redacted.
	URL string
	// Attempts is how many times the request was sent.
	Attempts int
	// Retryable marks connection-level failures.
	Retryable bool
	Err       error
}

func (e *RequestError) Error() string {
	msg := e.Err.Error()
	if e.Method != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Method, e.URL, msg)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func requestError(req *http.Request, retryable bool, err error) *RequestError {
	e := &RequestError{Retryable: retryable, Err: err, Attempts: 1}
	if req != nil {
		e.Method = req.Method
		e.URL = req.URL.Redacted()
	}
	return e
}

// IsTransient reports whether err is a connection-level failure worth
// another attempt.
func IsTransient(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Retryable
}

// IsFatal reports whether err is a request failure that must not be retried.
func IsFatal(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && !re.Retryable
}
