// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// Error categories. Every error returned by the client wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrValidation     = errors.New("invalid search parameters")
	ErrNetwork        = errors.New("network failure")
	ErrRemote         = errors.New("remote API error")
	ErrTimeout        = errors.New("timed out waiting for request")
	ErrParse          = errors.New("malformed response")
)

// ValidationError reports a bad filter or builder field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for building a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NetworkError reports a transport failure after all retries were spent.
type NetworkError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s %s (after %d attempt(s)): %v", ErrNetwork, e.Method, e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// RemoteError reports a non-success HTTP status from the API. 401 and 403
// unwrap to ErrAuthentication; everything else unwraps to ErrRemote.
type RemoteError struct {
	StatusCode int
	Method     string
	URL        string
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s returned HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrAuthentication
	}
	return ErrRemote
}

// NotFound reports whether the API answered 404.
func (e *RemoteError) NotFound() bool { return e.StatusCode == 404 }

// IsNotFound reports whether err is a RemoteError with status 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.NotFound()
}

// TimeoutError reports that polling hit its deadline before the request
// reached a terminal status.
type TimeoutError struct {
	RequestID  string
	LastStatus JobStatus
	Elapsed    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request %s still %s after %s", ErrTimeout, e.RequestID, e.LastStatus, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ParseError reports a response body or record that could not be decoded.
// Index is the record position within its page, or -1 for whole-body
// failures.
type ParseError struct {
	Index int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Index < 0 && e.Field == "":
		return fmt.Sprintf("%s: %v", ErrParse, e.Err)
	case e.Index < 0:
		return fmt.Sprintf("%s: field %q: %v", ErrParse, e.Field, e.Err)
	case e.Field == "":
		return fmt.Sprintf("%s: record %d: %v", ErrParse, e.Index, e.Err)
	default:
		return fmt.Sprintf("%s: record %d field %q: %v", ErrParse, e.Index, e.Field, e.Err)
	}
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }
