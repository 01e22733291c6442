package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches any 401 surfaced to a caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned for a 401 on a sign-in style
	// request. Such a 401 never triggers a refresh.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)

	// ErrNoRefreshToken is the cause of a refresh failure when the store
	// holds no refresh token. No network call is made in that case.
	ErrNoRefreshToken = errors.New("no refresh token")

	// errSessionCleared is ErrNoRefreshToken when the store holds no
	// access token either, meaning the session already ended.
	errSessionCleared = fmt.Errorf("%w: session already cleared", ErrNoRefreshToken)

	// ErrRefreshFailed matches every *RefreshError.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// FieldError is one entry of a validation error payload.
type FieldError struct {
	Message string `json:"message"`
	Rule    string `json:"rule"`
	Field   string `json:"field"`
}

// ErrorBody is the JSON error payload returned by the FlouzeTrack API.
type ErrorBody struct {
	Error   string       `json:"error"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// StatusError reports a response with a status of 400 or above.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	// API is the decoded error payload, nil when the body was not one.
	API *ErrorBody

	kind error
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.API != nil {
		switch {
		case e.API.Message != "":
			b.WriteString(": " + e.API.Message)
		case e.API.Error != "":
			b.WriteString(": " + e.API.Error)
		}
		for _, fe := range e.API.Errors {
			fmt.Fprintf(&b, "; %s: %s", fe.Field, fe.Message)
		}
	}
	return b.String()
}

// Unwrap exposes ErrUnauthorized or ErrInvalidCredentials for 401s.
func (e *StatusError) Unwrap() error { return e.kind }

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// RefreshError reports a failed refresh. The stored credentials have been
// cleared by the time it is returned.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return ErrRefreshFailed.Error() + ": " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool { return target == ErrRefreshFailed }

func unauthorizedKind(status int, exempt bool) error {
	if status != http.StatusUnauthorized {
		return nil
	}
	if exempt {
		return ErrInvalidCredentials
	}
	return ErrUnauthorized
}
