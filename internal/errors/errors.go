package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error taxonomy shared by the session lifecycle, the interceptor and the API client.
var (
	// ErrNetworkFailure means an exchange or identity call did not complete at the transport level.
	ErrNetworkFailure = errors.New("network failure")
	// ErrAuthRejected means the backend or provider refused the login attempt, or the
	// callback state did not match the issued nonce.
	ErrAuthRejected = errors.New("authorization rejected")
	// ErrMissingCredential is returned before any network activity when a protected call has no
	// session credential or a field it depends on (e.g. email) is unknown.
	ErrMissingCredential = errors.New("missing credential")
	// ErrSessionExpired means a protected endpoint answered 401.
	ErrSessionExpired = errors.New("session expired")

	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

// APIError carries a non-2xx backend answer and its {detail} message.
type APIError struct {
	StatusCode int
	Detail     string
	Kind       error // one of the taxonomy sentinels
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// NewMissingCredential returns an ErrMissingCredential whose message is shown to the user as is.
func NewMissingCredential(message string) error {
	return &userError{msg: message, kind: ErrMissingCredential}
}

type userError struct {
	msg  string
	kind error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.kind }

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// FromResponse builds an APIError from a non-2xx status and its body. A {"detail": "..."}
// body becomes the message; anything else leaves Detail empty.
func FromResponse(statusCode int, body []byte, kind error) *APIError {
	var payload struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &payload)
	return &APIError{StatusCode: statusCode, Detail: payload.Detail, Kind: kind}
}
