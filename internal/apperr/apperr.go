// Package apperr defines the three failure kinds the console surfaces to an
// operator: authentication failures, remote call failures, and local input
// validation failures.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthError reports bad credentials or a sign-in that did not pass the admin
// allow-list.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil && e.Message == "" {
		return "auth: " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError is a transport or query failure on any backend operation.
// Status is 0 when no HTTP response was received.
type RemoteError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(http.StatusText(e.Status))
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, " (status %d", e.Status)
		if e.Code != "" {
			b.WriteString(", code " + e.Code)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NotFound reports whether the remote said the target does not exist.
func (e *RemoteError) NotFound() bool {
	return e.Status == http.StatusNotFound || e.Code == "PGRST116"
}

// ValidationError is raised before any remote call when required input is
// missing or blank.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return e.Field + " is required"
	}
	return "invalid input"
}

func Auth(msg string, err error) error {
	return &AuthError{Message: msg, Err: err}
}

func Remote(op string, err error) error {
	var re *RemoteError
	if errors.As(err, &re) {
		if re.Op == "" {
			re.Op = op
		}
		return re
	}
	return &RemoteError{Op: op, Err: err}
}

func Validation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsRemote(err error) bool {
	var e *RemoteError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a RemoteError for a missing target.
func IsNotFound(err error) bool {
	var e *RemoteError
	return errors.As(err, &e) && e.NotFound()
}

// Message renders err as the one-line text shown inline next to the action
// that triggered it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var auth *AuthError
	var validation *ValidationError
	var remote *RemoteError
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &auth):
		return auth.Error()
	case errors.As(err, &remote):
		return "Request failed: " + remote.Error()
	default:
		return err.Error()
	}
}
