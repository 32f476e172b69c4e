package auth

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is wrapped by AuthError when no access token is held.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrUnreachable is wrapped by AuthError when the token endpoint could not be
// reached. Unlike a rejected grant it may succeed on retry.
var ErrUnreachable = errors.New("token endpoint unreachable")

// AuthError reports a failure of the device handshake or token refresh.
// It is unrecoverable without re-running the device flow.
type AuthError struct {
	Err     error
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return "auth: " + msg
	}
	return fmt.Sprintf("auth: %s: %s", e.Op, msg)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(op, message string, err error) *AuthError {
	return &AuthError{Op: op, Message: message, Err: err}
}
