package providers

import "errors"

// AuthError marks authentication and authorization failures that require user
// action; callers surface these verbatim and never retry them.
type AuthError struct {
	Provider string
	Msg      string
}

func (e *AuthError) Error() string {
	return e.Msg
}

var ErrCredentialNotFound = errors.New("credential not found")
