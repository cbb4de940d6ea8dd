package userclient

import (
	"errors"
	"fmt"
)

var (
	ErrPasswordRequired = errors.New("userclient: two-step verification password required")
	ErrClosed           = errors.New("userclient: connection closed")
	ErrNoPrompter       = errors.New("userclient: interactive login needed but no prompter configured")
	ErrNoSession        = errors.New("userclient: no session material to persist")
)

// AuthError is a login failure. It is fatal at startup.
type AuthError struct {
	Stage string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("userclient: auth failed at %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PersistenceError means the session could not be saved after login. The
// manager keeps running but logs the account out on Close, since a session
// nobody stored cannot be reused.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("userclient: persist session: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransportError is a failed call on the user-account connection. It is
// returned to the caller as-is and never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("userclient: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
