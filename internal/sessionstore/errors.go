package sessionstore

import "errors"

var (
	ErrInvalidPath  = errors.New("sessionstore: invalid path")
	ErrCorrupt      = errors.New("sessionstore: corrupt session file")
	ErrWriteFailed  = errors.New("sessionstore: write failed")
	ErrLocked       = errors.New("sessionstore: session file is locked by another process")
	ErrLockFailed   = errors.New("sessionstore: lock failed")
	ErrEmptySession = errors.New("sessionstore: refusing to save empty session")
)
