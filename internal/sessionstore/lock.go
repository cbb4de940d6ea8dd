package sessionstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lockRetryWait = 50 * time.Millisecond

// Lock is an exclusive, process-wide claim on a session file. Two processes
// driving the same account session would invalidate each other's auth keys.
type Lock struct {
	path    string
	release func() error
}

// AcquireLock claims "<session path>.lock", retrying until ctx is done.
func AcquireLock(ctx context.Context, sessionPath string) (*Lock, error) {
	normalized, err := normalizePath(sessionPath)
	if err != nil {
		return nil, err
	}
	lockPath := normalized + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), defaultDirPerm); err != nil {
		return nil, fmt.Errorf("%w: ensure dir for %s: %v", ErrLockFailed, lockPath, err)
	}
	for {
		release, err := tryLockFile(lockPath)
		if err == nil {
			return &Lock{path: lockPath, release: release}, nil
		}
		if err != ErrLocked {
			return nil, err
		}
		timer := time.NewTimer(lockRetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrLocked, lockPath, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Lock) Release() error {
	if l == nil || l.release == nil {
		return nil
	}
	release := l.release
	l.release = nil
	return release()
}
