//go:build windows

package sessionstore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

func tryLockFile(lockPath string) (func() error, error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, defaultFilePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrLockFailed, lockPath, err)
	}
	_, _ = file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return func() error {
		closeErr := file.Close()
		if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return closeErr
	}, nil
}
