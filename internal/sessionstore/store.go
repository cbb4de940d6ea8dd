// Package sessionstore keeps the secondary account's session material on disk.
//
// The file is a small JSON envelope around the opaque bytes produced by the
// MTProto client. Writes go through a temp file and rename so a crash never
// leaves a half-written session behind.
package sessionstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	envelopeVersion = 1

	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

type envelope struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Session []byte    `json:"session"`
}

// FileStore reads and writes one session file.
type FileStore struct {
	path string
	now  func() time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: normalized, now: time.Now}, nil
}

func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load returns the stored session. A missing or empty file reports ok=false
// with a nil error; anything unreadable or undecodable is an error.
func (s *FileStore) Load(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sessionstore: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, s.path, err)
	}
	if env.Version != envelopeVersion {
		return nil, false, fmt.Errorf("%w: %s has unsupported version %d", ErrCorrupt, s.path, env.Version)
	}
	if len(env.Session) == 0 {
		return nil, false, fmt.Errorf("%w: %s has no session payload", ErrCorrupt, s.path)
	}
	return env.Session, true, nil
}

func (s *FileStore) Save(ctx context.Context, session []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(session) == 0 {
		return ErrEmptySession
	}
	data, err := json.MarshalIndent(envelope{
		Version: envelopeVersion,
		SavedAt: s.now().UTC(),
		Session: session,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrWriteFailed, s.path, err)
	}
	return writeAtomic(s.path, append(data, '\n'))
}

func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return filepath.Clean(path), nil
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return fmt.Errorf("%w: ensure dir %s: %v", ErrWriteFailed, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrWriteFailed, path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("%w: write temp for %s: %v", ErrWriteFailed, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp for %s: %v", ErrWriteFailed, path, err)
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		return fmt.Errorf("%w: chmod temp for %s: %v", ErrWriteFailed, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp for %s: %v", ErrWriteFailed, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename temp for %s: %v", ErrWriteFailed, path, err)
	}

	// Directory sync is best effort.
	if dirFD, err := os.Open(dir); err == nil {
		_ = dirFD.Sync()
		_ = dirFD.Close()
	}
	return nil
}
