package userclient

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/session"
)

func TestSessionStorageEmpty(t *testing.T) {
	t.Parallel()

	storage, err := newSessionStorage(nil)
	if err != nil {
		t.Fatalf("newSessionStorage() error = %v", err)
	}
	if _, err := storage.LoadSession(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("LoadSession() error = %v, want ErrNotFound", err)
	}
	conn := &gotdConn{storage: storage}
	if _, err := conn.Session(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Session() error = %v, want ErrNoSession", err)
	}
}

func TestSessionStoragePrimedFromDisk(t *testing.T) {
	t.Parallel()

	stored := []byte("auth-key")
	storage, err := newSessionStorage(stored)
	if err != nil {
		t.Fatalf("newSessionStorage() error = %v", err)
	}
	stored[0] = 'X'

	got, err := storage.LoadSession(context.Background())
	if err != nil || string(got) != "auth-key" {
		t.Fatalf("LoadSession() = (%q, %v), want auth-key", got, err)
	}
	data, err := (&gotdConn{storage: storage}).Session(context.Background())
	if err != nil || string(data) != "auth-key" {
		t.Fatalf("Session() = (%q, %v), want auth-key", data, err)
	}
}

func TestSessionExportFollowsClientWrites(t *testing.T) {
	t.Parallel()

	storage, err := newSessionStorage(nil)
	if err != nil {
		t.Fatalf("newSessionStorage() error = %v", err)
	}
	if err := storage.StoreSession(context.Background(), []byte("fresh-login")); err != nil {
		t.Fatalf("StoreSession() error = %v", err)
	}
	data, err := (&gotdConn{storage: storage}).Session(context.Background())
	if err != nil || string(data) != "fresh-login" {
		t.Fatalf("Session() = (%q, %v), want fresh-login", data, err)
	}
}

func TestGotdDialRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := GotdDial(0, "hash", nil)(nil); err == nil {
		t.Fatalf("GotdDial(0) error = nil, want missing credentials")
	}
	if _, err := GotdDial(1, " ", nil)(nil); err == nil {
		t.Fatalf("GotdDial(blank hash) error = nil, want missing credentials")
	}
}
