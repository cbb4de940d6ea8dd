package userclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

// GotdDial returns a DialFunc backed by an MTProto client for the given API
// credentials (from my.telegram.org).
func GotdDial(appID int, appHash string, logger *zap.Logger) DialFunc {
	return func(stored []byte) (Dialer, error) {
		if appID <= 0 || strings.TrimSpace(appHash) == "" {
			return nil, fmt.Errorf("missing userclient.app_id or userclient.app_hash")
		}
		if logger == nil {
			logger = zap.NewNop()
		}
		storage, err := newSessionStorage(stored)
		if err != nil {
			return nil, err
		}
		client := telegram.NewClient(appID, strings.TrimSpace(appHash), telegram.Options{
			SessionStorage: storage,
			Logger:         logger,
		})
		return &gotdDialer{client: client, storage: storage}, nil
	}
}

// newSessionStorage primes the client's in-memory session with what was read
// from disk. The client rewrites it on every auth change; the Manager copies
// it to the durable store once, right after an interactive login.
func newSessionStorage(stored []byte) (*session.StorageMemory, error) {
	storage := &session.StorageMemory{}
	if len(stored) == 0 {
		return storage, nil
	}
	if err := storage.StoreSession(context.Background(), append([]byte(nil), stored...)); err != nil {
		return nil, fmt.Errorf("prime session: %w", err)
	}
	return storage, nil
}

type gotdDialer struct {
	client  *telegram.Client
	storage *session.StorageMemory
}

func (d *gotdDialer) Run(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error {
	return d.client.Run(ctx, func(ctx context.Context) error {
		return fn(ctx, &gotdConn{client: d.client, api: d.client.API(), storage: d.storage})
	})
}

type gotdConn struct {
	client  *telegram.Client
	api     *tg.Client
	storage *session.StorageMemory
}

func (c *gotdConn) Authorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

func (c *gotdConn) SendCode(ctx context.Context, phone string) (LoginChallenge, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return LoginChallenge{}, err
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return LoginChallenge{}, fmt.Errorf("unexpected sent code response %T", sent)
	}
	return LoginChallenge{Phone: phone, CodeHash: code.PhoneCodeHash}, nil
}

func (c *gotdConn) SignIn(ctx context.Context, challenge LoginChallenge, code string) error {
	_, err := c.client.Auth().SignIn(ctx, challenge.Phone, code, challenge.CodeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return fmt.Errorf("%w: %v", ErrPasswordRequired, err)
	}
	return err
}

func (c *gotdConn) PasswordHint(ctx context.Context) (string, error) {
	pwd, err := c.api.AccountGetPassword(ctx)
	if err != nil {
		return "", err
	}
	hint, _ := pwd.GetHint()
	return hint, nil
}

func (c *gotdConn) CheckPassword(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	return err
}

func (c *gotdConn) SignOut(ctx context.Context) error {
	_, err := c.api.AuthLogOut(ctx)
	return err
}

func (c *gotdConn) ResolveUsername(ctx context.Context, username string) (int64, bool, error) {
	res, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return 0, false, nil
		}
		return 0, false, err
	}
	peer, ok := res.Peer.(*tg.PeerUser)
	if !ok {
		// Channels and groups have usernames too; they cannot hold a title.
		return 0, false, nil
	}
	return peer.UserID, true, nil
}

func (c *gotdConn) Session(context.Context) ([]byte, error) {
	data, err := c.storage.Bytes(nil)
	if errors.Is(err, session.ErrNotFound) || (err == nil && len(data) == 0) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
