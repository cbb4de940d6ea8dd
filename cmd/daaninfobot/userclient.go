package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/wilicw/daaninfobot/internal/configutil"
	"github.com/wilicw/daaninfobot/internal/logutil"
	"github.com/wilicw/daaninfobot/internal/sessionstore"
	"github.com/wilicw/daaninfobot/internal/userclient"
)

const sessionLockWait = 3 * time.Second

func addUserClientFlags(cmd *cobra.Command) {
	cmd.Flags().Int("app-id", 0, "API id of the user account application (my.telegram.org).")
	cmd.Flags().String("app-hash", "", "API hash of the user account application.")
	cmd.Flags().String("phone", "", "Phone number for first login (prompted when empty).")
	cmd.Flags().String("session-file", "daaninfobot.session", "Where the user account session is stored.")
}

// userClient is an open user-account session together with the file lock
// guarding it.
type userClient struct {
	manager *userclient.Manager
	lock    *sessionstore.Lock
	logger  *slog.Logger
}

func (u *userClient) Close() {
	if err := u.manager.Close(); err != nil {
		u.logger.Warn("userclient_close_error", "error", err.Error())
	}
	if err := u.lock.Release(); err != nil {
		u.logger.Warn("session_lock_release_error", "error", err.Error())
	}
}

func openUserClient(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (*userClient, error) {
	appID := configutil.FlagOrViperInt(cmd, "app-id", "userclient.app_id")
	appHash := strings.TrimSpace(configutil.FlagOrViperString(cmd, "app-hash", "userclient.app_hash"))
	if appID <= 0 || appHash == "" {
		return nil, fmt.Errorf("missing userclient.app_id or userclient.app_hash (set via --app-id/--app-hash or %s_USERCLIENT_APP_ID/%s_USERCLIENT_APP_HASH)", envPrefix, envPrefix)
	}
	sessionPath := strings.TrimSpace(configutil.FlagOrViperString(cmd, "session-file", "userclient.session_file"))

	lockCtx, cancel := context.WithTimeout(ctx, sessionLockWait)
	lock, err := sessionstore.AcquireLock(lockCtx, sessionPath)
	cancel()
	if err != nil {
		if errors.Is(err, sessionstore.ErrLocked) {
			return nil, fmt.Errorf("session %s is in use by another process: %w", sessionPath, err)
		}
		return nil, err
	}

	store, err := sessionstore.NewFileStore(sessionPath)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	zlog, err := logutil.ZapFromViper()
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	logger.Info("userclient_connect", "session_file", store.Path())
	manager, err := userclient.Connect(ctx, userclient.Options{
		Store:          store,
		Dial:           userclient.GotdDial(appID, appHash, zlog),
		Prompter:       userclient.NewTerminalPrompter(os.Stdin, os.Stdout),
		Phone:          configutil.FlagOrViperString(cmd, "phone", "userclient.phone"),
		ResolveRate:    rate.Limit(viper.GetFloat64("userclient.resolve_rate")),
		ResolveBurst:   viper.GetInt("userclient.resolve_burst"),
		ResolveTimeout: viper.GetDuration("userclient.resolve_timeout"),
		Logger:         logger,
	})
	_ = zlog.Sync()
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	if perr := manager.PersistErr(); perr != nil {
		logger.Warn("userclient_session_not_saved", "error", perr.Error(), "session_file", store.Path())
	}
	return &userClient{manager: manager, lock: lock, logger: logger}, nil
}
