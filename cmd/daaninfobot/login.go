package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wilicw/daaninfobot/internal/logutil"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log the user account in interactively and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			uc, err := openUserClient(ctx, cmd, logger)
			if err != nil {
				return err
			}
			defer uc.Close()

			if perr := uc.manager.PersistErr(); perr != nil {
				return fmt.Errorf("logged in but the session was not saved; it will be signed out: %w", perr)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed in. Session stored.")
			return nil
		},
	}
	addUserClientFlags(cmd)
	return cmd
}
