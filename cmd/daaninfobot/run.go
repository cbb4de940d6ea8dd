package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wilicw/daaninfobot/internal/bot"
	"github.com/wilicw/daaninfobot/internal/configutil"
	"github.com/wilicw/daaninfobot/internal/logutil"
	"github.com/wilicw/daaninfobot/internal/mention"
	"github.com/wilicw/daaninfobot/internal/selector"
	"github.com/wilicw/daaninfobot/internal/telegram"
	"github.com/wilicw/daaninfobot/internal/title"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in the user account if needed, then serve bot commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(configutil.FlagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
			}
			allowed, err := parseChatIDs(configutil.FlagOrViperStringArray(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids"))
			if err != nil {
				return err
			}

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

			api := telegram.NewClient(&http.Client{Timeout: 60 * time.Second}, telegram.DefaultBaseURL, token)
			me, err := getMe(ctx, api, logger)
			if err != nil {
				return err
			}
			if me == nil {
				return nil
			}
			router := bot.NewRouter(me.Username)
			logger.Info("bot_identity", "bot_id", me.ID, "username", me.Username, "commands", router.Commands())

			deps := &bot.Deps{
				Messenger:     api,
				Extractor:     mention.NewExtractor(uc.manager),
				Workflow:      title.NewWorkflow(api, logger),
				Rand:          selector.Default,
				RollAnimation: strings.TrimSpace(configutil.FlagOrViperString(cmd, "roll-animation", "bot.roll_animation")),
				Logger:        logger,
			}
			dispatcher := bot.NewDispatcher(api, router, deps, bot.DispatcherOptions{
				PollTimeout:    configutil.FlagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
				TaskTimeout:    configutil.FlagOrViperDuration(cmd, "telegram-task-timeout", "telegram.task_timeout"),
				MaxConcurrency: configutil.FlagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency"),
				AllowedChatIDs: allowed,
				Logger:         logger,
			})
			return dispatcher.Run(ctx)
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("telegram-allowed-chat-id", nil, "Allowed chat id(s). If empty, allows all.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Duration("telegram-task-timeout", 60*time.Second, "Per-command timeout.")
	cmd.Flags().Int("telegram-max-concurrency", 8, "Max number of commands handled concurrently.")
	cmd.Flags().String("roll-animation", "./rickroll-roll.gif", "Animation sent for the novelty /roll outcome.")
	addUserClientFlags(cmd)

	return cmd
}

// getMe retries until the Bot API answers. A nil user with a nil error means
// ctx ended first.
func getMe(ctx context.Context, api *telegram.Client, logger *slog.Logger) (*telegram.User, error) {
	for {
		me, err := api.GetMe(ctx)
		if err == nil {
			return me, nil
		}
		if ctx.Err() != nil {
			logger.Info("bot_stop", "reason", "context_canceled")
			return nil, nil
		}
		var reqErr *telegram.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("bot token rejected: %w", err)
		}
		logger.Warn("bot_get_me_error", "error", err.Error())
		select {
		case <-ctx.Done():
			logger.Info("bot_stop", "reason", "context_canceled")
			return nil, nil
		case <-time.After(2 * time.Second):
		}
	}
}

func parseChatIDs(raw []string) ([]int64, error) {
	var out []int64
	for _, s := range raw {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid telegram.allowed_chat_ids entry %q: %w", part, err)
			}
			out = append(out, id)
		}
	}
	return out, nil
}
