package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wilicw/daaninfobot/internal/telegram"
)

const (
	defaultPollTimeout    = 30 * time.Second
	defaultTaskTimeout    = 60 * time.Second
	defaultMaxConcurrency = 8
	pollErrorBackoff      = 1 * time.Second
)

type DispatcherOptions struct {
	PollTimeout    time.Duration
	TaskTimeout    time.Duration
	MaxConcurrency int
	// AllowedChatIDs restricts the bot to these chats when non-empty.
	AllowedChatIDs []int64
	Logger         *slog.Logger
}

// Dispatcher long-polls for updates and runs each recognised command in its
// own goroutine.
type Dispatcher struct {
	poller Poller
	router *Router
	deps   *Deps
	logger *slog.Logger

	pollTimeout time.Duration
	taskTimeout time.Duration
	maxConc     int
	allowed     map[int64]bool
	backoff     time.Duration
}

func NewDispatcher(poller Poller, router *Router, deps *Deps, opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = deps.logger()
	}
	d := &Dispatcher{
		poller:      poller,
		router:      router,
		deps:        deps,
		logger:      logger,
		pollTimeout: opts.PollTimeout,
		taskTimeout: opts.TaskTimeout,
		maxConc:     opts.MaxConcurrency,
		backoff:     pollErrorBackoff,
	}
	if d.pollTimeout <= 0 {
		d.pollTimeout = defaultPollTimeout
	}
	if d.taskTimeout <= 0 {
		d.taskTimeout = defaultTaskTimeout
	}
	if d.maxConc <= 0 {
		d.maxConc = defaultMaxConcurrency
	}
	if len(opts.AllowedChatIDs) > 0 {
		d.allowed = make(map[int64]bool, len(opts.AllowedChatIDs))
		for _, id := range opts.AllowedChatIDs {
			d.allowed[id] = true
		}
	}
	return d
}

// Run polls until ctx is done, then waits for in-flight commands to finish.
// Commands keep running after ctx is canceled, bounded by the task timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, d.maxConc)
	var offset int64
	d.logger.Info("bot_start", "max_concurrency", d.maxConc, "poll_timeout", d.pollTimeout.String())
	for {
		updates, next, err := d.poller.GetUpdates(ctx, offset, d.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				d.logger.Info("bot_stop", "reason", "context_canceled")
				return nil
			}
			if telegram.IsPollTimeoutError(err) {
				d.logger.Debug("bot_get_updates_timeout", "error", err.Error())
			} else {
				d.logger.Warn("bot_get_updates_error", "error", err.Error())
			}
			select {
			case <-ctx.Done():
				d.logger.Info("bot_stop", "reason", "context_canceled")
				return nil
			case <-time.After(d.backoff):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			msg := u.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			if msg.From != nil && msg.From.IsBot {
				continue
			}
			h, name, args, ok := d.router.Route(msg.Text)
			if !ok {
				continue
			}
			if d.allowed != nil && !d.allowed[msg.Chat.ID] {
				d.logger.Warn("bot_chat_not_allowed", "chat_id", msg.Chat.ID, "command", name)
				continue
			}
			req := Request{Message: msg, Command: name, Args: args}

			wg.Add(1)
			go func() {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				d.handle(ctx, h, req)
			}()
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, h HandlerFunc, req Request) {
	logger := d.logger.With(
		"task_id", uuid.NewString(),
		"chat_id", req.Message.Chat.ID,
		"message_id", req.Message.MessageID,
		"command", req.Command,
	)
	if req.Message.From != nil {
		logger = logger.With("from_user_id", req.Message.From.ID)
	}
	req.Logger = logger

	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.taskTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bot_handler_panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	if err := h(taskCtx, d.deps, req); err != nil {
		logger.Warn("bot_command_error", "error", err.Error(), "elapsed", time.Since(start).String())
		return
	}
	logger.Debug("bot_command_done", "elapsed", time.Since(start).String())
}
