// Package bot routes chat commands to their handlers and runs the update
// loop that feeds them.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/wilicw/daaninfobot/internal/mention"
	"github.com/wilicw/daaninfobot/internal/selector"
	"github.com/wilicw/daaninfobot/internal/telegram"
	"github.com/wilicw/daaninfobot/internal/title"
)

// Messenger sends replies into a chat. *telegram.Client satisfies it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) error
	SendDice(ctx context.Context, chatID int64, opts telegram.SendOptions) (int, error)
	SendAnimation(ctx context.Context, chatID int64, filePath string, opts telegram.SendOptions) error
}

// Poller fetches inbound updates. *telegram.Client satisfies it.
type Poller interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
}

// Deps is the process-wide state every handler shares. It is built once at
// startup and never mutated afterwards.
type Deps struct {
	Messenger Messenger
	Extractor *mention.Extractor
	Workflow  *title.Workflow
	Rand      selector.Rand
	// RollAnimation is the file uploaded for the novelty roll.
	RollAnimation string
	Logger        *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
