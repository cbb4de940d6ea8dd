package bot

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/wilicw/daaninfobot/internal/telegram"
)

// Request is one recognised command.
type Request struct {
	Message *telegram.Message
	// Command is the lower-cased name without the slash or @bot suffix.
	Command string
	// Args is the trimmed text after the command token.
	Args   string
	Logger *slog.Logger
}

type HandlerFunc func(ctx context.Context, d *Deps, req Request) error

// Router maps command names to handlers. The table is fixed at construction.
type Router struct {
	botUsername string
	handlers    map[string]HandlerFunc
}

func NewRouter(botUsername string) *Router {
	return &Router{
		botUsername: strings.TrimPrefix(strings.TrimSpace(botUsername), "@"),
		handlers: map[string]HandlerFunc{
			"start":   handleHelp,
			"help":    handleHelp,
			"roll":    handleRoll,
			"title":   handleTitle,
			"untitle": handleUntitle,
			"dinner":  handleDinner,
		},
	}
}

// Commands lists the registered command names in order.
func (r *Router) Commands() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Route returns the handler for text, or ok=false when text is not a command
// this bot answers.
func (r *Router) Route(text string) (HandlerFunc, string, string, bool) {
	token, rest := splitCommand(text)
	name, ok := r.normalizeSlashCommand(token)
	if !ok {
		return nil, "", "", false
	}
	h, ok := r.handlers[name]
	if !ok {
		return nil, "", "", false
	}
	return h, name, rest, true
}

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// normalizeSlashCommand strips the slash and an "@BotName" suffix. A suffix
// naming some other bot means the command is not ours.
func (r *Router) normalizeSlashCommand(cmd string) (string, bool) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return "", false
	}
	cmd = cmd[1:]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		target := cmd[at+1:]
		cmd = cmd[:at]
		if r.botUsername != "" && !strings.EqualFold(target, r.botUsername) {
			return "", false
		}
	}
	if cmd == "" {
		return "", false
	}
	return strings.ToLower(cmd), true
}

func (r Request) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
