// Package title grants a chat member the minimal administrator rights needed
// to carry a custom title, then sets (or clears) that title.
package title

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wilicw/daaninfobot/internal/mention"
	"github.com/wilicw/daaninfobot/internal/telegram"
)

// ChatAdmin is the slice of the Bot API the workflow needs.
type ChatAdmin interface {
	PromoteChatMember(ctx context.Context, chatID, userID int64, rights telegram.AdminRights) error
	SetChatAdministratorCustomTitle(ctx context.Context, chatID, userID int64, title string) error
}

var (
	// TitleRights lets a member hold a custom title and pin messages.
	TitleRights = telegram.AdminRights{CanInviteUsers: true, CanPinMessages: true}
	// ClearRights keeps the member an administrator so the title can be
	// blanked. An all-false promotion would demote instead.
	ClearRights = telegram.AdminRights{CanInviteUsers: true}
)

type State int

const (
	StateIdle State = iota
	StatePromoting
	StateTitling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePromoting:
		return "promoting"
	case StateTitling:
		return "titling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	StepPromote  = "promote"
	StepSetTitle = "set_title"
)

// Error is a failed workflow step. Rights granted by an earlier step are
// left in place.
type Error struct {
	Step   string
	Target mention.Target
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("title: %s for user %d: %v", e.Step, e.Target.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Rejection is the chat service's own explanation for declining the step,
// or "" when the failure was not a service rejection.
func (e *Error) Rejection() string {
	var reqErr *telegram.RequestError
	if errors.As(e.Err, &reqErr) {
		return strings.TrimSpace(reqErr.Description)
	}
	return ""
}

type Request struct {
	ChatID int64
	Target mention.Target
	// Title is applied verbatim. Clear ignores it and sets an empty title.
	Title string
	Clear bool
}

type Result struct {
	State State
	Reply string
	Err   error
}

type Workflow struct {
	admin  ChatAdmin
	logger *slog.Logger
}

func NewWorkflow(admin ChatAdmin, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{admin: admin, logger: logger}
}

// Apply runs promote then set-title. The reply is always filled in, for
// success and failure alike.
func (w *Workflow) Apply(ctx context.Context, req Request) Result {
	rights, title := TitleRights, req.Title
	if req.Clear {
		rights, title = ClearRights, ""
	}
	logger := w.logger.With("chat_id", req.ChatID, "target_id", req.Target.ID, "clear", req.Clear)

	state := StatePromoting
	logger.Debug("title_transition", "from", StateIdle.String(), "to", state.String())
	if err := w.admin.PromoteChatMember(ctx, req.ChatID, req.Target.ID, rights); err != nil {
		return w.fail(logger, req, StepPromote, err)
	}

	logger.Debug("title_transition", "from", state.String(), "to", StateTitling.String())
	if err := w.admin.SetChatAdministratorCustomTitle(ctx, req.ChatID, req.Target.ID, title); err != nil {
		return w.fail(logger, req, StepSetTitle, err)
	}

	logger.Info("title_applied")
	return Result{State: StateDone, Reply: successReply(req)}
}

func (w *Workflow) fail(logger *slog.Logger, req Request, step string, err error) Result {
	werr := &Error{Step: step, Target: req.Target, Err: err}
	logger.Warn("title_failed", "step", step, "error", err.Error())
	return Result{State: StateFailed, Reply: failureReply(req, werr), Err: werr}
}

func successReply(req Request) string {
	if req.Clear {
		return fmt.Sprintf("%s 的標籤已清除", req.Target.DisplayName)
	}
	return fmt.Sprintf("%s 的標籤已變更為%s", req.Target.DisplayName, req.Title)
}

func failureReply(req Request, err *Error) string {
	return FailureReply(req.Target.DisplayName, req.Clear, err.Rejection())
}

// FailureReply is the message shown when a title change for name did not go
// through. A non-empty reason is appended as given.
func FailureReply(name string, clearing bool, reason string) string {
	msg := fmt.Sprintf("%s 的標籤變更失敗", name)
	if clearing {
		msg = fmt.Sprintf("%s 的標籤清除失敗", name)
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		msg += "：" + reason
	}
	return msg
}
