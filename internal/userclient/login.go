package userclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Prompter supplies login input interactively. Calls block until the user
// answers or ctx is done.
type Prompter interface {
	Phone(ctx context.Context) (string, error)
	Code(ctx context.Context) (string, error)
	Password(ctx context.Context, hint string) (string, error)
}

type LoginState int

const (
	StateAwaitingPhone LoginState = iota + 1
	StateAwaitingCode
	StateAwaitingPassword
	StateAuthorized
	StateFailed
)

func (s LoginState) String() string {
	switch s {
	case StateAwaitingPhone:
		return "awaiting_phone"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateAuthorized:
		return "authorized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("login_state(%d)", int(s))
	}
}

const noHint = "None"

// Login walks phone -> code -> optional password until the account is
// authorized or a step fails.
type Login struct {
	conn     Conn
	prompter Prompter
	phone    string
	logger   *slog.Logger

	state     LoginState
	challenge *LoginChallenge
	err       error
}

// NewLogin prepares a login. A non-empty phone skips the phone prompt.
func NewLogin(conn Conn, prompter Prompter, phone string, logger *slog.Logger) *Login {
	if logger == nil {
		logger = slog.Default()
	}
	return &Login{
		conn:     conn,
		prompter: prompter,
		phone:    strings.TrimSpace(phone),
		logger:   logger,
		state:    StateAwaitingPhone,
	}
}

func (l *Login) State() LoginState { return l.state }

func (l *Login) Run(ctx context.Context) error {
	for {
		switch l.state {
		case StateAuthorized:
			return nil
		case StateFailed:
			return l.err
		}
		if err := ctx.Err(); err != nil {
			l.fail("context", err)
			continue
		}
		prev := l.state
		l.step(ctx)
		l.logger.Debug("userclient_login_transition", "from", prev.String(), "to", l.state.String())
	}
}

func (l *Login) step(ctx context.Context) {
	switch l.state {
	case StateAwaitingPhone:
		phone := l.phone
		if phone == "" {
			answer, err := l.prompter.Phone(ctx)
			if err != nil {
				l.fail("phone_prompt", err)
				return
			}
			phone = strings.TrimSpace(answer)
		}
		if phone == "" {
			l.fail("phone_prompt", errors.New("empty phone number"))
			return
		}
		challenge, err := l.conn.SendCode(ctx, phone)
		if err != nil {
			l.fail("send_code", err)
			return
		}
		l.challenge = &challenge
		l.state = StateAwaitingCode

	case StateAwaitingCode:
		code, err := l.prompter.Code(ctx)
		if err != nil {
			l.fail("code_prompt", err)
			return
		}
		challenge := l.challenge
		l.challenge = nil
		if challenge == nil {
			l.fail("sign_in", errors.New("login challenge already used"))
			return
		}
		err = l.conn.SignIn(ctx, *challenge, strings.TrimSpace(code))
		switch {
		case err == nil:
			l.state = StateAuthorized
		case errors.Is(err, ErrPasswordRequired):
			l.state = StateAwaitingPassword
		default:
			l.fail("sign_in", err)
		}

	case StateAwaitingPassword:
		hint, err := l.conn.PasswordHint(ctx)
		if err != nil {
			l.fail("password_hint", err)
			return
		}
		if strings.TrimSpace(hint) == "" {
			hint = noHint
		}
		password, err := l.prompter.Password(ctx, hint)
		if err != nil {
			l.fail("password_prompt", err)
			return
		}
		if err := l.conn.CheckPassword(ctx, strings.TrimSpace(password)); err != nil {
			l.fail("check_password", err)
			return
		}
		l.state = StateAuthorized

	default:
		l.fail("state", fmt.Errorf("unexpected login state %s", l.state))
	}
}

func (l *Login) fail(stage string, err error) {
	l.state = StateFailed
	l.challenge = nil
	l.err = &AuthError{Stage: stage, Err: err}
}
