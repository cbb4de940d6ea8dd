package userclient

import "context"

// LoginChallenge is issued by SendCode and spent by exactly one SignIn.
type LoginChallenge struct {
	Phone    string
	CodeHash string
}

// Conn is one live user-account connection. Implementations are not safe for
// concurrent use; the Manager's worker is the only caller after login.
type Conn interface {
	Authorized(ctx context.Context) (bool, error)
	SendCode(ctx context.Context, phone string) (LoginChallenge, error)
	// SignIn returns an error wrapping ErrPasswordRequired when the account
	// has two-step verification enabled.
	SignIn(ctx context.Context, challenge LoginChallenge, code string) error
	PasswordHint(ctx context.Context) (string, error)
	CheckPassword(ctx context.Context, password string) error
	SignOut(ctx context.Context) error
	ResolveUsername(ctx context.Context, username string) (id int64, ok bool, err error)
	// Session exports the current session material for persistence.
	Session(ctx context.Context) ([]byte, error)
}

// Dialer runs fn with a connected Conn and tears the connection down when fn
// returns.
type Dialer interface {
	Run(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error
}

// DialFunc builds a Dialer primed with previously stored session material,
// which is nil on first start.
type DialFunc func(session []byte) (Dialer, error)

type SessionStore interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, session []byte) error
}
