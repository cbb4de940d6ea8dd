package userclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeConn struct {
	mu sync.Mutex

	authorized    bool
	authorizedErr error
	sendCodeErr   error
	signInErr     error
	hint          string
	passwordErr   error
	session       []byte
	users         map[string]int64
	resolveErr    error
	resolveDelay  time.Duration

	codesSent     int
	signIns       []string
	passwords     []string
	signOuts      int
	resolveCalls  int
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
	usedChallenge []LoginChallenge
}

func (c *fakeConn) Authorized(context.Context) (bool, error) {
	return c.authorized, c.authorizedErr
}

func (c *fakeConn) SendCode(_ context.Context, phone string) (LoginChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendCodeErr != nil {
		return LoginChallenge{}, c.sendCodeErr
	}
	c.codesSent++
	return LoginChallenge{Phone: phone, CodeHash: "hash-1"}, nil
}

func (c *fakeConn) SignIn(_ context.Context, challenge LoginChallenge, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signIns = append(c.signIns, code)
	c.usedChallenge = append(c.usedChallenge, challenge)
	return c.signInErr
}

func (c *fakeConn) PasswordHint(context.Context) (string, error) {
	return c.hint, nil
}

func (c *fakeConn) CheckPassword(_ context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passwords = append(c.passwords, password)
	return c.passwordErr
}

func (c *fakeConn) SignOut(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signOuts++
	return nil
}

func (c *fakeConn) ResolveUsername(ctx context.Context, username string) (int64, bool, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		cur := c.maxInFlight.Load()
		if n <= cur || c.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if c.resolveDelay > 0 {
		select {
		case <-time.After(c.resolveDelay):
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveCalls++
	if c.resolveErr != nil {
		return 0, false, c.resolveErr
	}
	id, ok := c.users[username]
	return id, ok, nil
}

func (c *fakeConn) Session(context.Context) ([]byte, error) {
	if len(c.session) == 0 {
		return nil, ErrNoSession
	}
	return c.session, nil
}

func (c *fakeConn) counts() (signOuts, resolveCalls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signOuts, c.resolveCalls
}

type fakeDialer struct {
	conn *fakeConn
}

func (d *fakeDialer) Run(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error {
	return fn(ctx, d.conn)
}

func dialWith(conn *fakeConn, seen *[]byte) DialFunc {
	return func(stored []byte) (Dialer, error) {
		if seen != nil {
			*seen = stored
		}
		return &fakeDialer{conn: conn}, nil
	}
}

type fakeStore struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (s *fakeStore) Load(context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	return s.data, len(s.data) > 0, nil
}

func (s *fakeStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	return nil
}

type scriptedPrompter struct {
	phone    string
	code     string
	password string
	err      error

	phoneAsked    int
	codeAsked     int
	passwordHints []string
}

func (p *scriptedPrompter) Phone(context.Context) (string, error) {
	p.phoneAsked++
	return p.phone, p.err
}

func (p *scriptedPrompter) Code(context.Context) (string, error) {
	p.codeAsked++
	return p.code, p.err
}

func (p *scriptedPrompter) Password(_ context.Context, hint string) (string, error) {
	p.passwordHints = append(p.passwordHints, hint)
	return p.password, p.err
}

var errBoom = errors.New("boom")
