// Package userclient owns the secondary, user-account connection the bot uses
// for lookups the Bot API cannot do.
//
// The connection belongs to a single worker goroutine. Callers reach it only
// through ResolveUsername, which queues a request and waits for the worker's
// answer, so calls on the connection never interleave.
package userclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultResolveRate  = rate.Limit(1)
	defaultResolveBurst = 3
	signOutTimeout      = 10 * time.Second
)

type Options struct {
	Store    SessionStore
	Dial     DialFunc
	Prompter Prompter
	// Phone skips the phone prompt when set.
	Phone string

	// ResolveRate and ResolveBurst pace username lookups.
	ResolveRate  rate.Limit
	ResolveBurst int
	// ResolveTimeout caps one lookup, queueing included. Zero means no cap.
	ResolveTimeout time.Duration

	Logger *slog.Logger
}

type resolveRequest struct {
	ctx      context.Context
	username string
	reply    chan resolveResult
}

type resolveResult struct {
	id  int64
	ok  bool
	err error
}

type Manager struct {
	logger         *slog.Logger
	limiter        *rate.Limiter
	resolveTimeout time.Duration

	requests chan resolveRequest
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	cancel   context.CancelFunc

	signOutOnClose atomic.Bool
	persistErr     error
	runErr         error
}

// Connect loads the stored session, dials, and logs in interactively if the
// session is not authorized. It returns once the worker is ready to serve
// lookups. Login failures are returned as *AuthError; a failure to store the
// fresh session is only logged and marks the session for sign-out on Close.
func Connect(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("userclient: missing session store")
	}
	if opts.Dial == nil {
		return nil, fmt.Errorf("userclient: missing dialer")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.ResolveRate
	if limit <= 0 {
		limit = defaultResolveRate
	}
	burst := opts.ResolveBurst
	if burst <= 0 {
		burst = defaultResolveBurst
	}

	session, found, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("userclient: load session: %w", err)
	}
	if !found {
		logger.Info("userclient_session_new")
	}
	dialer, err := opts.Dial(session)
	if err != nil {
		return nil, fmt.Errorf("userclient: dial: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m := &Manager{
		logger:         logger,
		limiter:        rate.NewLimiter(limit, burst),
		resolveTimeout: opts.ResolveTimeout,
		requests:       make(chan resolveRequest),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		cancel:         cancel,
	}

	ready := make(chan error, 1)
	go m.run(runCtx, dialer, opts, ready)

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-m.done
			return nil, err
		}
		return m, nil
	case <-ctx.Done():
		cancel()
		<-m.done
		return nil, ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, dialer Dialer, opts Options, ready chan<- error) {
	defer close(m.done)
	served := false
	err := dialer.Run(ctx, func(ctx context.Context, conn Conn) error {
		if err := m.authorize(ctx, conn, opts); err != nil {
			return err
		}
		served = true
		ready <- nil
		return m.serve(ctx, conn)
	})
	m.runErr = err
	if served && !m.stopping() {
		msg := "connection ended"
		if err != nil {
			msg = err.Error()
		}
		m.logger.Error("userclient_worker_exit", "error", msg)
	}
	if err == nil {
		err = ErrClosed
	}
	select {
	case ready <- err:
	default:
	}
}

func (m *Manager) authorize(ctx context.Context, conn Conn, opts Options) error {
	authorized, err := conn.Authorized(ctx)
	if err != nil {
		return &AuthError{Stage: "status", Err: err}
	}
	if authorized {
		m.logger.Info("userclient_authorized", "source", "stored_session")
		return nil
	}
	if opts.Prompter == nil {
		return &AuthError{Stage: "prompt", Err: ErrNoPrompter}
	}

	m.logger.Info("userclient_sign_in_start")
	if err := NewLogin(conn, opts.Prompter, opts.Phone, m.logger).Run(ctx); err != nil {
		return err
	}
	m.logger.Info("userclient_authorized", "source", "interactive_login")

	data, err := conn.Session(ctx)
	if err == nil && len(data) == 0 {
		err = ErrNoSession
	}
	if err == nil {
		err = opts.Store.Save(ctx, data)
	}
	if err != nil {
		m.persistErr = &PersistenceError{Err: err}
		m.signOutOnClose.Store(true)
		m.logger.Warn("userclient_session_persist_failed", "error", err.Error(), "sign_out_on_close", true)
		return nil
	}
	m.logger.Info("userclient_session_saved")
	return nil
}

func (m *Manager) serve(ctx context.Context, conn Conn) error {
	for {
		select {
		case <-m.stop:
			if m.signOutOnClose.Load() {
				m.signOut(ctx, conn)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case req := <-m.requests:
			req.reply <- m.resolve(conn, req)
		}
	}
}

func (m *Manager) resolve(conn Conn, req resolveRequest) resolveResult {
	if err := req.ctx.Err(); err != nil {
		return resolveResult{err: err}
	}
	if err := m.limiter.Wait(req.ctx); err != nil {
		return resolveResult{err: err}
	}
	id, ok, err := conn.ResolveUsername(req.ctx, req.username)
	if err != nil {
		if ctxErr := req.ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		m.logger.Warn("userclient_resolve_error", "username", req.username, "error", err.Error())
		return resolveResult{err: &TransportError{Op: "resolve_username", Err: err}}
	}
	return resolveResult{id: id, ok: ok}
}

func (m *Manager) signOut(ctx context.Context, conn Conn) {
	ctx, cancel := context.WithTimeout(ctx, signOutTimeout)
	defer cancel()
	if err := conn.SignOut(ctx); err != nil {
		m.logger.Warn("userclient_sign_out_failed", "error", err.Error())
		return
	}
	m.logger.Info("userclient_signed_out", "reason", "session_not_persisted")
}

// ResolveUsername looks up a public username. ok is false when the name is
// not taken by a user. Connection failures come back as *TransportError.
func (m *Manager) ResolveUsername(ctx context.Context, username string) (int64, bool, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return 0, false, nil
	}
	if m.resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.resolveTimeout)
		defer cancel()
	}
	req := resolveRequest{ctx: ctx, username: username, reply: make(chan resolveResult, 1)}

	select {
	case m.requests <- req:
	case <-ctx.Done():
		return 0, false, ctx.Err()
	case <-m.done:
		return 0, false, m.closedErr()
	}

	// The worker watches req.ctx too, so once the request is taken its
	// answer is awaited even past the caller's deadline.
	select {
	case res := <-req.reply:
		return res.id, res.ok, res.err
	case <-m.done:
		select {
		case res := <-req.reply:
			return res.id, res.ok, res.err
		default:
			return 0, false, m.closedErr()
		}
	}
}

func (m *Manager) stopping() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

// closedErr is the error for a call that found the worker gone. It must only
// be called after done is closed.
func (m *Manager) closedErr() error {
	if m.stopping() {
		return ErrClosed
	}
	err := ErrClosed
	if m.runErr != nil {
		err = fmt.Errorf("%w: %w", ErrClosed, m.runErr)
	}
	return &TransportError{Op: "resolve_username", Err: err}
}

// SignOutOnClose reports whether Close will log the account out.
func (m *Manager) SignOutOnClose() bool { return m.signOutOnClose.Load() }

// PersistErr is the error from saving the session after login, if any.
func (m *Manager) PersistErr() error {
	if m.persistErr == nil {
		return nil
	}
	return m.persistErr
}

// Close stops the worker, signing out first when the session was never
// persisted, and waits for the connection to shut down.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
	m.cancel()
	if m.runErr != nil && !errors.Is(m.runErr, context.Canceled) {
		return m.runErr
	}
	return nil
}
