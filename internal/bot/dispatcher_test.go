package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wilicw/daaninfobot/internal/telegram"
)

type fakePoller struct {
	batches chan []telegram.Update
	errs    chan error

	mu      sync.Mutex
	offsets []int64
}

func newFakePoller() *fakePoller {
	return &fakePoller{batches: make(chan []telegram.Update, 4), errs: make(chan error, 4)}
}

func (p *fakePoller) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, int64, error) {
	p.mu.Lock()
	p.offsets = append(p.offsets, offset)
	p.mu.Unlock()
	select {
	case err := <-p.errs:
		return nil, offset, err
	case batch := <-p.batches:
		next := offset
		for _, u := range batch {
			if u.UpdateID >= next {
				next = u.UpdateID + 1
			}
		}
		return batch, next, nil
	case <-ctx.Done():
		return nil, offset, ctx.Err()
	}
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	delay   time.Duration
	started chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu   sync.Mutex
	sent []sentMessage
}

func (m *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string, _ telegram.SendOptions) error {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *fakeMessenger) SendDice(context.Context, int64, telegram.SendOptions) (int, error) {
	return 1, nil
}

func (m *fakeMessenger) SendAnimation(context.Context, int64, string, telegram.SendOptions) error {
	return nil
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		out = append(out, s.Text)
	}
	return out
}

func textUpdate(id, chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id,
			Chat:      &telegram.Chat{ID: chatID, Type: "group"},
			From:      &telegram.User{ID: 1},
			Text:      text,
		},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func runDispatcher(t *testing.T, d *Dispatcher) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- d.Run(ctx) }()
	return stop, ch
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherRoutesCommands(t *testing.T) {
	t.Parallel()

	poller := newFakePoller()
	messenger := &fakeMessenger{}
	deps := &Deps{Messenger: messenger, Rand: fixedRand(0), Logger: quiet()}
	d := NewDispatcher(poller, NewRouter("daaninfobot"), deps, DispatcherOptions{AllowedChatIDs: []int64{-1}, Logger: quiet()})

	poller.batches <- []telegram.Update{
		textUpdate(10, -1, "just chatting"),
		textUpdate(11, -1, "/dinner@otherbot X"),
		textUpdate(12, -2, "/dinner Z"),
		{UpdateID: 13},
		textUpdate(14, -1, "/dinner@daaninfobot pho"),
	}
	cancel, done := runDispatcher(t, d)
	waitFor(t, func() bool { return len(messenger.texts()) == 1 })
	waitFor(t, func() bool {
		poller.mu.Lock()
		defer poller.mu.Unlock()
		return len(poller.offsets) >= 2
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if diff := cmp.Diff([]string{"pho"}, messenger.texts()); diff != "" {
		t.Fatalf("replies mismatch (-want +got):\n%s", diff)
	}
	poller.mu.Lock()
	defer poller.mu.Unlock()
	if len(poller.offsets) < 2 || poller.offsets[0] != 0 || poller.offsets[1] != 15 {
		t.Fatalf("offsets = %v, want [0 15 ...]", poller.offsets)
	}
}

func TestDispatcherWaitsForInFlightOnShutdown(t *testing.T) {
	t.Parallel()

	poller := newFakePoller()
	messenger := &fakeMessenger{delay: 100 * time.Millisecond, started: make(chan struct{}, 1)}
	deps := &Deps{Messenger: messenger, Rand: fixedRand(0), Logger: quiet()}
	d := NewDispatcher(poller, NewRouter(""), deps, DispatcherOptions{Logger: quiet()})

	poller.batches <- []telegram.Update{textUpdate(1, 5, "/dinner soup")}
	cancel, done := runDispatcher(t, d)
	<-messenger.started
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"soup"}, messenger.texts()); diff != "" {
		t.Fatalf("in-flight command did not finish (-want +got):\n%s", diff)
	}
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	t.Parallel()

	poller := newFakePoller()
	messenger := &fakeMessenger{delay: 20 * time.Millisecond}
	deps := &Deps{Messenger: messenger, Rand: fixedRand(0), Logger: quiet()}
	d := NewDispatcher(poller, NewRouter(""), deps, DispatcherOptions{MaxConcurrency: 2, Logger: quiet()})

	var batch []telegram.Update
	for i := int64(1); i <= 8; i++ {
		batch = append(batch, textUpdate(i, 5, "/dinner x"))
	}
	poller.batches <- batch
	cancel, done := runDispatcher(t, d)
	waitFor(t, func() bool { return len(messenger.texts()) == 8 })
	cancel()
	<-done

	if got := messenger.maxInFlight.Load(); got > 2 {
		t.Fatalf("max concurrent handlers = %d, want <= 2", got)
	}
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	poller := newFakePoller()
	messenger := &fakeMessenger{}
	deps := &Deps{Messenger: messenger, Rand: fixedRand(0), Logger: quiet()}
	router := &Router{handlers: map[string]HandlerFunc{
		"boom":   func(context.Context, *Deps, Request) error { panic("handler exploded") },
		"dinner": handleDinner,
	}}
	d := NewDispatcher(poller, router, deps, DispatcherOptions{Logger: quiet()})

	poller.batches <- []telegram.Update{textUpdate(1, 5, "/boom"), textUpdate(2, 5, "/dinner ok")}
	cancel, done := runDispatcher(t, d)
	waitFor(t, func() bool { return len(messenger.texts()) == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestDispatcherRetriesPollErrors(t *testing.T) {
	t.Parallel()

	poller := newFakePoller()
	messenger := &fakeMessenger{}
	deps := &Deps{Messenger: messenger, Rand: fixedRand(0), Logger: quiet()}
	d := NewDispatcher(poller, NewRouter(""), deps, DispatcherOptions{Logger: quiet()})
	d.backoff = time.Millisecond

	poller.errs <- errors.New("bad gateway")
	poller.batches <- []telegram.Update{textUpdate(3, 5, "/dinner later")}
	cancel, done := runDispatcher(t, d)
	waitFor(t, func() bool { return len(messenger.texts()) == 1 })
	cancel()
	<-done
}
