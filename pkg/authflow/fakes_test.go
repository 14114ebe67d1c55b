package authflow_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepauth/pkg/authflow"
)

const waitFor = 2 * time.Second

type fakeReply struct {
	out authflow.Outcome
	err error
}

type fakeCall struct {
	op    string
	args  []string
	reply chan fakeReply
}

func (c *fakeCall) accept(msg string) { c.reply <- fakeReply{out: authflow.Outcome{OK: true, Message: msg}} }
func (c *fakeCall) reject(msg string) { c.reply <- fakeReply{out: authflow.Outcome{Message: msg}} }
func (c *fakeCall) fail(err error)    { c.reply <- fakeReply{err: err} }

// fakeService hands every call to the test, which answers it explicitly.
type fakeService struct {
	calls     chan *fakeCall
	logouts   atomic.Int32
	logoutErr error
}

func newFakeService() *fakeService {
	return &fakeService{calls: make(chan *fakeCall, 16)}
}

func (f *fakeService) do(ctx context.Context, op string, args ...string) (authflow.Outcome, error) {
	call := &fakeCall{op: op, args: args, reply: make(chan fakeReply, 1)}
	f.calls <- call

	select {
	case r := <-call.reply:
		return r.out, r.err
	case <-ctx.Done():
		return authflow.Outcome{}, ctx.Err()
	}
}

func (f *fakeService) Login(ctx context.Context, username, password string) (authflow.Outcome, error) {
	return f.do(ctx, "login", username, password)
}

func (f *fakeService) Verify(ctx context.Context, code string) (authflow.Outcome, error) {
	return f.do(ctx, "verify", code)
}

func (f *fakeService) Resend(ctx context.Context) (authflow.Outcome, error) {
	return f.do(ctx, "resend")
}

func (f *fakeService) Logout(context.Context) error {
	f.logouts.Add(1)
	return f.logoutErr
}

// next returns the next outstanding call and checks it is op.
func (f *fakeService) next(t *testing.T, op string) *fakeCall {
	t.Helper()

	select {
	case call := <-f.calls:
		require.Equal(t, op, call.op)
		return call
	case <-time.After(waitFor):
		t.Fatalf("no %s call within %s", op, waitFor)
		return nil
	}
}

func (f *fakeService) requireIdle(t *testing.T) {
	t.Helper()

	select {
	case call := <-f.calls:
		t.Fatalf("unexpected %s call", call.op)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

// fakeClock records the tickers the controller creates so tests can fire
// them one step at a time.
type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(time.Duration) authflow.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) active() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.tickers) - 1; i >= 0; i-- {
		if !c.tickers[i].stopped.Load() {
			return c.tickers[i]
		}
	}
	return nil
}

// tick fires the running countdown once and waits until it is applied.
func tick(t *testing.T, c *authflow.Controller, clock *fakeClock) {
	t.Helper()

	tk := clock.active()
	require.NotNil(t, tk, "countdown is not running")

	before := c.Snapshot().Remaining
	select {
	case tk.ch <- time.Now():
	case <-time.After(waitFor):
		t.Fatal("tick was not consumed")
	}

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.Remaining == before-1 || s.Phase == authflow.PhaseDenied
	}, waitFor, time.Millisecond)
}

func waitPhase(t *testing.T, c *authflow.Controller, want authflow.Phase) {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.Phase() == want
	}, waitFor, time.Millisecond, "phase never reached %s (at %s)", want, c.Phase())
}

// recorder is an Observer keeping every snapshot it receives.
type recorder struct {
	mu    sync.Mutex
	snaps []authflow.Snapshot
}

func (r *recorder) Observe(s authflow.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []authflow.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]authflow.Snapshot(nil), r.snaps...)
}

func (r *recorder) count(p authflow.Phase) int {
	n := 0
	for _, s := range r.all() {
		if s.Phase == p {
			n++
		}
	}
	return n
}

func (r *recorder) last() authflow.Snapshot {
	snaps := r.all()
	if len(snaps) == 0 {
		return authflow.Snapshot{}
	}
	return snaps[len(snaps)-1]
}

type harness struct {
	ctl   *authflow.Controller
	svc   *fakeService
	clock *fakeClock
}

func newHarness(t *testing.T, opts ...authflow.Option) *harness {
	t.Helper()

	h := &harness{svc: newFakeService(), clock: &fakeClock{}}
	base := []authflow.Option{
		authflow.WithTicker(h.clock.NewTicker),
		authflow.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	h.ctl = authflow.New(h.svc, append(base, opts...)...)
	t.Cleanup(h.ctl.Close)
	return h
}

// awaitingCode drives a fresh controller through a successful login.
func (h *harness) awaitingCode(t *testing.T) {
	t.Helper()

	_, err := h.ctl.SubmitCredentials("alice", "secret")
	require.NoError(t, err)
	h.svc.next(t, "login").accept("verification code sent")
	waitPhase(t, h.ctl, authflow.PhaseAwaitingCode)
}

// expire runs the countdown down to zero.
func (h *harness) expire(t *testing.T) {
	t.Helper()

	for h.ctl.Phase() != authflow.PhaseDenied {
		tick(t, h.ctl, h.clock)
	}
}
