package authflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/stepauth/pkg/idx"
)

// Controller drives one login ceremony. All methods are safe for concurrent
// use; commands, service responses and countdown ticks are applied one at a
// time in arrival order.
type Controller struct {
	svc  AuthService
	opts options
	log  *slog.Logger
	id   string

	ctx    context.Context
	cancel context.CancelFunc

	dispatch *dispatcher

	mu     sync.Mutex
	closed bool
	phase  Phase
	seq    uint64 // bumped by every command and every reset
	subs   []*subscription

	username string
	password string
	code     string

	message string
	reason  string
	fault   Kind

	timer countdown
}

// New returns a Controller in PhaseLoginForm.
func New(svc AuthService, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	total := int(o.window / o.interval)
	if total < 1 {
		total = 1
	}

	id := idx.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		svc:      svc,
		opts:     o,
		log:      o.logger.With("ceremony", id),
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		dispatch: newDispatcher(),
		phase:    PhaseLoginForm,
		timer:    countdown{interval: o.interval, total: total},
	}
}

// ID returns the ceremony identifier used in log lines and snapshots.
func (c *Controller) ID() string { return c.id }

// SubmitCredentials starts authentication with the given username and
// password. Both must be non-blank.
func (c *Controller) SubmitCredentials(username, password string) (Phase, error) {
	const op = "SubmitCredentials"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(op, PhaseLoginForm); err != nil {
		return c.phase, err
	}
	if blank(username) || blank(password) {
		return c.phase, invalidTransition(op, c.phase, "username and password are required")
	}

	c.username, c.password = username, password
	seq := c.command(op, PhaseAuthenticating)
	c.call(PhaseAuthenticating, seq, func(ctx context.Context) (Outcome, error) {
		return c.svc.Login(ctx, username, password)
	})
	return c.phase, nil
}

// SubmitCode submits a verification code while one is awaited.
func (c *Controller) SubmitCode(code string) (Phase, error) {
	const op = "SubmitCode"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(op, PhaseAwaitingCode); err != nil {
		return c.phase, err
	}
	if blank(code) {
		return c.phase, invalidTransition(op, c.phase, "code is required")
	}

	c.code = code
	seq := c.command(op, PhaseVerifying)
	c.call(PhaseVerifying, seq, func(ctx context.Context) (Outcome, error) {
		return c.svc.Verify(ctx, code)
	})
	return c.phase, nil
}

// RequestResend asks for a fresh code. The countdown keeps running while the
// request is in flight and is only refilled when the resend succeeds; if it
// runs out first the ceremony is denied and the late answer is discarded.
func (c *Controller) RequestResend() (Phase, error) {
	const op = "RequestResend"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(op, PhaseAwaitingCode); err != nil {
		return c.phase, err
	}

	c.code = ""
	seq := c.command(op, PhaseResending)
	c.call(PhaseResending, seq, c.svc.Resend)
	return c.phase, nil
}

// Restart leaves PhaseDenied for a fresh login form.
//
// It also fires AuthService.Logout on its own goroutine so the server drops
// the pending challenge. The call is best effort: failures are only logged
// and never change the phase.
func (c *Controller) Restart() (Phase, error) {
	return c.reset("Restart", PhaseDenied)
}

// Logout ends a granted ceremony and returns to the login form.
func (c *Controller) Logout() (Phase, error) {
	return c.reset("Logout", PhaseGranted)
}

func (c *Controller) reset(op string, from Phase) (Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(op, from); err != nil {
		return c.phase, err
	}

	c.timer.reset()
	c.clearTransient()
	c.reason = ""
	c.command(op, PhaseLoginForm)

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.timeout)
		defer cancel()
		if err := c.svc.Logout(ctx); err != nil {
			c.log.Warn("logout failed", "op", op, "err", err)
		}
	}()
	return c.phase, nil
}

// Phase returns the active phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Subscribe registers o and immediately sends it the current snapshot. The
// returned function unsubscribes; it is safe to call more than once.
func (c *Controller) Subscribe(o Observer) (cancel func()) {
	sub := &subscription{observer: o}
	sub.active.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}

	c.subs = append(c.subs[:len(c.subs):len(c.subs)], sub)
	c.dispatch.push([]*subscription{sub}, c.snapshot())

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := make([]*subscription, 0, len(c.subs))
		for _, s := range c.subs {
			if s != sub {
				subs = append(subs, s)
			}
		}
		c.subs = subs
	}
}

// Close cancels outstanding service calls, stops the countdown and stops
// notifying observers. Further commands return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.timer.halt()
	c.clearTransient()
	c.cancel()
	c.dispatch.close()
}

// guard checks the controller is open and in the phase op requires.
func (c *Controller) guard(op string, want Phase) error {
	if c.closed {
		return ErrClosed
	}
	if c.phase != want {
		return invalidTransition(op, c.phase, "requires "+want.String())
	}
	return nil
}

// command enters the phase a command leads to and returns the sequence number
// its service response must carry.
func (c *Controller) command(op string, to Phase) uint64 {
	c.seq++
	c.message, c.fault = "", KindNone
	c.enter(op, to)
	return c.seq
}

func (c *Controller) call(from Phase, seq uint64, fn func(context.Context) (Outcome, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.timeout)
		defer cancel()

		out, err := fn(ctx)
		c.resolve(from, seq, out, err)
	}()
}

// resolve applies a service response issued from phase from.
func (c *Controller) resolve(from Phase, seq uint64, out Outcome, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase != from || c.seq != seq {
		c.log.Debug("discarding stale response",
			"issued_in", from.String(), "phase", c.phase.String(), "seq", seq, "current_seq", c.seq)
		return
	}

	switch {
	case err != nil:
		c.log.Debug("auth service call failed", "phase", from.String(), "err", err)
		c.message, c.fault = c.opts.messages.Connectivity, KindConnectivity
	case !out.OK:
		c.message, c.fault = out.Message, KindAuthRejected
	default:
		c.message, c.fault = out.Message, KindNone
	}
	ok := err == nil && out.OK

	switch from {
	case PhaseAuthenticating:
		c.username, c.password = "", ""
		if !ok {
			c.enter("login", PhaseLoginForm)
			return
		}
		c.timer.restart(c.opts.newTicker, c.tick)
		c.enter("login", PhaseAwaitingCode)

	case PhaseVerifying:
		if !ok {
			c.enter("verify", PhaseAwaitingCode)
			return
		}
		c.timer.reset()
		c.clearTransient()
		c.enter("verify", PhaseGranted)

	case PhaseResending:
		if ok {
			c.timer.restart(c.opts.newTicker, c.tick)
		}
		c.enter("resend", PhaseAwaitingCode)
	}
}

// tick is called by the countdown goroutine of run gen.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.timer.current(gen) {
		return
	}

	c.timer.remaining--
	if c.timer.remaining > 0 {
		c.publish()
		return
	}

	// Bumping seq turns any in-flight verify into a stale response.
	c.seq++
	c.timer.reset()
	c.clearTransient()
	c.reason = c.opts.messages.Expired
	c.message, c.fault = c.reason, KindExpired
	c.enter("expire", PhaseDenied)
}

func (c *Controller) enter(op string, to Phase) {
	c.log.Debug("transition", "op", op, "from", c.phase.String(), "to", to.String())
	c.phase = to
	c.publish()
}

func (c *Controller) clearTransient() {
	c.username, c.password, c.code = "", "", ""
}

func (c *Controller) publish() {
	c.dispatch.push(c.subs, c.snapshot())
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		Ceremony:  c.id,
		Phase:     c.phase,
		Remaining: c.timer.remaining,
		Running:   c.timer.running,
		Message:   c.message,
		Reason:    c.reason,
		Fault:     c.fault,
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
