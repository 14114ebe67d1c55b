package authflow

import (
	"log/slog"
	"time"
)

const (
	// DefaultWindow is how long a delivered code may be submitted.
	DefaultWindow = 120 * time.Second

	// DefaultTickInterval is one countdown step.
	DefaultTickInterval = time.Second

	// DefaultRequestTimeout bounds a single AuthService call.
	DefaultRequestTimeout = 15 * time.Second
)

// Messages holds the texts the controller synthesizes itself.
type Messages struct {
	Connectivity string // shown for any transport failure
	Expired      string // denial reason when the window runs out
}

// DefaultMessages returns the built-in texts.
func DefaultMessages() Messages {
	return Messages{
		Connectivity: "connection failed",
		Expired:      "verification window expired",
	}
}

type options struct {
	window    time.Duration
	interval  time.Duration
	timeout   time.Duration
	newTicker TickerFunc
	logger    *slog.Logger
	messages  Messages
}

// Option configures a Controller.
type Option func(*options)

// WithWindow sets the verification window. It is counted in whole tick
// intervals and is never shorter than one.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithTickInterval sets the length of one countdown step.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithRequestTimeout bounds each AuthService call. A call that runs out of
// time is treated as a transport failure.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTicker replaces the ticker used for the countdown.
func WithTicker(fn TickerFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.newTicker = fn
		}
	}
}

// WithLogger sets the logger. Transitions are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMessages overrides the synthesized texts. Empty fields keep the
// defaults.
func WithMessages(m Messages) Option {
	return func(o *options) {
		if m.Connectivity != "" {
			o.messages.Connectivity = m.Connectivity
		}
		if m.Expired != "" {
			o.messages.Expired = m.Expired
		}
	}
}

func defaultOptions() options {
	return options{
		window:    DefaultWindow,
		interval:  DefaultTickInterval,
		timeout:   DefaultRequestTimeout,
		newTicker: NewTicker,
		logger:    slog.Default(),
		messages:  DefaultMessages(),
	}
}
