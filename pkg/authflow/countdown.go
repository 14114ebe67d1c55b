package authflow

import "time"

// Ticker delivers one tick per elapsed unit of the verification window.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTicker is the default TickerFunc, backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// countdown is the verification window. It is only touched with the
// controller mutex held. Every run gets a new generation so that ticks
// delivered by a stopped run can be told apart and ignored.
type countdown struct {
	interval  time.Duration
	total     int
	remaining int
	running   bool
	gen       uint64

	ticker Ticker
	done   chan struct{}
}

// run starts ticking from the current remaining value.
func (cd *countdown) run(newTicker TickerFunc, onTick func(gen uint64)) {
	cd.halt()

	cd.gen++
	cd.running = true

	gen := cd.gen
	t := newTicker(cd.interval)
	done := make(chan struct{})
	cd.ticker, cd.done = t, done

	go func() {
		for {
			select {
			case <-done:
				return
			case <-t.C():
				onTick(gen)
			}
		}
	}()
}

// restart refills the window and starts ticking.
func (cd *countdown) restart(newTicker TickerFunc, onTick func(gen uint64)) {
	cd.remaining = cd.total
	cd.run(newTicker, onTick)
}

// halt stops ticking and keeps the remaining value.
func (cd *countdown) halt() {
	if cd.ticker != nil {
		cd.ticker.Stop()
		close(cd.done)
		cd.ticker, cd.done = nil, nil
	}
	cd.running = false
}

// reset stops ticking and empties the window.
func (cd *countdown) reset() {
	cd.halt()
	cd.remaining = 0
}

func (cd *countdown) current(gen uint64) bool {
	return cd.running && gen == cd.gen
}
