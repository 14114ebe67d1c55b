package authflow

import (
	"sync"
	"sync/atomic"
)

// Snapshot is what an observer gets on every change.
type Snapshot struct {
	Ceremony  string
	Phase     Phase
	Remaining int  // countdown steps left, seconds by default
	Running   bool // the window is counting down
	Message   string
	Reason    string // denial reason, only set in PhaseDenied
	Fault     Kind   // last recovered failure, KindNone after a clean step
}

// Observer renders ceremony state. It is called from a single goroutine, in
// transition order, and may call back into the controller.
type Observer interface {
	Observe(Snapshot)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Snapshot)

// Observe calls f(s).
func (f ObserverFunc) Observe(s Snapshot) { f(s) }

type subscription struct {
	observer Observer
	active   atomic.Bool
}

type delivery struct {
	targets []*subscription
	snap    Snapshot
}

// dispatcher hands snapshots to observers outside the controller mutex while
// keeping the order in which transitions were applied.
type dispatcher struct {
	mu    sync.Mutex
	queue []delivery

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(targets []*subscription, snap Snapshot) {
	if len(targets) == 0 {
		return
	}

	d.mu.Lock()
	d.queue = append(d.queue, delivery{targets: targets, snap: snap})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			next := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()

			for _, sub := range next.targets {
				if sub.active.Load() {
					sub.observer.Observe(next.snap)
				}
			}
		}
	}
}

func (d *dispatcher) close() {
	d.once.Do(func() { close(d.done) })
}
