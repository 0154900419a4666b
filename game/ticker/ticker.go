// Package ticker drives a simulation step function at a fixed rate, the way
// a browser drives animation frames.
package ticker

import (
	"sync"
	"time"
)

// DefaultRate is the tick rate used when none is configured.
const DefaultRate = 60

// Ticker calls a step function on its own goroutine until stopped.
type Ticker struct {
	interval time.Duration
	step     func()

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// New creates a stopped ticker calling step rate times per second. A
// non-positive rate falls back to DefaultRate.
func New(rate int, step func()) *Ticker {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Ticker{
		interval: time.Second / time.Duration(rate),
		step:     step,
	}
}

// Interval returns the time between steps.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Start launches the loop. Starting a running ticker does nothing.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.running = true
	go t.loop(t.stop, t.done)
}

// Stop halts the loop and waits for it to exit. Stopping a stopped ticker
// does nothing. Stop must not be called from the step function.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	stop, done := t.stop, t.done
	t.running = false
	t.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the loop is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Ticker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			t.step()
		}
	}
}
