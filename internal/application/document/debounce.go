package document

import (
	"sync"
	"time"
)

// DefaultAutosaveDelay is the debounce window for draft writes
const DefaultAutosaveDelay = 1500 * time.Millisecond

// Timer is a scheduled callback that can be stopped
type Timer interface {
	Stop() bool
}

// Scheduler schedules callbacks after a delay.
// Tests inject a virtual implementation to advance time deterministically.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the wall clock
type RealScheduler struct{}

// AfterFunc implements Scheduler
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer runs only the last function triggered within the delay window.
// Every Trigger re-arms the timer.
type Debouncer struct {
	scheduler Scheduler
	delay     time.Duration

	mu      sync.Mutex
	timer   Timer
	pending func()
	seq     uint64
}

// NewDebouncer creates a new Debouncer
func NewDebouncer(scheduler Scheduler, delay time.Duration) *Debouncer {
	if scheduler == nil {
		scheduler = RealScheduler{}
	}
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Debouncer{
		scheduler: scheduler,
		delay:     delay,
	}
}

// Trigger replaces the pending function and re-arms the timer
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = fn
	d.timer = d.scheduler.AfterFunc(d.delay, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// a stale timer that raced with Stop must not run the newer function
	if seq != d.seq || d.pending == nil {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}

// Cancel disarms the timer and drops the pending function.
// It reports whether a function was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	had := d.pending != nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	d.timer = nil
	d.pending = nil
	return had
}

// Pending reports whether a function is waiting for the timer
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
