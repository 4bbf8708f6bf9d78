package document

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_RunsOnlyTheLastFunction(t *testing.T) {
	sched := newManualScheduler()
	d := NewDebouncer(sched, 1500*time.Millisecond)

	var runs []int
	for i := 1; i <= 3; i++ {
		n := i
		d.Trigger(func() { runs = append(runs, n) })
		sched.Advance(time.Second)
	}
	assert.Empty(t, runs, "quiet period restarts with every trigger")

	sched.Advance(500 * time.Millisecond)
	assert.Equal(t, []int{3}, runs)
	assert.False(t, d.Pending())
}

func TestDebouncer_Cancel(t *testing.T) {
	sched := newManualScheduler()
	d := NewDebouncer(sched, time.Second)

	assert.False(t, d.Cancel(), "nothing pending yet")

	ran := false
	d.Trigger(func() { ran = true })
	assert.True(t, d.Pending())
	assert.True(t, d.Cancel())

	sched.Advance(5 * time.Second)
	assert.False(t, ran)
	assert.Equal(t, 0, sched.Armed())
}

func TestDebouncer_StaleTimerIsIgnored(t *testing.T) {
	sched := newManualScheduler()
	d := NewDebouncer(sched, time.Second)

	var first, second bool
	d.Trigger(func() { first = true })
	// simulate a timer that fired concurrently with Stop
	stale := sched.timers[0]
	d.Trigger(func() { second = true })
	stale.f()

	assert.False(t, first)
	assert.False(t, second, "stale firing must not run the newer function early")

	sched.Advance(time.Second)
	assert.True(t, second)
}

func TestDebouncer_DefaultDelay(t *testing.T) {
	d := NewDebouncer(nil, 0)
	assert.Equal(t, DefaultAutosaveDelay, d.delay)
	_, ok := d.scheduler.(RealScheduler)
	assert.True(t, ok)
}

func TestDebouncer_RealScheduler(t *testing.T) {
	d := NewDebouncer(RealScheduler{}, 10*time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
