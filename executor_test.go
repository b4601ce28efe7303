package looper

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakerCoalescesSignals(t *testing.T) {
	w := NewWaker()
	w.Wake()
	w.Wake()
	w.Wake()

	// One wait consumes the single slot; a second would block.
	w.wait()
	select {
	case <-w.signal:
		t.Fatal("waker buffered more than one signal")
	default:
	}
}

func TestCooperativeSystemWakesAndCompletes(t *testing.T) {
	storage := NewStorage()

	polls := 0
	sys := NewCooperativeSystem("waiter", nil, func(view *View, w *Waker) (Status, error) {
		polls++
		if polls < 3 {
			// Simulate an external event arriving shortly after suspension.
			go func() {
				time.Sleep(5 * time.Millisecond)
				w.Wake()
			}()
			return Pending, nil
		}
		return Done, nil
	})

	sched, err := buildSchedule([]*systemRegistration{{sys: sys}}, &testLogger{t: t}, false)
	require.NoError(t, err)
	require.NoError(t, sched.executeCycle(storage))
	assert.Equal(t, 3, polls, "executor polls exactly once per wake")
}

func TestCooperativeSystemImmediateCompletion(t *testing.T) {
	storage := NewStorage()

	polls := 0
	sys := NewCooperativeSystem("instant", nil, func(view *View, w *Waker) (Status, error) {
		polls++
		return Done, nil
	})

	sched, err := buildSchedule([]*systemRegistration{{sys: sys}}, &testLogger{t: t}, false)
	require.NoError(t, err)
	require.NoError(t, sched.executeCycle(storage))
	assert.Equal(t, 1, polls, "a finished body is never re-polled")
}

func TestCooperativeSystemPropagatesError(t *testing.T) {
	storage := NewStorage()
	wantErr := errors.New("sensor disconnected")

	sys := NewCooperativeSystem("failing", nil, func(view *View, w *Waker) (Status, error) {
		return Pending, wantErr
	})

	sched, err := buildSchedule([]*systemRegistration{{sys: sys}}, &testLogger{t: t}, false)
	require.NoError(t, err)

	err = sched.executeCycle(storage)
	require.ErrorIs(t, err, wantErr)
	assert.ErrorIs(t, err, ErrSystemFailed)
}

func TestCooperativeSystemReleasesLocksWhileSuspended(t *testing.T) {
	type packetCount struct{ N int }

	storage := NewStorage()
	require.NoError(t, AddResource(storage, packetCount{}))

	observed := 0
	first := true
	sys := NewCooperativeSystem("receive",
		NewAccessSet().Writes(TypeOf[packetCount]()),
		func(view *View, w *Waker) (Status, error) {
			p, err := Write[packetCount](view)
			if err != nil {
				return Done, err
			}
			if first {
				first = false
				// The waking goroutine writes the same resource; it can
				// only proceed once the suspended view lets go of the lock.
				go func() {
					_ = UpdateResource(storage, func(p *packetCount) { p.N = 5 })
					w.Wake()
				}()
				return Pending, nil
			}
			observed = p.N
			return Done, nil
		})

	sched, err := buildSchedule([]*systemRegistration{{sys: sys}}, &testLogger{t: t}, false)
	require.NoError(t, err)
	require.NoError(t, sched.executeCycle(storage))
	assert.Equal(t, 5, observed, "writes made during suspension are visible on the next poll")
}

func TestCooperativeSystemBorrowsResources(t *testing.T) {
	type frame struct{ Sequence int }

	storage := NewStorage()
	require.NoError(t, AddResource(storage, frame{}))

	sys := NewCooperativeSystem("stamp",
		NewAccessSet().Writes(TypeOf[frame]()),
		func(view *View, w *Waker) (Status, error) {
			f, err := Write[frame](view)
			if err != nil {
				return Done, err
			}
			f.Sequence++
			return Done, nil
		})

	sched, err := buildSchedule([]*systemRegistration{{sys: sys}}, &testLogger{t: t}, false)
	require.NoError(t, err)
	require.NoError(t, sched.executeCycle(storage))

	var seq int
	require.NoError(t, ReadResource(storage, func(f *frame) { seq = f.Sequence }))
	assert.Equal(t, 1, seq)
}
