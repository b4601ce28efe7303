package looper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batteryLevel struct{ Percent int }
type motorCommand struct{ Torque float64 }

func TestViewEnforcesDeclaredAccess(t *testing.T) {
	storage := NewStorage()
	require.NoError(t, AddResource(storage, batteryLevel{Percent: 80}))
	require.NoError(t, AddResource(storage, motorCommand{}))

	access := NewAccessSet().Reads(TypeOf[batteryLevel]())
	view, err := acquireView(storage, "monitor", access)
	require.NoError(t, err)
	defer view.release()

	battery, err := Read[batteryLevel](view)
	require.NoError(t, err)
	assert.Equal(t, 80, battery.Percent)

	// Undeclared resource, even though it exists in storage.
	_, err = Read[motorCommand](view)
	assert.ErrorIs(t, err, ErrUndeclaredAccess)

	// Shared declaration does not grant exclusive access.
	_, err = Write[batteryLevel](view)
	assert.ErrorIs(t, err, ErrReadOnlyAccess)
}

func TestViewWriteMutatesStorage(t *testing.T) {
	storage := NewStorage()
	require.NoError(t, AddResource(storage, motorCommand{}))

	access := NewAccessSet().Writes(TypeOf[motorCommand]())
	view, err := acquireView(storage, "drive", access)
	require.NoError(t, err)

	cmd, err := Write[motorCommand](view)
	require.NoError(t, err)
	cmd.Torque = 1.5
	view.release()

	var torque float64
	require.NoError(t, ReadResource(storage, func(m *motorCommand) { torque = m.Torque }))
	assert.Equal(t, 1.5, torque)
}

func TestViewMissingDeclaredResource(t *testing.T) {
	storage := NewStorage()

	access := NewAccessSet().Reads(TypeOf[batteryLevel]())
	_, err := acquireView(storage, "monitor", access)
	require.ErrorIs(t, err, ErrMissingResource)
	assert.Contains(t, err.Error(), "monitor", "error names the system")
}

func TestViewLocksReleasedAfterInvocation(t *testing.T) {
	storage := NewStorage()
	require.NoError(t, AddResource(storage, motorCommand{}))

	access := NewAccessSet().Writes(TypeOf[motorCommand]())
	view, err := acquireView(storage, "drive", access)
	require.NoError(t, err)
	view.release()

	// A released exclusive borrow must not block subsequent access.
	done := make(chan struct{})
	go func() {
		_ = UpdateResource(storage, func(*motorCommand) {})
		close(done)
	}()
	<-done
}

func TestExclusiveWriteVisibleToLaterReader(t *testing.T) {
	storage := NewStorage()
	require.NoError(t, AddResource(storage, batteryLevel{Percent: 100}))

	writer := NewSystem("drain", NewAccessSet().Writes(TypeOf[batteryLevel]()), func(v *View) error {
		b, err := Write[batteryLevel](v)
		if err != nil {
			return err
		}
		b.Percent -= 10
		return nil
	})

	var observed int
	reader := NewSystem("observe", NewAccessSet().Reads(TypeOf[batteryLevel]()), func(v *View) error {
		b, err := Read[batteryLevel](v)
		if err != nil {
			return err
		}
		observed = b.Percent
		return nil
	})

	sched, err := buildSchedule([]*systemRegistration{
		{sys: writer},
		{sys: reader, after: []string{"drain"}},
	}, &testLogger{t: t}, false)
	require.NoError(t, err)

	require.NoError(t, sched.executeCycle(storage))
	assert.Equal(t, 90, observed, "later system sees earlier system's write in the same cycle")
}
