package looper

// Status is the result of polling a cooperative system body.
type Status int

const (
	// Pending signals the body is waiting on an external event and will
	// call Wake on its Waker when progress becomes possible.
	Pending Status = iota
	// Done signals the body finished its work for this cycle.
	Done
)

// Waker is the single-slot wake signal a suspended system body uses to tell
// the executor that progress is possible again. Wake never blocks and
// coalesces repeated signals; the executor consumes at most one per poll.
type Waker struct {
	signal chan struct{}
}

// NewWaker returns a waker with an empty signal slot.
func NewWaker() *Waker {
	return &Waker{signal: make(chan struct{}, 1)}
}

// Wake marks the waker signalled. Safe to call from any goroutine.
func (w *Waker) Wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// wait blocks the calling goroutine until the waker is signalled.
func (w *Waker) wait() {
	<-w.signal
}

// PollFunc is the body of a cooperative system: a suspendable computation
// polled once at a time. When it returns Pending it must arrange for
// w.Wake() to be called once the event it is waiting on occurs.
type PollFunc func(view *View, w *Waker) (Status, error)

type cooperativeSystem struct {
	name   string
	access *AccessSet
	poll   PollFunc
}

// NewCooperativeSystem creates a system whose body may suspend mid-invocation.
// The executor drives it with the poll protocol instead of a single call.
func NewCooperativeSystem(name string, access *AccessSet, poll PollFunc) System {
	if access == nil {
		access = NewAccessSet()
	}
	return &cooperativeSystem{name: name, access: access, poll: poll}
}

func (s *cooperativeSystem) Name() string       { return s.name }
func (s *cooperativeSystem) Access() *AccessSet { return s.access }

// Run drives the body to completion through the executor poll loop. The
// view's slot locks are released while the body is suspended and re-acquired
// before each poll, so a waking goroutine may update the same resources
// through storage without deadlocking.
func (s *cooperativeSystem) Run(view *View) error {
	return drivePoll(view, s.poll)
}

// pollState tracks the executor's progress through one cooperative invocation.
type pollState int

const (
	stateIdle pollState = iota
	statePolling
	stateDone
)

// drivePoll is the minimal cooperative executor: poll the computation once;
// if it is not finished, block on the wake signal and poll again. There is
// exactly one outstanding poll at a time and the wait between polls is a true
// blocking wait, never a spin. The view's slot locks are dropped for the
// duration of each wait and re-taken before the next poll; borrowed pointers
// stay valid across the wait, but the body must re-read any state another
// goroutine may have changed. This is a single-consumer primitive, not a
// multi-tasking scheduler: within one cycle, systems run strictly one at a
// time in schedule order.
func drivePoll(view *View, poll PollFunc) error {
	waker := NewWaker()
	state := stateIdle

	for state != stateDone {
		state = statePolling
		status, err := poll(view, waker)
		if err != nil {
			return err
		}
		switch status {
		case Done:
			state = stateDone
		default:
			view.release()
			waker.wait()
			if err := view.acquire(); err != nil {
				return err
			}
			state = stateIdle
		}
	}
	return nil
}
