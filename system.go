package looper

import (
	"fmt"
	"reflect"
)

// System is a named, schedulable unit of work. A system declares the
// resources it touches through its AccessSet and receives a View restricted
// to exactly those resources once per cycle.
//
// Systems are heterogeneous: the scheduler stores them behind this interface
// regardless of each system's concrete captured state.
type System interface {
	// Name returns the unique identifier for this system. The name is used
	// for explicit ordering references and diagnostics.
	Name() string

	// Access returns the system's declared resource access set. It must
	// return the same set for the lifetime of the system.
	Access() *AccessSet

	// Run executes the system for one cycle against the borrowed view.
	Run(view *View) error
}

// SystemFunc adapts a plain function into a System.
type SystemFunc func(view *View) error

type funcSystem struct {
	name   string
	access *AccessSet
	fn     SystemFunc
}

// NewSystem creates a system from a name, an access set, and a body.
func NewSystem(name string, access *AccessSet, fn SystemFunc) System {
	if access == nil {
		access = NewAccessSet()
	}
	return &funcSystem{name: name, access: access, fn: fn}
}

func (s *funcSystem) Name() string       { return s.name }
func (s *funcSystem) Access() *AccessSet { return s.access }
func (s *funcSystem) Run(view *View) error {
	return s.fn(view)
}

// StartupFunc is the body of a startup system. Startup systems run once,
// in registration order, before the schedule is frozen, and receive
// unrestricted access to storage so they may register further resources.
type StartupFunc func(storage *Storage) error

// View is the per-invocation borrow surface handed to a system body.
// It holds the slot locks for every resource in the system's access set;
// the locks are acquired when the invocation starts and released when it
// returns, never across cycles. Cooperative systems additionally release
// them while suspended between polls, so the locks never span a suspension
// point either.
type View struct {
	system  string
	storage *Storage
	access  *AccessSet
	borrows map[reflect.Type]viewBorrow
	order   []reflect.Type
}

type viewBorrow struct {
	slot *resourceSlot
	mode AccessMode
}

// acquireView builds a view over the access set with all slot locks held.
func acquireView(storage *Storage, system string, access *AccessSet) (*View, error) {
	v := &View{system: system, storage: storage, access: access}
	if err := v.acquire(); err != nil {
		return nil, err
	}
	return v, nil
}

// acquire locks every resource in the access set, in deterministic type-name
// order so overlapping systems always lock in the same sequence. A declared
// resource that was never registered is a configuration error.
func (v *View) acquire() error {
	v.borrows = make(map[reflect.Type]viewBorrow, v.access.Len())
	for _, t := range v.access.Types() {
		slot, ok := v.storage.get(t)
		if !ok {
			v.release()
			return fmt.Errorf("%w: %s required by system %q", ErrMissingResource, t, v.system)
		}
		mode := v.access.Mode(t)
		switch mode {
		case AccessExclusive:
			slot.mu.Lock()
		default:
			slot.mu.RLock()
		}
		v.borrows[t] = viewBorrow{slot: slot, mode: mode}
		v.order = append(v.order, t)
	}
	return nil
}

// release unlocks every held slot in reverse acquisition order.
func (v *View) release() {
	for i := len(v.order) - 1; i >= 0; i-- {
		b := v.borrows[v.order[i]]
		if b.mode == AccessExclusive {
			b.slot.mu.Unlock()
		} else {
			b.slot.mu.RUnlock()
		}
	}
	v.order = nil
	v.borrows = nil
}

// Read returns a read-only borrow of the resource of type T. The system must
// have declared at least shared access to T.
func Read[T any](v *View) (*T, error) {
	b, ok := v.borrows[TypeOf[T]()]
	if !ok {
		return nil, fmt.Errorf("%w: system %q reading %s", ErrUndeclaredAccess, v.system, TypeOf[T]())
	}
	return b.slot.value.(*T), nil
}

// Write returns a mutable borrow of the resource of type T. The system must
// have declared exclusive access to T.
func Write[T any](v *View) (*T, error) {
	b, ok := v.borrows[TypeOf[T]()]
	if !ok {
		return nil, fmt.Errorf("%w: system %q writing %s", ErrUndeclaredAccess, v.system, TypeOf[T]())
	}
	if b.mode != AccessExclusive {
		return nil, fmt.Errorf("%w: system %q writing %s", ErrReadOnlyAccess, v.system, TypeOf[T]())
	}
	return b.slot.value.(*T), nil
}
