package looper

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Storage is the single process-wide container of all resource instances.
// It maps resource type identity to a lock-guarded instance; at most one
// instance per distinct type may exist at a time.
//
// Storage is owned by the Application and passed explicitly into startup
// systems and module installation. It is never a package-level singleton, so
// multiple independent applications can coexist within one process.
type Storage struct {
	mu        sync.RWMutex
	resources map[reflect.Type]*resourceSlot
}

// resourceSlot guards one resource instance. The value is always a pointer to
// the resource, boxed as any, so borrows observe and mutate the single
// instance in place. The slot lock is acquired per system invocation and
// released when the invocation returns; it never outlives a single call.
type resourceSlot struct {
	mu    sync.RWMutex
	value any
}

// NewStorage returns an empty storage.
func NewStorage() *Storage {
	return &Storage{resources: make(map[reflect.Type]*resourceSlot)}
}

// Add registers a resource instance under the identity of its value type.
// Both T and *T arguments register under type T; passing a pointer shares
// the caller's instance, passing a value boxes a fresh copy.
// Fails with ErrDuplicateResource if that type already exists; the original
// instance is never overwritten.
func (s *Storage) Add(value any) error {
	if value == nil {
		return ErrNilResource
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr
	} else if rv.IsNil() {
		return ErrNilResource
	}

	t := rv.Type().Elem()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resources[t]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, t)
	}
	s.resources[t] = &resourceSlot{value: rv.Interface()}
	return nil
}

// get returns the slot holding the resource of the given type, if present.
// A missing resource is a configuration error for callers; the typed helpers
// surface it as ErrMissingResource.
func (s *Storage) get(t reflect.Type) (*resourceSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.resources[t]
	return slot, ok
}

// Has reports whether a resource of the given type is registered.
func (s *Storage) Has(t reflect.Type) bool {
	_, ok := s.get(t)
	return ok
}

// Remove deletes the resource of the given type. Used only during
// composition and testing.
func (s *Storage) Remove(t reflect.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, t)
}

// Types returns the registered resource types, for diagnostics.
func (s *Storage) Types() []reflect.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]reflect.Type, 0, len(s.resources))
	for t := range s.resources {
		out = append(out, t)
	}
	return out
}

// typeByName returns the registered resource type whose string form matches
// name, e.g. "motion.GaitParameters".
func (s *Storage) typeByName(name string) (reflect.Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for t := range s.resources {
		if t.String() == name {
			return t, true
		}
	}
	return nil, false
}

// MarshalResource returns the JSON encoding of the resource registered under
// the given type name, read under the slot lock. This is the inspection path
// for the control surface, which addresses resources by name rather than type.
func (s *Storage) MarshalResource(name string) ([]byte, error) {
	t, ok := s.typeByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingResource, name)
	}
	slot, _ := s.get(t)
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	return json.Marshal(slot.value)
}

// UnmarshalResource updates the named resource from its JSON encoding. The
// decode runs against a copy under the slot lock, so fields absent from the
// payload keep their current values and a failed decode leaves the resource
// untouched.
func (s *Storage) UnmarshalResource(name string, data []byte) error {
	t, ok := s.typeByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingResource, name)
	}
	slot, _ := s.get(t)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	fresh := reflect.New(t)
	fresh.Elem().Set(reflect.ValueOf(slot.value).Elem())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	reflect.ValueOf(slot.value).Elem().Set(fresh.Elem())
	return nil
}

// AddResource registers a typed resource instance in storage. It follows the
// same T or *T convention as Add.
func AddResource[T any](s *Storage, value T) error {
	return s.Add(value)
}

// ReadResource runs fn with shared access to the resource of type T.
// The slot lock is held only for the duration of fn. This is the access path
// for collaborators running outside the cycle schedule, such as file watchers
// or the control surface; systems use their View instead.
func ReadResource[T any](s *Storage, fn func(*T)) error {
	slot, ok := s.get(TypeOf[T]())
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingResource, TypeOf[T]())
	}
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	fn(slot.value.(*T))
	return nil
}

// UpdateResource runs fn with exclusive access to the resource of type T.
func UpdateResource[T any](s *Storage, fn func(*T)) error {
	slot, ok := s.get(TypeOf[T]())
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingResource, TypeOf[T]())
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	fn(slot.value.(*T))
	return nil
}
