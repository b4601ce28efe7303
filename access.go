package looper

import (
	"reflect"
	"sort"
)

// AccessMode describes the level of access a system declares for one resource.
type AccessMode int

const (
	// AccessNone declares no access to a resource.
	AccessNone AccessMode = iota
	// AccessShared declares read-only access. Any number of systems may
	// hold shared access to the same resource concurrently.
	AccessShared
	// AccessExclusive declares read-write access. Exclusive access conflicts
	// with any other access to the same resource.
	AccessExclusive
)

// String returns a human-readable name for the access mode.
func (m AccessMode) String() string {
	switch m {
	case AccessShared:
		return "shared"
	case AccessExclusive:
		return "exclusive"
	default:
		return "none"
	}
}

// ConflictsWith reports whether two access modes on the same resource conflict.
// Two modes conflict unless at least one is AccessNone, or both are AccessShared.
func (m AccessMode) ConflictsWith(other AccessMode) bool {
	if m == AccessNone || other == AccessNone {
		return false
	}
	return m == AccessExclusive || other == AccessExclusive
}

// TypeOf returns the reflect.Type identity used to key resources in Storage.
// Resources are identified by their value type, never by pointer type.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// AccessSet is an ordered mapping from resource type to AccessMode for one
// system. It is assembled once, before the system is registered, and must not
// change afterward: the scheduler's conflict detection relies on it describing
// every resource the system touches.
type AccessSet struct {
	entries []accessEntry
}

type accessEntry struct {
	rtype reflect.Type
	mode  AccessMode
}

// NewAccessSet returns an empty access set.
func NewAccessSet() *AccessSet {
	return &AccessSet{}
}

// Reads declares shared (read-only) access to the given resource types.
func (s *AccessSet) Reads(types ...reflect.Type) *AccessSet {
	for _, t := range types {
		s.declare(t, AccessShared)
	}
	return s
}

// Writes declares exclusive (read-write) access to the given resource types.
func (s *AccessSet) Writes(types ...reflect.Type) *AccessSet {
	for _, t := range types {
		s.declare(t, AccessExclusive)
	}
	return s
}

// declare records the strongest mode requested for a type. Declaring a type
// twice keeps the stronger of the two modes.
func (s *AccessSet) declare(t reflect.Type, mode AccessMode) {
	for i := range s.entries {
		if s.entries[i].rtype == t {
			if mode > s.entries[i].mode {
				s.entries[i].mode = mode
			}
			return
		}
	}
	s.entries = append(s.entries, accessEntry{rtype: t, mode: mode})
}

// Mode returns the declared access mode for a resource type.
func (s *AccessSet) Mode(t reflect.Type) AccessMode {
	for _, e := range s.entries {
		if e.rtype == t {
			return e.mode
		}
	}
	return AccessNone
}

// Types returns the declared resource types in lock-acquisition order:
// sorted by type name so that every system acquires overlapping resources
// in the same order.
func (s *AccessSet) Types() []reflect.Type {
	out := make([]reflect.Type, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.rtype
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Len returns the number of declared resources.
func (s *AccessSet) Len() int {
	return len(s.entries)
}

// ConflictsWith reports whether any resource type declared in both sets has
// conflicting modes, and returns the first such type.
func (s *AccessSet) ConflictsWith(other *AccessSet) (reflect.Type, bool) {
	if s == nil || other == nil {
		return nil, false
	}
	for _, e := range s.entries {
		if e.mode.ConflictsWith(other.Mode(e.rtype)) {
			return e.rtype, true
		}
	}
	return nil, false
}
