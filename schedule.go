package looper

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// ConflictDiagnostic names a pair of systems that declare conflicting access
// to the same resource without an explicit ordering between them. Running
// such a pair in an unspecified relative order is a latent race: the frozen
// schedule happens to serialize them, but the metadata must stay sound so a
// future parallel executor can rely on it.
type ConflictDiagnostic struct {
	SystemA  string
	SystemB  string
	Resource reflect.Type
}

func (d ConflictDiagnostic) String() string {
	return fmt.Sprintf("systems %q and %q access %s without explicit ordering", d.SystemA, d.SystemB, d.Resource)
}

// SystemInfo describes one scheduled system, for diagnostics and the
// control surface.
type SystemInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// scheduledSystem is a system plus its frozen scheduling state. The enabled
// flag may be flipped from outside the run loop, so it is atomic.
type scheduledSystem struct {
	sys     System
	enabled atomic.Bool
}

// systemRegistration carries a system and its explicit ordering edges from
// the builder into schedule construction.
type systemRegistration struct {
	sys    System
	before []string
	after  []string
}

// Schedule is the frozen per-cycle execution order. Once built it never
// changes for the remainder of the process.
type Schedule struct {
	systems   []*scheduledSystem
	conflicts []ConflictDiagnostic
	logger    Logger
}

// buildSchedule orders the registered systems by their explicit edges,
// rejects cycles and dangling references, and surfaces access conflicts
// between transitively unordered systems. With strict set, a conflict is
// fatal; otherwise each one is logged as a warning.
func buildSchedule(regs []*systemRegistration, logger Logger, strict bool) (*Schedule, error) {
	index := make(map[string]*systemRegistration, len(regs))
	names := make([]string, 0, len(regs))
	for _, reg := range regs {
		index[reg.sys.Name()] = reg
		names = append(names, reg.sys.Name())
	}

	// preds[name] lists the systems that must run before name,
	// assembled from both edge directions.
	preds := make(map[string][]string, len(regs))
	for _, reg := range regs {
		name := reg.sys.Name()
		if preds[name] == nil {
			preds[name] = nil
		}
		for _, other := range reg.before {
			if _, ok := index[other]; !ok {
				return nil, fmt.Errorf("%w: %q declared before %q", ErrUnknownSystem, name, other)
			}
			preds[other] = append(preds[other], name)
		}
		for _, other := range reg.after {
			if _, ok := index[other]; !ok {
				return nil, fmt.Errorf("%w: %q declared after %q", ErrUnknownSystem, name, other)
			}
			preds[name] = append(preds[name], other)
		}
	}

	// Topological sort, depth-first, visiting in registration order so the
	// frozen order is deterministic across runs.
	var order []string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(string) error
	visit = func(node string) error {
		if onStack[node] {
			return fmt.Errorf("%w: involving system %q", ErrCyclicOrdering, node)
		}
		if visited[node] {
			return nil
		}
		onStack[node] = true
		for _, dep := range preds[node] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		onStack[node] = false
		visited[node] = true
		order = append(order, node)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	sched := &Schedule{logger: logger}
	for _, name := range order {
		ss := &scheduledSystem{sys: index[name].sys}
		ss.enabled.Store(true)
		sched.systems = append(sched.systems, ss)
	}

	sched.conflicts = detectConflicts(names, preds, index)
	for _, diag := range sched.conflicts {
		if strict {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedConflict, diag)
		}
		logger.Warn("Unordered systems declare conflicting access",
			"systemA", diag.SystemA, "systemB", diag.SystemB, "resource", diag.Resource.String())
	}

	logger.Debug("Schedule frozen", "order", order, "conflicts", len(sched.conflicts))
	return sched, nil
}

// detectConflicts checks every pair of systems left unordered by the
// transitive closure of the explicit edges for conflicting access sets.
func detectConflicts(names []string, preds map[string][]string, index map[string]*systemRegistration) []ConflictDiagnostic {
	// ancestors[name] is the set of systems transitively ordered before name.
	ancestors := make(map[string]map[string]bool, len(names))
	var collect func(string) map[string]bool
	collect = func(node string) map[string]bool {
		if anc, ok := ancestors[node]; ok {
			return anc
		}
		anc := make(map[string]bool)
		// Mark before recursing: on a cyclic graph this underreports
		// ancestry, but cycles are rejected before conflict detection runs.
		ancestors[node] = anc
		for _, dep := range preds[node] {
			anc[dep] = true
			for a := range collect(dep) {
				anc[a] = true
			}
		}
		return anc
	}
	for _, name := range names {
		collect(name)
	}

	var diags []ConflictDiagnostic
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			if ancestors[a][b] || ancestors[b][a] {
				continue
			}
			if res, conflict := index[a].sys.Access().ConflictsWith(index[b].sys.Access()); conflict {
				diags = append(diags, ConflictDiagnostic{SystemA: a, SystemB: b, Resource: res})
			}
		}
	}
	return diags
}

// executeCycle runs every enabled system once, in frozen order. Each system
// borrows its declared resources for the duration of its invocation; a
// system later in the order always sees writes made by an earlier one.
func (s *Schedule) executeCycle(storage *Storage) error {
	for _, ss := range s.systems {
		if !ss.enabled.Load() {
			continue
		}
		if err := s.runSystem(storage, ss.sys); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schedule) runSystem(storage *Storage, sys System) error {
	view, err := acquireView(storage, sys.Name(), sys.Access())
	if err != nil {
		return err
	}
	defer view.release()

	if err := sys.Run(view); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSystemFailed, sys.Name(), err)
	}
	return nil
}

// Systems lists the scheduled systems in frozen order.
func (s *Schedule) Systems() []SystemInfo {
	out := make([]SystemInfo, len(s.systems))
	for i, ss := range s.systems {
		out[i] = SystemInfo{Name: ss.sys.Name(), Enabled: ss.enabled.Load()}
	}
	return out
}

// setEnabled flips a system's enabled flag, reporting whether the name was
// found. Disabled systems are skipped by executeCycle but keep their place
// in the frozen order.
func (s *Schedule) setEnabled(name string, enabled bool) bool {
	for _, ss := range s.systems {
		if ss.sys.Name() == name {
			ss.enabled.Store(enabled)
			return true
		}
	}
	return false
}

// Conflicts returns the diagnostics raised while freezing the schedule.
func (s *Schedule) Conflicts() []ConflictDiagnostic {
	return s.conflicts
}
