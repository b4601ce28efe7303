package looper

import (
	"context"
	"fmt"
	"time"
)

// CycleStats tracks run-loop progress. It is registered in storage at build
// time, so systems may declare access to it and out-of-loop collaborators
// (telemetry, the control surface) can read it under the slot lock.
type CycleStats struct {
	Cycles    uint64        `json:"cycles"`
	LastCycle time.Duration `json:"lastCycle"`
	MaxCycle  time.Duration `json:"maxCycle"`
}

// cycleEventSampling controls how often a cycle.completed lifecycle event is
// emitted: one per this many cycles. At 80Hz this is roughly every 25s.
const cycleEventSampling = 2000

// Application is the frozen, runnable composition produced by Build: a
// storage of resources plus an ordered system schedule executed once per
// cycle. The schedule and storage contents are entirely in-memory and are
// rebuilt from scratch on every process start.
type Application struct {
	storage   *Storage
	schedule  *Schedule
	logger    Logger
	interval  time.Duration
	observers []ObserverFunc
	cycles    uint64
}

// Storage returns the application's resource storage. Intended for
// out-of-loop collaborators; systems use their View.
func (app *Application) Storage() *Storage {
	return app.storage
}

// Logger returns the application logger.
func (app *Application) Logger() Logger {
	return app.logger
}

// CycleInterval returns the configured control loop cadence.
func (app *Application) CycleInterval() time.Duration {
	return app.interval
}

// Systems lists the scheduled systems in frozen execution order.
func (app *Application) Systems() []SystemInfo {
	return app.schedule.Systems()
}

// Conflicts returns the access-conflict diagnostics raised at build time.
func (app *Application) Conflicts() []ConflictDiagnostic {
	return app.schedule.Conflicts()
}

// SetSystemEnabled enables or disables a system by name. Disabled systems
// are skipped each cycle but keep their place in the frozen order.
func (app *Application) SetSystemEnabled(name string, enabled bool) error {
	if !app.schedule.setEnabled(name, enabled) {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
	app.logger.Info("System toggled", "system", name, "enabled", enabled)
	return nil
}

// Resources lists the registered resource type names.
func (app *Application) Resources() []string {
	types := app.storage.Types()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

// ResourceValue returns the JSON encoding of the named resource.
func (app *Application) ResourceValue(name string) ([]byte, error) {
	return app.storage.MarshalResource(name)
}

// SetResourceValue updates the named resource from its JSON encoding. Fields
// absent from the payload keep their current values.
func (app *Application) SetResourceValue(name string, data []byte) error {
	if err := app.storage.UnmarshalResource(name, data); err != nil {
		return err
	}
	app.logger.Info("Resource updated", "resource", name)
	return nil
}

// Stats returns a snapshot of the cycle statistics.
func (app *Application) Stats() CycleStats {
	var stats CycleStats
	_ = ReadResource(app.storage, func(s *CycleStats) {
		stats = *s
	})
	return stats
}

// Step executes exactly one cycle: every enabled system once, in frozen
// order. Any system error is fatal to the caller; an inconsistent control
// cycle is worse than a clean shutdown.
func (app *Application) Step() error {
	started := time.Now()
	if err := app.schedule.executeCycle(app.storage); err != nil {
		app.logger.Error("Cycle aborted", "cycle", app.cycles, "error", err)
		app.notify(NewLifecycleEvent(EventTypeSystemFailed, map[string]any{
			"cycle": app.cycles,
			"error": err.Error(),
		}))
		return err
	}

	elapsed := time.Since(started)
	app.cycles++
	_ = UpdateResource(app.storage, func(s *CycleStats) {
		s.Cycles = app.cycles
		s.LastCycle = elapsed
		if elapsed > s.MaxCycle {
			s.MaxCycle = elapsed
		}
	})

	if elapsed > app.interval {
		app.logger.Warn("Cycle overran its interval", "cycle", app.cycles, "elapsed", elapsed, "interval", app.interval)
	}
	if app.cycles%cycleEventSampling == 0 {
		app.notify(NewLifecycleEvent(EventTypeCycleCompleted, app.Stats()))
	}
	return nil
}

// Run executes the frozen schedule once per cycle at the configured cadence
// until the context is cancelled or a system fails. Context cancellation is
// the clean shutdown path and returns nil.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("Run loop starting", "cycleInterval", app.interval)
	ticker := time.NewTicker(app.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.logger.Info("Run loop stopped", "cycles", app.cycles)
			app.notify(NewLifecycleEvent(EventTypeRunStopped, map[string]any{"cycles": app.cycles}))
			return nil
		case <-ticker.C:
			if err := app.Step(); err != nil {
				return err
			}
		}
	}
}

// RunCycles executes a bounded number of cycles at the configured cadence.
// Intended for tests and tooling.
func (app *Application) RunCycles(n int) error {
	ticker := time.NewTicker(app.interval)
	defer ticker.Stop()

	for i := 0; i < n; i++ {
		<-ticker.C
		if err := app.Step(); err != nil {
			return err
		}
	}
	return nil
}

// notify fans a lifecycle event out to all observers. Observer failures are
// logged and never abort the loop.
func (app *Application) notify(event CloudEvent) {
	for _, observer := range app.observers {
		if err := observer(context.Background(), event); err != nil {
			app.logger.Warn("Observer failed", "eventType", event.Type(), "error", err)
		}
	}
}
