package looper

import (
	"fmt"
	"time"
)

// Option represents a functional option for configuring the builder.
type Option func(*Builder) error

// Builder assembles an application: resources, startup systems, scheduled
// systems with explicit ordering, and modules. Build consumes the builder,
// runs the startup systems once, freezes the schedule, and returns the
// application. A builder is single-use.
type Builder struct {
	logger    Logger
	cfg       Config
	storage   *Storage
	startup   []startupRegistration
	systems   []*systemRegistration
	names     map[string]bool
	observers []ObserverFunc
	built     bool

	// err holds the first registration failure; Build reports it.
	err error
}

type startupRegistration struct {
	name string
	fn   StartupFunc
}

// NewBuilder creates a builder with the provided options applied.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		cfg:     DefaultConfig(),
		storage: NewStorage(),
		names:   make(map[string]bool),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.fail(err)
		}
	}
	return b
}

// WithLogger sets the logger for the application.
func WithLogger(logger Logger) Option {
	return func(b *Builder) error {
		b.logger = logger
		return nil
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(b *Builder) error {
		b.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from a YAML or TOML file, with
// LOOPER_* environment overrides applied on top.
func WithConfigFile(path string) Option {
	return func(b *Builder) error {
		cfg, err := LoadConfigFile(path)
		if err != nil {
			return err
		}
		b.cfg = cfg
		return nil
	}
}

// WithCycleInterval sets the control loop cadence.
func WithCycleInterval(interval time.Duration) Option {
	return func(b *Builder) error {
		if interval > 0 {
			b.cfg.CycleInterval = Duration(interval)
		}
		return nil
	}
}

// WithStrictConflicts makes unordered-access conflicts fatal at build time
// instead of warnings.
func WithStrictConflicts() Option {
	return func(b *Builder) error {
		b.cfg.StrictConflicts = true
		return nil
	}
}

// WithObserver registers observer functions for lifecycle events.
func WithObserver(observers ...ObserverFunc) Option {
	return func(b *Builder) error {
		b.observers = append(b.observers, observers...)
		return nil
	}
}

// fail records the first registration error; later calls keep it.
func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Storage exposes the application storage during composition, so modules
// can inspect what is already registered.
func (b *Builder) Storage() *Storage {
	return b.storage
}

// Config returns the builder's current configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Logger returns the configured logger, or nil if none was set.
func (b *Builder) Logger() Logger {
	return b.logger
}

// AddResource registers a resource instance in storage. Registering a second
// resource of an already-present type is a build error.
func (b *Builder) AddResource(value any) *Builder {
	if err := b.storage.Add(value); err != nil {
		b.fail(err)
	}
	return b
}

// AddStartupSystem registers a system executed once, before the schedule is
// frozen, with unrestricted write access to storage. Startup systems run in
// registration order.
func (b *Builder) AddStartupSystem(name string, fn StartupFunc) *Builder {
	if fn == nil {
		b.fail(fmt.Errorf("%w: startup system %q", ErrNilSystem, name))
		return b
	}
	b.startup = append(b.startup, startupRegistration{name: name, fn: fn})
	return b
}

// AddSystem registers a system for per-cycle execution and returns a handle
// for chaining explicit ordering constraints:
//
//	b.AddSystem(second).After("first").Before("third")
func (b *Builder) AddSystem(sys System) *SystemRegistration {
	reg := &systemRegistration{sys: sys}
	handle := &SystemRegistration{builder: b, reg: reg}

	if sys == nil {
		b.fail(ErrNilSystem)
		return handle
	}
	if b.names[sys.Name()] {
		b.fail(fmt.Errorf("%w: %q", ErrDuplicateSystem, sys.Name()))
		return handle
	}
	b.names[sys.Name()] = true
	b.systems = append(b.systems, reg)
	return handle
}

// AddModule installs a module immediately. Modules may add resources,
// systems, and further modules; they have no identity after Build.
func (b *Builder) AddModule(m Module) *Builder {
	if err := m.Install(b); err != nil {
		b.fail(fmt.Errorf("installing module: %w", err))
	}
	return b
}

// SystemRegistration is the chaining handle returned by AddSystem.
type SystemRegistration struct {
	builder *Builder
	reg     *systemRegistration
}

// Before constrains the registered system to run before the named systems.
func (r *SystemRegistration) Before(names ...string) *SystemRegistration {
	r.reg.before = append(r.reg.before, names...)
	return r
}

// After constrains the registered system to run after the named systems.
func (r *SystemRegistration) After(names ...string) *SystemRegistration {
	r.reg.after = append(r.reg.after, names...)
	return r
}

// Build runs the startup systems, freezes the schedule, and returns the
// application. Any build-time error (duplicate resource, unknown ordering
// reference, ordering cycle, strict conflict) aborts the build entirely;
// there is no partially valid schedule.
func (b *Builder) Build() (*Application, error) {
	if b.built {
		return nil, ErrBuildAfterFreeze
	}
	b.built = true

	if b.logger == nil {
		return nil, ErrLoggerNotSet
	}
	if b.err != nil {
		return nil, b.err
	}

	// Cycle statistics live in storage like any other resource, so systems
	// and out-of-loop collaborators can observe them under the slot lock.
	if err := AddResource(b.storage, CycleStats{}); err != nil {
		return nil, err
	}

	for _, startup := range b.startup {
		b.logger.Debug("Running startup system", "system", startup.name)
		if err := startup.fn(b.storage); err != nil {
			return nil, fmt.Errorf("startup system %q: %w", startup.name, err)
		}
	}

	schedule, err := buildSchedule(b.systems, b.logger, b.cfg.StrictConflicts)
	if err != nil {
		return nil, err
	}

	// The run loop ticks on this interval; a non-positive value would make
	// the ticker unusable.
	interval := time.Duration(b.cfg.CycleInterval)
	if interval <= 0 {
		b.logger.Warn("Non-positive cycle interval, using default",
			"configured", interval, "default", DefaultCycleInterval)
		interval = DefaultCycleInterval
	}

	app := &Application{
		storage:   b.storage,
		schedule:  schedule,
		logger:    b.logger,
		interval:  interval,
		observers: b.observers,
	}

	b.logger.Info("Application built",
		"systems", len(b.systems), "startupSystems", len(b.startup), "cycleInterval", app.interval)
	app.notify(NewLifecycleEvent(EventTypeApplicationBuilt, map[string]any{
		"systems":       len(b.systems),
		"cycleInterval": app.interval.String(),
	}))

	return app, nil
}
