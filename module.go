// Package looper is the scheduling and concurrency core of a robotics
// control framework. It drives a fixed-cadence control loop: independently
// authored systems declare which shared resources they read or write, the
// scheduler freezes one valid execution order from explicit constraints, and
// the run loop executes that order once per cycle, forever.
//
// Basic usage:
//
//	b := looper.NewBuilder(looper.WithLogger(logger))
//	b.AddResource(Counter{})
//	b.AddSystem(looper.NewSystem("increment",
//		looper.NewAccessSet().Writes(looper.TypeOf[Counter]()),
//		incrementBody))
//	app, err := b.Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package looper

// Module is a build-time composition unit: a cohesive set of resources,
// systems, and ordering constraints packaged for reuse. A module installs
// itself into the builder and has no identity once the application starts
// running. Modules may install other modules, forming a static composition
// tree that is fully resolved before the run loop starts.
type Module interface {
	// Install adds the module's resources, systems, and ordering
	// constraints to the builder. Returning an error aborts the build.
	Install(b *Builder) error
}

// ModuleFunc adapts a plain function into a Module.
type ModuleFunc func(b *Builder) error

// Install implements Module.
func (f ModuleFunc) Install(b *Builder) error {
	return f(b)
}
