package tasks

import (
	"github.com/GoCodeAlone/looper"
)

// Module installs the async and compute dispatchers into application
// storage, sized from the application config unless overridden here.
// Systems reach them by declaring shared access:
//
//	looper.NewAccessSet().
//		Reads(looper.TypeOf[tasks.AsyncDispatcher]()).
//		Writes(looper.TypeOf[tasks.Task[FetchResult]]())
type Module struct {
	// AsyncWorkers overrides the async pool size when > 0.
	AsyncWorkers int
	// ComputeWorkers overrides the compute pool size when > 0.
	ComputeWorkers int
}

// Install implements looper.Module. The dispatchers are created by a startup
// system so they land in storage alongside the resources of other modules.
func (m Module) Install(b *looper.Builder) error {
	asyncWorkers := b.Config().AsyncWorkers
	if m.AsyncWorkers > 0 {
		asyncWorkers = m.AsyncWorkers
	}
	computeWorkers := b.Config().ComputeWorkers
	if m.ComputeWorkers > 0 {
		computeWorkers = m.ComputeWorkers
	}
	logger := b.Logger()

	b.AddStartupSystem("initialize-dispatchers", func(storage *looper.Storage) error {
		async := NewAsyncDispatcher(WithWorkers(asyncWorkers), WithLogger(logger))
		compute := NewComputeDispatcher(async, WithWorkers(computeWorkers), WithLogger(logger))

		if err := looper.AddResource(storage, async); err != nil {
			return err
		}
		return looper.AddResource(storage, compute)
	})
	return nil
}

// AddTask registers an idle Task resource for result type T. Convenience for
// modules that pair a dispatching system with a polling system.
func AddTask[T any](b *looper.Builder) *looper.Builder {
	return b.AddResource(&Task[T]{})
}
