package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoCodeAlone/looper"
)

// workerPool is a fixed set of worker goroutines fed from one job channel.
// Both dispatchers are built on it; the pool never grows or shrinks.
type workerPool struct {
	jobs   chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newWorkerPool(workers, queueSize int) *workerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &workerPool{
		jobs:   make(chan func(), queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job()
		}
	}
}

// submit hands a job to the pool, blocking while the queue is full.
func (p *workerPool) submit(job func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrDispatcherClosed
	}
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return ErrDispatcherClosed
	case p.jobs <- job:
		return nil
	}
}

// close stops the workers after draining already-queued jobs is abandoned;
// in-flight jobs finish, queued ones are dropped.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// DispatcherOption configures a dispatcher.
type DispatcherOption func(*dispatcherSettings)

type dispatcherSettings struct {
	workers   int
	queueSize int
	logger    looper.Logger
}

// WithWorkers sets the number of pool workers.
func WithWorkers(count int) DispatcherOption {
	return func(s *dispatcherSettings) {
		if count > 0 {
			s.workers = count
		}
	}
}

// WithQueueSize sets the job queue size.
func WithQueueSize(size int) DispatcherOption {
	return func(s *dispatcherSettings) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger looper.Logger) DispatcherOption {
	return func(s *dispatcherSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// AsyncDispatcher runs I/O-bound or lightweight cooperative work on a small
// fixed set of worker goroutines. It is also the delivery path for compute
// results, so every task completes through it.
type AsyncDispatcher struct {
	pool   *workerPool
	logger looper.Logger
}

// NewAsyncDispatcher creates an async dispatcher.
func NewAsyncDispatcher(opts ...DispatcherOption) *AsyncDispatcher {
	settings := dispatcherSettings{workers: 2, queueSize: 64}
	for _, opt := range opts {
		opt(&settings)
	}
	d := &AsyncDispatcher{
		pool:   newWorkerPool(settings.workers, settings.queueSize),
		logger: settings.logger,
	}
	if d.logger != nil {
		d.logger.Debug("Async dispatcher started", "workers", settings.workers, "queueSize", settings.queueSize)
	}
	return d
}

// Context returns the dispatcher's root context. It is cancelled by Close;
// dispatched computations receive it so blocking calls can observe teardown.
func (d *AsyncDispatcher) Context() context.Context {
	return d.pool.ctx
}

// Close stops the worker pool. Intended for orderly teardown in tests; a
// running application keeps its dispatchers for the process lifetime.
func (d *AsyncDispatcher) Close() {
	d.pool.close()
}

// Dispatch submits an I/O-bound computation to the async pool and marks the
// task Dispatched. Fails with ErrAlreadyAlive if the task is in flight.
// The computation's error, or a captured panic, is delivered through Poll.
func Dispatch[T any](d *AsyncDispatcher, task *Task[T], fn func(ctx context.Context) (T, error)) error {
	if err := task.begin(); err != nil {
		return err
	}
	err := d.pool.submit(func() {
		value, err := runProtected(d.pool.ctx, fn)
		task.deliver(value, err)
	})
	if err != nil {
		// Roll the slot back so the task is not stuck Dispatched forever.
		task.reset()
		return err
	}
	return nil
}

// ComputeDispatcher runs CPU-bound blocking work on a fixed-size pool. Work
// submitted here always completes by handing its result back through the
// async layer, so callers poll the same Task interface for both pools.
type ComputeDispatcher struct {
	pool   *workerPool
	async  *AsyncDispatcher
	logger looper.Logger
}

// NewComputeDispatcher creates a compute dispatcher delivering through the
// given async dispatcher.
func NewComputeDispatcher(async *AsyncDispatcher, opts ...DispatcherOption) *ComputeDispatcher {
	settings := dispatcherSettings{workers: 2, queueSize: 64}
	for _, opt := range opts {
		opt(&settings)
	}
	d := &ComputeDispatcher{
		pool:   newWorkerPool(settings.workers, settings.queueSize),
		async:  async,
		logger: settings.logger,
	}
	if d.logger != nil {
		d.logger.Debug("Compute dispatcher started", "workers", settings.workers, "queueSize", settings.queueSize)
	}
	return d
}

// Close stops the compute pool. The async dispatcher is closed separately.
func (d *ComputeDispatcher) Close() {
	d.pool.close()
}

// DispatchCompute submits a CPU-bound computation to the compute pool and
// marks the task Dispatched. Fails with ErrAlreadyAlive if the task is in
// flight. The result travels through the async layer before it becomes
// visible to Poll.
func DispatchCompute[T any](d *ComputeDispatcher, task *Task[T], fn func() (T, error)) error {
	if err := task.begin(); err != nil {
		return err
	}
	err := d.pool.submit(func() {
		value, err := runProtected(d.pool.ctx, func(context.Context) (T, error) { return fn() })
		if submitErr := d.async.pool.submit(func() {
			task.deliver(value, err)
		}); submitErr != nil {
			// Deliver directly, keeping the computation's own error
			// alongside the delivery failure.
			task.deliver(value, errors.Join(err, submitErr))
		}
	})
	if err != nil {
		task.reset()
		return err
	}
	return nil
}

// runProtected invokes fn, converting a panic into an error so a failing
// computation can never take down a worker.
func runProtected[T any](ctx context.Context, fn func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return fn(ctx)
}
