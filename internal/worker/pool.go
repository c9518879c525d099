// Package worker runs queued review jobs on a fixed number of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("queue is full")
	// ErrDuplicate is returned by Submit when a task with the same ID is
	// queued or running.
	ErrDuplicate = errors.New("task already queued")
	// ErrStopped is returned by Submit before Start or after Stop.
	ErrStopped = errors.New("pool not running")
)

// Task represents a task to be executed by a worker.
type Task interface {
	Execute(ctx context.Context) error
	ID() string
}

// Result contains the result of a task execution.
type Result struct {
	TaskID string
	Error  error
}

// Config configures the worker pool.
type Config struct {
	Workers   int // Number of workers (default: GOMAXPROCS)
	QueueSize int // Size of task queue (default: workers * 2)

	// OnDone is called from the worker goroutine after each task.
	OnDone func(Result)
}

// Pool manages a pool of workers for parallel processing.
type Pool struct {
	workers int
	onDone  func(Result)

	mu      sync.Mutex
	tasks   chan Task
	pending map[string]bool
	running bool

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	processed atomic.Int64
	errors    atomic.Int64
	active    atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}

	return &Pool{
		workers: cfg.Workers,
		onDone:  cfg.OnDone,
		tasks:   make(chan Task, cfg.QueueSize),
		pending: make(map[string]bool),
	}
}

// Start starts the workers. Tasks run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(ctx, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, task Task) {
	p.active.Add(1)
	err := p.execute(ctx, task)
	p.active.Add(-1)

	p.mu.Lock()
	delete(p.pending, task.ID())
	p.mu.Unlock()

	p.processed.Add(1)
	if err != nil {
		p.errors.Add(1)
	}
	if p.onDone != nil {
		p.onDone(Result{TaskID: task.ID(), Error: err})
	}
}

// execute turns a panicking task into an error so the worker survives.
func (p *Pool) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.ID(), r)
		}
	}()
	return task.Execute(ctx)
}

// Submit queues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrStopped
	}
	if p.pending[task.ID()] {
		return ErrDuplicate
	}

	select {
	case p.tasks <- task:
		p.pending[task.ID()] = true
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting tasks, lets queued tasks finish and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// Abort cancels running tasks and discards the queue.
func (p *Pool) Abort() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Processed: p.processed.Load(),
		Errors:    p.errors.Load(),
		Pending:   len(p.tasks),
		Active:    int(p.active.Load()),
	}
}

// Stats contains pool statistics.
type Stats struct {
	Workers   int   `json:"workers"`
	Processed int64 `json:"processed"`
	Errors    int64 `json:"errors"`
	Pending   int   `json:"pending"`
	Active    int   `json:"active"`
}

// String returns a string representation of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("workers=%d processed=%d errors=%d pending=%d active=%d",
		s.Workers, s.Processed, s.Errors, s.Pending, s.Active)
}
