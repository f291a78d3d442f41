// Package taskqueue executes deferred index mutations off the caller's
// critical path. Tasks scheduled inside a unit of work are held back until
// that unit commits and discarded if it rolls back, mirroring the
// transactional-scope rule for deferred writes.
package taskqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wikimesh/centralindex/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkerCount = 4
	defaultQueueDepth  = 1024

	shutdownDrainTimeout = 30 * time.Second
)

// Task is one deferred unit of work. The ID correlates log lines across
// scheduling and execution.
type Task struct {
	ID   uuid.UUID
	Name string
	Run  func(ctx context.Context) error
}

// NewTask wraps a function as a named task with a fresh correlation id.
func NewTask(name string, run func(ctx context.Context) error) Task {
	return Task{ID: uuid.New(), Name: name, Run: run}
}

// Scheduler accepts tasks for deferred execution. Implemented by *Queue;
// tests substitute a synchronous implementation.
type Scheduler interface {
	Schedule(task Task)
}

// Queue is a bounded in-process task queue drained by a fixed worker pool.
// Scheduling never blocks: when the queue is full the task is dropped with a
// warning, keeping the write path best-effort.
type Queue struct {
	tasks   chan Task
	workers int
}

func New(workerCount, queueDepth int) *Queue {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Queue{
		tasks:   make(chan Task, queueDepth),
		workers: workerCount,
	}
}

// Schedule enqueues a task for execution. Never blocks; a full queue drops
// the task.
func (q *Queue) Schedule(task Task) {
	select {
	case q.tasks <- task:
		metrics.TaskQueueDepth.Set(float64(len(q.tasks)))
	default:
		metrics.TasksDropped.Inc()
		slog.Warn("[TaskQueue] Queue full, dropping task",
			"task_id", task.ID,
			"task", task.Name)
	}
}

// Start runs the worker pool until ctx is cancelled, then drains whatever is
// still queued under a shutdown timeout.
func (q *Queue) Start(ctx context.Context) error {
	slog.Info("[TaskQueue] Starting workers",
		"workers", q.workers,
		"queue_depth", cap(q.tasks))

	var g errgroup.Group
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					q.drain()
					return nil
				case task := <-q.tasks:
					q.run(ctx, task)
				}
			}
		})
	}
	return g.Wait()
}

// drain runs queued tasks after cancellation so committed deferred writes are
// not lost on shutdown.
func (q *Queue) drain() {
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownDrainTimeout)
	defer cancel()

	for {
		select {
		case task := <-q.tasks:
			q.run(drainCtx, task)
		default:
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	metrics.TaskQueueDepth.Set(float64(len(q.tasks)))
	if err := task.Run(ctx); err != nil {
		slog.Error("[TaskQueue] Task failed",
			"task_id", task.ID,
			"task", task.Name,
			"error", err)
	}
}

// UnitOfWork collects tasks scheduled with afterCommit semantics. Commit
// flushes them onto the queue; Rollback discards them. Tasks scheduled with
// afterCommit=false bypass the buffer and enqueue immediately.
type UnitOfWork struct {
	scheduler Scheduler

	mu      sync.Mutex
	pending []Task
	closed  bool
}

// BeginUnitOfWork opens a transactional scope for deferred tasks.
func (q *Queue) BeginUnitOfWork() *UnitOfWork {
	return &UnitOfWork{scheduler: q}
}

// NewUnitOfWork opens a scope over any scheduler. Used by tests and by hosts
// that bring their own execution facility.
func NewUnitOfWork(s Scheduler) *UnitOfWork {
	return &UnitOfWork{scheduler: s}
}

// Schedule registers a task with the scope. afterCommit tasks are held until
// Commit; others are passed straight through.
func (u *UnitOfWork) Schedule(task Task, afterCommit bool) {
	if !afterCommit {
		u.scheduler.Schedule(task)
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		slog.Warn("[TaskQueue] Task scheduled on closed unit of work, dropping",
			"task_id", task.ID,
			"task", task.Name)
		return
	}
	u.pending = append(u.pending, task)
}

// Commit flushes held tasks onto the queue. Idempotent; a second call is a
// no-op.
func (u *UnitOfWork) Commit() {
	u.mu.Lock()
	pending := u.pending
	u.pending = nil
	u.closed = true
	u.mu.Unlock()

	for _, task := range pending {
		u.scheduler.Schedule(task)
	}
}

// Rollback discards held tasks without running them.
func (u *UnitOfWork) Rollback() {
	u.mu.Lock()
	dropped := len(u.pending)
	u.pending = nil
	u.closed = true
	u.mu.Unlock()

	if dropped > 0 {
		slog.Debug("[TaskQueue] Unit of work rolled back", "tasks_discarded", dropped)
	}
}
