// Package tasks runs fire-and-forget background work on a fixed pool of
// workers fed by a bounded buffer.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("tasks: queue is full")
	ErrQueueClosed = errors.New("tasks: queue is closed")
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stats are cumulative counters since the queue started.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
	Workers   int   `json:"workers"`
}

type Queue struct {
	tasks   chan Task
	timeout time.Duration
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewQueue starts workers goroutines reading from a buffer of size slots.
// A zero timeout leaves tasks unbounded.
func NewQueue(size, workers int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	q := &Queue{
		tasks:   make(chan Task, size),
		timeout: timeout,
		workers: workers,
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work(i)
	}
	return q
}

// Submit enqueues t without blocking.
func (q *Queue) Submit(t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		q.submitted.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		log.WithField("task", t.Name).Warn("task queue full, dropping task")
		return ErrQueueFull
	}
}

func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
		Pending:   len(q.tasks),
		Workers:   q.workers,
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish. It
// returns ctx.Err() if ctx ends first; workers keep draining in that case.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work(n int) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(n, t)
	}
}

func (q *Queue) run(n int, t Task) {
	ctx := context.Background()
	var cancel context.CancelFunc = func() {}
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	}
	defer cancel()

	logger := log.WithFields(log.Fields{"task": t.Name, "worker": n})
	start := time.Now()
	err := safeRun(ctx, t)
	if err != nil {
		q.failed.Add(1)
		logger.WithError(err).WithField("elapsed", time.Since(start).String()).Error("task failed")
		return
	}
	q.succeeded.Add(1)
	logger.WithField("elapsed", time.Since(start).String()).Debug("task done")
}

func safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if t.Run == nil {
		return errors.New("task has no run function")
	}
	return t.Run(ctx)
}
