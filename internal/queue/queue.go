// Package queue runs broker message handlers on a bounded worker pool with a
// per-job timeout.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"squire/internal/metrics"
)

// Job encapsulates a unit of work processed by the worker pool.
type Job struct {
	ID       string
	Source   string
	Work     func(context.Context) error
	OnFinish func(error)
}

// Stats exposes current queue metrics.
type Stats struct {
	Length      int    `json:"length"`
	Capacity    int    `json:"capacity"`
	WorkerCount int    `json:"worker_count"`
	Processed   uint64 `json:"processed"`
	Failed      uint64 `json:"failed"`
}

// Queue represents a bounded job queue with a fixed worker pool.
type Queue struct {
	jobs        chan Job
	workerCount int
	timeout     time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics

	mu        sync.RWMutex
	started   bool
	stopped   bool
	wg        sync.WaitGroup
	processed atomic.Uint64
	failed    atomic.Uint64
}

// Option customises a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for job outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMetrics mirrors queue stats and job outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// New creates a Queue with the provided capacity, worker count, and per-job timeout.
func New(capacity, workerCount int, timeout time.Duration, opts ...Option) *Queue {
	q := &Queue{
		jobs:        make(chan Job, capacity),
		workerCount: workerCount,
		timeout:     timeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker pool. Workers exit when ctx is cancelled or Stop
// drains the queue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.report()
}

// Enqueue attempts to queue a job without blocking. Returns false if the
// queue is full, not started or stopped.
func (q *Queue) Enqueue(j Job) bool {
	return q.tryEnqueue(j, true)
}

// EnqueueWithRetry attempts to queue a job with a bounded retry window. Returns (enqueued, droppedFull).
func (q *Queue) EnqueueWithRetry(ctx context.Context, j Job, window, interval time.Duration) (bool, bool) {
	if q.tryEnqueue(j, false) {
		return true, false
	}
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false, false
		case <-ticker.C:
			if q.tryEnqueue(j, false) {
				return true, false
			}
		}
	}
	q.logger.Warn("job dropped after retry window", zap.String("job", j.ID), zap.String("source", j.Source), zap.Duration("window", window))
	if q.metrics != nil {
		q.metrics.RecordDrop()
	}
	return false, true
}

func (q *Queue) tryEnqueue(j Job, logDrop bool) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.stopped {
		if logDrop {
			q.logger.Warn("enqueue on inactive queue", zap.String("job", j.ID), zap.Bool("started", q.started))
		}
		return false
	}
	select {
	case q.jobs <- j:
		q.report()
		return true
	default:
		if logDrop {
			q.logger.Warn("job queue full, dropping job", zap.String("job", j.ID), zap.String("source", j.Source))
			if q.metrics != nil {
				q.metrics.RecordDrop()
			}
		}
		return false
	}
}

// Stop stops accepting new jobs and waits for workers to drain until ctx is done.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Stats returns current queue metrics.
func (q *Queue) Stats() Stats {
	return Stats{
		Length:      len(q.jobs),
		Capacity:    cap(q.jobs),
		WorkerCount: q.workerCount,
		Processed:   q.processed.Load(),
		Failed:      q.failed.Load(),
	}
}

// Healthy returns true while the queue is accepting jobs.
func (q *Queue) Healthy() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.started && !q.stopped
}

func (q *Queue) report() {
	if q.metrics != nil {
		q.metrics.UpdateQueue(len(q.jobs), cap(q.jobs), q.workerCount)
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.handleJob(ctx, j)
		}
	}
}

func (q *Queue) handleJob(ctx context.Context, j Job) {
	start := time.Now()
	q.report()

	err := q.run(ctx, j)
	if j.OnFinish != nil {
		j.OnFinish(err)
	}
	q.processed.Add(1)
	if err != nil {
		q.failed.Add(1)
	}
	if q.metrics != nil {
		q.metrics.RecordJobCompletion(err)
	}

	fields := []zap.Field{
		zap.String("job_source", j.Source),
		zap.String("job", j.ID),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		q.logger.Warn("job failed", append(fields, zap.Error(err))...)
		return
	}
	q.logger.Debug("job done", fields...)
}

// run executes the job under the per-job timeout, turning a panic into an error.
func (q *Queue) run(ctx context.Context, j Job) (err error) {
	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panic: %v", j.ID, r)
		}
	}()
	return j.Work(jobCtx)
}
