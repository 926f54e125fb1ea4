// Package metrics keeps process-wide counters for the worker pool, the
// broker and the workflow.
package metrics

import "sync/atomic"

// Metrics is safe for concurrent use. The zero value is ready.
type Metrics struct {
	queueLength   atomic.Int64
	queueCapacity atomic.Int64
	workerCount   atomic.Int64

	processedJobs atomic.Int64
	failedJobs    atomic.Int64
	droppedJobs   atomic.Int64

	published atomic.Int64
	delivered atomic.Int64
	reports   atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	QueueLength       int   `json:"queue_length"`
	QueueCapacity     int   `json:"queue_capacity"`
	WorkerCount       int   `json:"worker_count"`
	ProcessedJobs     int64 `json:"processed_jobs"`
	FailedJobs        int64 `json:"failed_jobs"`
	DroppedJobs       int64 `json:"dropped_jobs"`
	MessagesPublished int64 `json:"messages_published"`
	MessagesDelivered int64 `json:"messages_delivered"`
	ReportsGenerated  int64 `json:"reports_generated"`
}

func New() *Metrics {
	return &Metrics{}
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	m.queueLength.Store(int64(length))
	m.queueCapacity.Store(int64(capacity))
	m.workerCount.Store(int64(workers))
}

// RecordJobCompletion increments processed/failed counters based on outcome.
func (m *Metrics) RecordJobCompletion(err error) {
	m.processedJobs.Add(1)
	if err != nil {
		m.failedJobs.Add(1)
	}
}

func (m *Metrics) RecordDrop() { m.droppedJobs.Add(1) }
func (m *Metrics) RecordPublish() { m.published.Add(1) }
func (m *Metrics) RecordDelivery() { m.delivered.Add(1) }
func (m *Metrics) RecordReport() { m.reports.Add(1) }

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		QueueLength:       int(m.queueLength.Load()),
		QueueCapacity:     int(m.queueCapacity.Load()),
		WorkerCount:       int(m.workerCount.Load()),
		ProcessedJobs:     m.processedJobs.Load(),
		FailedJobs:        m.failedJobs.Load(),
		DroppedJobs:       m.droppedJobs.Load(),
		MessagesPublished: m.published.Load(),
		MessagesDelivered: m.delivered.Load(),
		ReportsGenerated:  m.reports.Load(),
	}
}
