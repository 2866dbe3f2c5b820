package notifications

import "sync"

// RetryQueue holds jobs awaiting another attempt. Order is not preserved
// across drain passes.
type RetryQueue struct {
	mu   sync.Mutex
	jobs []*Job
}

// NewRetryQueue creates an empty queue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{}
}

// Enqueue adds a job.
func (q *RetryQueue) Enqueue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, job)
	retryQueueSize.Set(float64(len(q.jobs)))
}

// Drain removes and returns every queued job. Jobs enqueued afterwards are
// kept for the next pass.
func (q *RetryQueue) Drain() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.jobs
	q.jobs = nil
	retryQueueSize.Set(0)
	return jobs
}

// Len returns the number of queued jobs.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Snapshot returns a copy of the queued jobs.
func (q *RetryQueue) Snapshot() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	return out
}
