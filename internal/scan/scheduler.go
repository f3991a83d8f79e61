package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned when a submission cannot be accepted right now.
var ErrQueueFull = errors.New("scan: queue full")

// ErrStopped is returned for submissions after shutdown began.
var ErrStopped = errors.New("scan: scheduler stopped")

// Scheduler runs submissions in the background, decoupled from the request
// that triggered them. Once accepted, a submission runs to completion or
// failure; there is no cancellation of in-flight work.
type Scheduler struct {
	pipeline *Pipeline
	jobs     chan Submission
	wg       sync.WaitGroup
	logger   *slog.Logger

	mu      sync.Mutex
	stopped bool
}

// NewScheduler creates a scheduler with the given worker count and queue
// capacity and starts its workers.
func NewScheduler(pipeline *Pipeline, workers, queueSize int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		pipeline: pipeline,
		jobs:     make(chan Submission, queueSize),
		logger:   logger,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Submit queues a submission for background processing without blocking.
func (s *Scheduler) Submit(sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.jobs <- sub:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new submissions, drains queued ones, and waits for in-flight
// work to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.jobs)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for sub := range s.jobs {
		s.run(sub)
	}
}

// run isolates one submission: a panic or error is logged and must never
// take the worker down with it.
func (s *Scheduler) run(sub Submission) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			scansTotal.WithLabelValues("failed").Inc()
			s.logger.Error("panic in scan worker", "foreman_id", sub.ForemanID, "panic", r)
		}
	}()
	if _, err := s.pipeline.Process(context.Background(), sub); err != nil {
		scansTotal.WithLabelValues("failed").Inc()
		s.logger.Error("submission failed",
			"foreman_id", sub.ForemanID,
			"pages", len(sub.Files),
			"error", err)
		return
	}
	scansTotal.WithLabelValues("completed").Inc()
	scanDuration.Observe(time.Since(start).Seconds())
}
