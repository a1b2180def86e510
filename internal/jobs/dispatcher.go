// Package jobs defines background tasks such as automated code reviews.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/diffscope/diffscope/internal/core"
)

// reviewTask pairs a queued event with the channel its delivery waits on.
type reviewTask struct {
	ctx   context.Context
	event *core.ReviewEvent
	done  chan error
}

// dispatcher implements core.JobDispatcher with a pool of worker goroutines.
// The pool bounds how many reviews run at once; each Dispatch call still
// blocks until its own job finishes, so the webhook handler can report the
// delivery's real outcome.
type dispatcher struct {
	reviewJob  core.Job
	jobQueue   chan *reviewTask
	maxWorkers int
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// Dispatcher extends core.JobDispatcher with lifecycle control.
type Dispatcher interface {
	core.JobDispatcher
	Stop()
}

// NewDispatcher initializes a dispatcher with a worker pool.
// If maxWorkers is 0 or negative, it defaults to 1.
func NewDispatcher(reviewJob core.Job, maxWorkers int, logger *slog.Logger) Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	d := &dispatcher{
		reviewJob:  reviewJob,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *reviewTask, 100),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes tasks from the queue until it's closed.
func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting review worker", "id", workerID)

	for task := range d.jobQueue {
		task.done <- d.processTask(workerID, task)
	}

	d.logger.Info("shutting down review worker", "id", workerID)
}

func (d *dispatcher) processTask(workerID int, task *reviewTask) error {
	d.logger.Info("worker processing delivery",
		"worker_id", workerID,
		"repo", task.event.RepoFullName,
		"pr", task.event.PRNumber,
		"action", task.event.Action,
	)

	err := d.reviewJob.Run(task.ctx, task.event)
	if err != nil {
		d.logger.Error("review job failed",
			"repo", task.event.RepoFullName,
			"pr", task.event.PRNumber,
			"error", err,
		)
	}
	return err
}

// Dispatch hands a review event to the worker pool and waits for the job's
// result, so collaborator failures during the review surface to the caller.
// When the queue is full it rejects immediately instead of blocking.
func (d *dispatcher) Dispatch(ctx context.Context, event *core.ReviewEvent) error {
	d.logger.Info("queuing review job", "repo", event.RepoFullName, "pr", event.PRNumber)

	// Buffered so a worker finishing after the caller gave up cannot leak.
	task := &reviewTask{ctx: ctx, event: event, done: make(chan error, 1)}

	select {
	case d.jobQueue <- task:
	default:
		return fmt.Errorf("job queue is full, cannot accept new review job")
	}

	select {
	case err := <-task.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop gracefully shuts down the dispatcher, waiting for all workers to finish.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	close(d.jobQueue)
	d.wg.Wait()
	d.logger.Info("all review jobs have finished")
}
