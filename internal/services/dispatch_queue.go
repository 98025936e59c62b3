package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bantay-backend/internal/config"
	"bantay-backend/internal/models"
	"bantay-backend/pkg/jobs"
)

const jobTypeDispatch = "alert.dispatch"

type dispatchJob struct {
	Alert      *models.Alert
	Recipients []models.Recipient
}

// DispatchQueue runs dispatches on a bounded worker pool so publish returns
// as soon as the job is queued. Jobs are never retried.
type DispatchQueue struct {
	queue      *jobs.Queue
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewDispatchQueue(dispatcher *Dispatcher, cfg config.DispatchConfig, logger *zap.Logger) *DispatchQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	dq := &DispatchQueue{dispatcher: dispatcher, logger: logger}
	dq.queue = jobs.NewQueue("dispatch", dq.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: 0,
		Logger:     logger,
	})
	return dq
}

func (q *DispatchQueue) Start(ctx context.Context) {
	q.queue.Start(ctx)
}

// Stop waits for in-flight dispatches to finish.
func (q *DispatchQueue) Stop() {
	q.queue.Stop()
}

// Submit queues a dispatch. When the queue cannot take the job, every
// recipient is recorded as failed before the error is returned.
func (q *DispatchQueue) Submit(ctx context.Context, alert *models.Alert, recipients []models.Recipient) error {
	err := q.queue.Enqueue(jobs.Job{
		Type:    jobTypeDispatch,
		Payload: dispatchJob{Alert: alert, Recipients: recipients},
	})
	if err == nil {
		return nil
	}
	q.dispatcher.Abandon(context.WithoutCancel(ctx), alert, recipients,
		fmt.Errorf("dispatch not started: %w", err))
	return err
}

// handle detaches from the queue context so stopping the pool lets a started
// dispatch run to completion. Delivery errors stay on the delivery records.
func (q *DispatchQueue) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(dispatchJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
	}
	q.dispatcher.Dispatch(context.WithoutCancel(ctx), payload.Alert, payload.Recipients)
	return nil
}
