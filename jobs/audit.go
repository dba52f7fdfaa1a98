package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Enqueuer submits tasks. *asynq.Client and *Client satisfy it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AuditDispatcher hands audit records to the worker instead of writing them
// inline with the request.
type AuditDispatcher struct {
	enqueuer Enqueuer
	now      func() time.Time
}

// NewAuditDispatcher builds a dispatcher on top of the given enqueuer.
func NewAuditDispatcher(enqueuer Enqueuer) *AuditDispatcher {
	return &AuditDispatcher{enqueuer: enqueuer, now: func() time.Time { return time.Now().UTC() }}
}

// Record validates and enqueues the record. The timestamp is fixed at
// dispatch so queue lag does not shift it.
func (d *AuditDispatcher) Record(ctx context.Context, log internalShared.AuditLog) error {
	if d == nil || d.enqueuer == nil {
		return errors.New("audit dispatcher: enqueuer not configured")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	if log.At.IsZero() {
		log.At = d.now()
	}
	task, err := NewAuditRecordTask(log)
	if err != nil {
		return fmt.Errorf("audit dispatcher: encode: %w", err)
	}
	if _, err := d.enqueuer.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("audit dispatcher: enqueue %s: %w", log.Action, err)
	}
	return nil
}

// AuditSink persists audit records. *shared.AuditLogger is the production sink.
type AuditSink interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// AuditRecordJob drains TaskAuditRecord into the sink.
type AuditRecordJob struct {
	Sink    AuditSink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRecordJob wires dependencies for the audit handler.
func NewAuditRecordJob(sink AuditSink, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAuditRecord tasks. Malformed payloads are not retried.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sink == nil {
		return errors.New("audit record: sink not configured")
	}
	var log internalShared.AuditLog
	if err := json.Unmarshal(t.Payload(), &log); err != nil {
		return fmt.Errorf("audit record: decode: %v: %w", err, asynq.SkipRetry)
	}
	if err := log.Validate(); err != nil {
		return fmt.Errorf("audit record: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskAuditRecord)
	defer func() {
		err = tracker.End(err)
	}()

	if err = j.Sink.Record(ctx, log); err != nil {
		j.log().Error("persist audit record",
			slog.String("action", log.Action),
			slog.String("entity_id", log.EntityID),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (j *AuditRecordJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRecord))
	}
	return slog.Default().With(slog.String("job", TaskAuditRecord))
}
