// internal/bus/events.go
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lukas-pastva/web-spain-sub000/internal/encoder"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/queue"
	"github.com/lukas-pastva/web-spain-sub000/pkg/schema"
)

// Publisher is the part of Client the job listener needs.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// JobListener returns a queue listener publishing every transition as a
// schema.JobEvent on subject. Publish errors are logged and dropped.
func JobListener(p Publisher, subject string, logger *slog.Logger) queue.Listener {
	return func(ev queue.Event) {
		msg := ToJobEvent(ev, time.Now())
		if err := p.PublishJSON(subject, msg); err != nil {
			logger.Warn("publish job event failed", "subject", subject, "job_id", msg.JobID, "stage", msg.Stage, "err", err)
		}
	}
}

// ToJobEvent maps a queue transition to its wire form.
func ToJobEvent(ev queue.Event, now time.Time) schema.JobEvent {
	j := ev.Job
	out := schema.JobEvent{
		JobID:       j.ID,
		Kind:        string(j.Kind),
		Date:        j.Date,
		QueueLength: ev.QueueLength,
		EnqueuedAt:  j.EnqueuedAt.UnixMilli(),
		HappenedAt:  now.UnixMilli(),
	}
	switch j.Status {
	case process.JobStatusQueued:
		out.Stage = schema.StageQueued
	case process.JobStatusRunning:
		out.Stage = schema.StageRunning
	case process.JobStatusSkipped:
		out.Stage = schema.StageSkipped
		out.Reason = ev.Result.Reason
	case process.JobStatusDone:
		out.Stage = schema.StageCompleted
		out.Output = ev.Result.Output
		out.Items = ev.Result.Items
	case process.JobStatusFailed:
		out.Stage = schema.StageFailed
		out.Error = j.Error
		out.FailureType = classifyError(ev.Err)
	}
	if j.Status.Terminal() {
		out.DurationMs = j.Duration().Milliseconds()
	}
	return out
}

func classifyError(err error) schema.FailureType {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, encoder.ErrUnavailable):
		return schema.FailureTypeUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return schema.FailureTypeRetryable
	case errors.Is(err, encoder.ErrEmptyOutput), errors.Is(err, process.ErrInvalidKind), errors.Is(err, process.ErrInvalidDate):
		return schema.FailureTypePermanent
	}
	return schema.FailureTypeRetryable
}

// Enqueuer accepts job requests.
type Enqueuer interface {
	Enqueue(kind process.Kind, date string) (string, error)
}

// SubscribeRequests enqueues every schema.JobRequest received on subject.
func (c *Client) SubscribeRequests(subject string, q Enqueuer, logger *slog.Logger) (*nats.Subscription, error) {
	return c.SubscribeJSON(subject, func(ctx context.Context, data []byte) {
		HandleRequest(data, q, logger)
	})
}

// HandleRequest decodes and enqueues one request payload.
func HandleRequest(data []byte, q Enqueuer, logger *slog.Logger) (string, error) {
	var req schema.JobRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn("invalid job request", "err", err)
		return "", err
	}
	id, err := q.Enqueue(process.Kind(req.Kind), req.Date)
	if err != nil {
		logger.Warn("job request rejected", "kind", req.Kind, "date", req.Date, "source", req.Source, "err", err)
		return "", err
	}
	logger.Info("job request accepted", "job_id", id, "kind", req.Kind, "date", req.Date, "source", req.Source)
	return id, nil
}
