package bus

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/encoder"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/queue"
	"github.com/lukas-pastva/web-spain-sub000/pkg/schema"
)

func TestToJobEvent(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	job := process.NewJob(process.KindDaily, "2024-01-01", start)

	queued := ToJobEvent(queue.Event{Job: *job, QueueLength: 1}, start)
	if queued.Stage != schema.StageQueued || queued.QueueLength != 1 || queued.DurationMs != 0 {
		t.Fatalf("unexpected queued event %+v", queued)
	}

	process.MarkRunning(job, start)
	process.MarkDone(job, start.Add(1500*time.Millisecond))
	done := ToJobEvent(queue.Event{Job: *job, Result: queue.Result{Output: "2024-01-01.mp4", Items: 42}}, start)
	if done.Stage != schema.StageCompleted || done.Output != "2024-01-01.mp4" || done.Items != 42 || done.DurationMs != 1500 {
		t.Fatalf("unexpected completed event %+v", done)
	}
	if done.JobID != job.ID || done.EnqueuedAt != start.UnixMilli() {
		t.Fatalf("event lost job identity: %+v", done)
	}
}

func TestToJobEventFailureType(t *testing.T) {
	tests := []struct {
		err  error
		want schema.FailureType
	}{
		{fmt.Errorf("encode: %w", encoder.ErrUnavailable), schema.FailureTypeUnavailable},
		{encoder.ErrEmptyOutput, schema.FailureTypePermanent},
		{errors.New("ffmpeg failed: exit status 1"), schema.FailureTypeRetryable},
	}
	for _, tt := range tests {
		job := process.NewJob(process.KindCombined24h, "", time.Now())
		process.MarkFailed(job, tt.err, time.Now())
		ev := ToJobEvent(queue.Event{Job: *job, Err: tt.err}, time.Now())
		if ev.Stage != schema.StageFailed || ev.FailureType != tt.want || ev.Error != tt.err.Error() {
			t.Errorf("ToJobEvent(%v) = %+v, want failure type %s", tt.err, ev, tt.want)
		}
	}
}

type fakePublisher struct {
	subject string
	sent    []any
	err     error
}

func (p *fakePublisher) PublishJSON(subject string, v any) error {
	p.subject = subject
	p.sent = append(p.sent, v)
	return p.err
}

func TestJobListenerPublishes(t *testing.T) {
	pub := &fakePublisher{}
	l := JobListener(pub, "timelapse.jobs.events", slog.New(slog.NewTextHandler(io.Discard, nil)))
	l(queue.Event{Job: *process.NewJob(process.KindDaylight, "2024-01-01", time.Now())})

	if pub.subject != "timelapse.jobs.events" || len(pub.sent) != 1 {
		t.Fatalf("expected one publish on the events subject, got %q %d", pub.subject, len(pub.sent))
	}
	if ev, ok := pub.sent[0].(schema.JobEvent); !ok || ev.Kind != "daylight" {
		t.Fatalf("unexpected payload %#v", pub.sent[0])
	}
}

type fakeQueue struct{ kinds []process.Kind }

func (q *fakeQueue) Enqueue(kind process.Kind, date string) (string, error) {
	if _, _, err := process.Normalize(kind, date); err != nil {
		return "", err
	}
	q.kinds = append(q.kinds, kind)
	return "id-1", nil
}

func TestHandleRequest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := &fakeQueue{}

	id, err := HandleRequest([]byte(`{"kind":"daily","date":"2024-01-01","source":"backfill"}`), q, logger)
	if err != nil || id != "id-1" {
		t.Fatalf("HandleRequest = %q, %v", id, err)
	}
	if _, err := HandleRequest([]byte(`{"kind":"daily"}`), q, logger); !errors.Is(err, process.ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
	if _, err := HandleRequest([]byte(`not json`), q, logger); err == nil {
		t.Fatal("expected decode error")
	}
	if len(q.kinds) != 1 {
		t.Fatalf("expected one accepted request, got %d", len(q.kinds))
	}
}
