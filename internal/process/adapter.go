// internal/process/adapter.go
package process

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the naive calendar-day key used across captures, jobs and videos.
const DateLayout = "2006-01-02"

var (
	ErrInvalidKind = errors.New("invalid job kind")
	ErrInvalidDate = errors.New("invalid date")
)

// Kind names the video artifact a job produces.
type Kind string

const (
	KindDaily            Kind = "daily"
	KindDaylight         Kind = "daylight"
	KindCombined24h      Kind = "combined-24h"
	KindCombinedDaylight Kind = "combined-daylight"
)

// Kinds returns every supported job kind.
func Kinds() []Kind {
	return []Kind{KindDaily, KindDaylight, KindCombined24h, KindCombinedDaylight}
}

// ParseKind maps a wire value onto a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindDaily, KindDaylight, KindCombined24h, KindCombinedDaylight:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// PerDay reports whether the kind is keyed by a calendar day.
func (k Kind) PerDay() bool {
	return k == KindDaily || k == KindDaylight
}

// Source returns the per-day kind a combined kind is concatenated from.
func (k Kind) Source() Kind {
	switch k {
	case KindCombined24h:
		return KindDaily
	case KindCombinedDaylight:
		return KindDaylight
	}
	return k
}

// ValidateDate accepts only zero-padded YYYY-MM-DD keys of real calendar days.
func ValidateDate(s string) error {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return nil
}

// Normalize validates a job request. Per-day kinds require a date; combined
// kinds ignore it.
func Normalize(kind Kind, date string) (Kind, string, error) {
	k, err := ParseKind(string(kind))
	if err != nil {
		return "", "", err
	}
	date = strings.TrimSpace(date)
	if !k.PerDay() {
		return k, "", nil
	}
	if err := ValidateDate(date); err != nil {
		return "", "", err
	}
	return k, date, nil
}

// JobStatus represents the lifecycle state of a video job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusSkipped JobStatus = "skipped"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether no further transition can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusSkipped || s == JobStatusFailed
}

// Job is one request to build or rebuild a video artifact. It only lives as
// long as the process does.
type Job struct {
	ID         string
	Kind       Kind
	Date       string
	Status     JobStatus
	Error      string
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewJob(kind Kind, date string, now time.Time) *Job {
	return &Job{
		ID:         newJobID(kind, date, now),
		Kind:       kind,
		Date:       date,
		Status:     JobStatusQueued,
		EnqueuedAt: now,
	}
}

// newJobID builds kind + date + enqueue timestamp, with a short random suffix
// so two requests in the same millisecond stay distinct.
func newJobID(kind Kind, date string, now time.Time) string {
	scope := date
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("%s_%s_%d_%s", kind, scope, now.UnixMilli(), uuid.NewString()[:8])
}

// Label is the human readable job target used in logs.
func (j *Job) Label() string {
	if j.Date == "" {
		return string(j.Kind)
	}
	return string(j.Kind) + " " + j.Date
}

// Duration returns how long the job ran, zero until it finished.
func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

func MarkRunning(j *Job, now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = now
}

func MarkDone(j *Job, now time.Time) {
	j.Status = JobStatusDone
	j.FinishedAt = now
}

func MarkSkipped(j *Job, now time.Time) {
	j.Status = JobStatusSkipped
	j.FinishedAt = now
}

func MarkFailed(j *Job, err error, now time.Time) {
	j.Status = JobStatusFailed
	j.FinishedAt = now
	if err != nil {
		j.Error = err.Error()
	}
}
