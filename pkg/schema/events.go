// pkg/schema/events.go
package schema

// JobRequest asks a running service to enqueue a video job.
type JobRequest struct {
	Kind        string `json:"kind"`
	Date        string `json:"date,omitempty"`
	Source      string `json:"source,omitempty"`
	RequestedAt int64  `json:"requested_at"`
}

type JobStage string

const (
	StageQueued    JobStage = "queued"
	StageRunning   JobStage = "running"
	StageCompleted JobStage = "completed"
	StageSkipped   JobStage = "skipped"
	StageFailed    JobStage = "failed"
)

type FailureType string

const (
	FailureTypeRetryable   FailureType = "retryable"
	FailureTypePermanent   FailureType = "permanent"
	FailureTypeUnavailable FailureType = "unavailable"
)

// JobEvent is published on every job transition.
type JobEvent struct {
	JobID       string      `json:"job_id"`
	Kind        string      `json:"kind"`
	Date        string      `json:"date,omitempty"`
	Stage       JobStage    `json:"stage"`
	Output      string      `json:"output,omitempty"`
	Items       int         `json:"items,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Error       string      `json:"error,omitempty"`
	FailureType FailureType `json:"failure_type,omitempty"`
	QueueLength int         `json:"queue_length"`
	DurationMs  int64       `json:"duration_ms,omitempty"`
	EnqueuedAt  int64       `json:"enqueued_at"`
	HappenedAt  int64       `json:"happened_at"`
}
