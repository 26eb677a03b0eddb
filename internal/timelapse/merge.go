package timelapse

import (
	"fmt"
	"log/slog"

	"github.com/lukas-pastva/web-spain-sub000/internal/process"
)

// MergeDriver requests rebuilds of the combined videos.
type MergeDriver struct {
	queue  Enqueuer
	logger *slog.Logger
}

func NewMergeDriver(q Enqueuer, logger *slog.Logger) *MergeDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeDriver{queue: q, logger: logger}
}

// CombinedKinds are the kinds a merge produces.
func CombinedKinds() []process.Kind {
	return []process.Kind{process.KindCombined24h, process.KindCombinedDaylight}
}

// Trigger enqueues one job per combined kind, both when none are given.
func (m *MergeDriver) Trigger(kinds ...process.Kind) ([]QueuedJob, error) {
	if len(kinds) == 0 {
		kinds = CombinedKinds()
	}
	for _, k := range kinds {
		pk, err := process.ParseKind(string(k))
		if err != nil {
			return nil, err
		}
		if pk.PerDay() {
			return nil, fmt.Errorf("%w: %q is not a combined kind", process.ErrInvalidKind, k)
		}
	}

	queued := make([]QueuedJob, 0, len(kinds))
	for _, k := range kinds {
		id, err := m.queue.Enqueue(k, "")
		if err != nil {
			return queued, fmt.Errorf("enqueue %s: %w", k, err)
		}
		m.logger.Info("merge requested", "kind", k, "job_id", id)
		queued = append(queued, QueuedJob{Kind: k})
	}
	return queued, nil
}
