package timelapse

import (
	"context"
	"log/slog"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/process"
)

type scanner interface {
	ScanAndEnqueueMissing(ctx context.Context) (ScanResult, error)
}

type backlog interface {
	Len() int
}

type merger interface {
	Trigger(kinds ...process.Kind) ([]QueuedJob, error)
}

// Scheduler fires the scanner and the merge driver on fixed intervals. A
// zero interval disables that trigger. When Queue is set, scans are skipped
// while jobs are still waiting so a slow backlog is not queued twice.
type Scheduler struct {
	Scanner       scanner
	Merger        merger
	Queue         backlog
	ScanInterval  time.Duration
	MergeInterval time.Duration
	ScanOnStart   bool
	Logger        *slog.Logger
}

// Run blocks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("scheduler started", "scan_interval", s.ScanInterval.String(), "merge_interval", s.MergeInterval.String(), "scan_on_start", s.ScanOnStart)

	scanC, stopScan := tick(s.ScanInterval)
	defer stopScan()
	mergeC, stopMerge := tick(s.MergeInterval)
	defer stopMerge()

	if s.ScanOnStart {
		s.scan(ctx, logger)
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return nil
		case <-scanC:
			s.scan(ctx, logger)
		case <-mergeC:
			if _, err := s.Merger.Trigger(); err != nil {
				logger.Error("scheduled merge failed", "err", err)
			}
		}
	}
}

func (s *Scheduler) scan(ctx context.Context, logger *slog.Logger) {
	if s.Queue != nil {
		if n := s.Queue.Len(); n > 0 {
			logger.Debug("scheduled scan skipped, queue not drained", "queue_length", n)
			return
		}
	}
	res, err := s.Scanner.ScanAndEnqueueMissing(ctx)
	if err != nil {
		logger.Error("scheduled scan failed", "err", err)
		return
	}
	if res.QueuedCount > 0 {
		logger.Info("scheduled scan queued jobs", "count", res.QueuedCount)
	}
}

// tick returns a nil channel for d <= 0 so its select case never fires.
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
