package timelapse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/artifact"
	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
)

// Enqueuer accepts job requests.
type Enqueuer interface {
	Enqueue(kind process.Kind, date string) (string, error)
}

// QueuedJob is one job a scan or merge asked for.
type QueuedJob struct {
	Kind process.Kind `json:"kind"`
	Date string       `json:"date"`
}

type ScanResult struct {
	QueuedCount int         `json:"queuedCount"`
	Queued      []QueuedJob `json:"queued"`
}

// Scanner finds capture days that have no daily or daylight video yet.
type Scanner struct {
	captures  capture.Store
	artifacts *artifact.Store
	queue     Enqueuer
	logger    *slog.Logger

	// SkipToday leaves the current day alone while captures are still
	// arriving.
	SkipToday bool
	Now       func() time.Time
}

func NewScanner(captures capture.Store, artifacts *artifact.Store, q Enqueuer, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{captures: captures, artifacts: artifacts, queue: q, logger: logger, Now: time.Now}
}

// Missing lists the jobs a scan would enqueue: a daily job for every day
// without a daily video, then a daylight job for every day without a
// daylight video, each in ListDays order.
func (s *Scanner) Missing(ctx context.Context) ([]QueuedJob, error) {
	days := s.captures.ListDays(ctx)
	daily, err := s.artifacts.Dates(process.KindDaily)
	if err != nil {
		return nil, fmt.Errorf("list daily videos: %w", err)
	}
	light, err := s.artifacts.Dates(process.KindDaylight)
	if err != nil {
		return nil, fmt.Errorf("list daylight videos: %w", err)
	}

	today := ""
	if s.SkipToday {
		today = s.Now().Format(process.DateLayout)
	}

	var missing []QueuedJob
	for _, d := range days {
		if d != today && !daily[d] {
			missing = append(missing, QueuedJob{Kind: process.KindDaily, Date: d})
		}
	}
	for _, d := range days {
		if d != today && !light[d] {
			missing = append(missing, QueuedJob{Kind: process.KindDaylight, Date: d})
		}
	}
	return missing, nil
}

// ScanAndEnqueueMissing enqueues every missing job. Jobs already waiting in
// the queue are not taken into account.
func (s *Scanner) ScanAndEnqueueMissing(ctx context.Context) (ScanResult, error) {
	missing, err := s.Missing(ctx)
	if err != nil {
		return ScanResult{Queued: []QueuedJob{}}, err
	}

	res := ScanResult{Queued: make([]QueuedJob, 0, len(missing))}
	for _, m := range missing {
		if _, err := s.queue.Enqueue(m.Kind, m.Date); err != nil {
			s.logger.Error("enqueue missing job failed", "kind", m.Kind, "date", m.Date, "err", err)
			res.QueuedCount = len(res.Queued)
			return res, fmt.Errorf("enqueue %s %s: %w", m.Kind, m.Date, err)
		}
		res.Queued = append(res.Queued, m)
	}
	res.QueuedCount = len(res.Queued)
	s.logger.Info("scan finished", "queued", res.QueuedCount)
	return res, nil
}
