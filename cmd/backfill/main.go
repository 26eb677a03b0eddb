// cmd/backfill/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/artifact"
	"github.com/lukas-pastva/web-spain-sub000/internal/bus"
	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
	"github.com/lukas-pastva/web-spain-sub000/internal/config"
	"github.com/lukas-pastva/web-spain-sub000/internal/logging"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/timelapse"
	"github.com/lukas-pastva/web-spain-sub000/pkg/schema"
)

type options struct {
	DryRun  bool
	Kinds   map[process.Kind]bool
	Since   string
	Limit   int
	Combine bool
}

func main() {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "load config", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	opts := parseFlags()
	rep, err := run(context.Background(), cfg, opts, logger)
	if err != nil {
		fatal(logger, "backfill failed", err)
	}
	logger.Info("backfill complete",
		"missing", rep.Missing,
		"selected", rep.Selected,
		"published", rep.Published,
		"dry_run", opts.DryRun,
	)
}

type report struct {
	Missing   int
	Selected  int
	Published int
}

// run does the backfill and returns instead of exiting so the capture store
// and the NATS connection are always closed, draining published requests.
func run(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) (report, error) {
	var rep report
	logger.Info("backfill starting",
		"images_dir", cfg.ImagesDir,
		"videos_dir", cfg.VideosDir,
		"request_subject", cfg.RequestSubject,
		"since", opts.Since,
		"limit", opts.Limit,
		"dry_run", opts.DryRun,
	)
	if !opts.DryRun && cfg.NATSURL == "" {
		return rep, errors.New("NATS_URL is required with -execute")
	}

	captures, closeCaptures, err := capture.Open(ctx, cfg.CaptureBackend, cfg.ImagesDir, cfg.DatabaseURL, logger)
	if err != nil {
		return rep, fmt.Errorf("open capture store: %w", err)
	}
	defer closeCaptures()

	// Connect to NATS (skip if dry-run)
	var nc *bus.Client
	if !opts.DryRun {
		nc, err = bus.Connect(cfg.NATSURL, "timelapse-backfill", logger)
		if err != nil {
			return rep, fmt.Errorf("connect to NATS %s: %w", cfg.NATSURL, err)
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	}

	scanner := timelapse.NewScanner(captures, artifact.NewStore(cfg.VideosDir, logger), nil, logger)
	scanner.SkipToday = cfg.ScanSkipToday
	missing, err := scanner.Missing(ctx)
	if err != nil {
		return rep, fmt.Errorf("scan: %w", err)
	}
	rep.Missing = len(missing)

	jobs := filter(missing, opts)
	if opts.Combine && len(jobs) > 0 {
		for _, k := range timelapse.CombinedKinds() {
			jobs = append(jobs, timelapse.QueuedJob{Kind: k})
		}
	}
	rep.Selected = len(jobs)

	for _, j := range jobs {
		if opts.DryRun {
			logger.Info("would request job", "kind", j.Kind, "date", j.Date)
			continue
		}
		req := schema.JobRequest{
			Kind:        string(j.Kind),
			Date:        j.Date,
			Source:      "backfill",
			RequestedAt: time.Now().UnixMilli(),
		}
		if err := nc.PublishJSON(cfg.RequestSubject, req); err != nil {
			logger.Error("publish job request failed", "kind", j.Kind, "date", j.Date, "err", err)
			continue
		}
		rep.Published++
		logger.Info("requested job", "kind", j.Kind, "date", j.Date)
	}
	if nc != nil {
		if err := nc.Conn().Flush(); err != nil {
			logger.Warn("flush failed", "err", err)
		}
	}
	return rep, nil
}

func parseFlags() options {
	var kinds string
	var execute bool
	opts := options{DryRun: true}

	flag.StringVar(&kinds, "kinds", "daily,daylight", "Comma separated per-day kinds to request")
	flag.StringVar(&opts.Since, "since", "", "Only request days on or after this date (YYYY-MM-DD)")
	flag.IntVar(&opts.Limit, "limit", 0, "Maximum number of per-day jobs to request (0 = unlimited)")
	flag.BoolVar(&opts.Combine, "combine", true, "Also request both combined videos when anything was missing")
	flag.BoolVar(&execute, "execute", false, "Actually publish job requests (disables dry-run)")
	flag.Parse()

	if execute {
		opts.DryRun = false
	}
	opts.Kinds = make(map[process.Kind]bool)
	for _, k := range strings.Split(kinds, ",") {
		kind, err := process.ParseKind(k)
		if err != nil || !kind.PerDay() {
			fatal(slog.Default(), "invalid -kinds", err, "kind", k)
		}
		opts.Kinds[kind] = true
	}
	if opts.Since != "" {
		if err := process.ValidateDate(opts.Since); err != nil {
			fatal(slog.Default(), "invalid -since", err)
		}
	}
	return opts
}

// filter applies the kind, since and limit flags, keeping scan order.
func filter(missing []timelapse.QueuedJob, opts options) []timelapse.QueuedJob {
	var out []timelapse.QueuedJob
	for _, m := range missing {
		if !opts.Kinds[m.Kind] {
			continue
		}
		if opts.Since != "" && m.Date < opts.Since {
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		out = append(out, m)
	}
	return out
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
