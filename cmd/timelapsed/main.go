// cmd/timelapsed/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lukas-pastva/web-spain-sub000/internal/api"
	"github.com/lukas-pastva/web-spain-sub000/internal/artifact"
	"github.com/lukas-pastva/web-spain-sub000/internal/bus"
	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
	"github.com/lukas-pastva/web-spain-sub000/internal/config"
	"github.com/lukas-pastva/web-spain-sub000/internal/encoder"
	"github.com/lukas-pastva/web-spain-sub000/internal/logging"
	"github.com/lukas-pastva/web-spain-sub000/internal/metrics"
	"github.com/lukas-pastva/web-spain-sub000/internal/overlay"
	"github.com/lukas-pastva/web-spain-sub000/internal/queue"
	"github.com/lukas-pastva/web-spain-sub000/internal/timelapse"
)

func main() {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "load config", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		fatal(logger, "timelapsed stopped", err)
	}
	logger.Info("timelapsed stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("timelapsed starting",
		"capture_backend", cfg.CaptureBackend,
		"images_dir", cfg.ImagesDir,
		"videos_dir", cfg.VideosDir,
		"http_addr", cfg.HTTPAddr,
		"overlay", cfg.OverlayEnabled,
		"nats_url", cfg.NATSURL,
	)

	for _, dir := range []string{cfg.VideosDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	captures, closeCaptures, err := capture.Open(ctx, cfg.CaptureBackend, cfg.ImagesDir, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer closeCaptures()

	window, err := cfg.DefaultWindow()
	if err != nil {
		return err
	}

	enc := encoder.NewFFmpegEncoder(encoder.Options{
		Binary:        cfg.FFmpegPath,
		ProbeBinary:   cfg.FFprobePath,
		FrameRate:     cfg.FrameRate,
		FrameDuration: cfg.FrameDuration,
		Timeout:       cfg.EncodeTimeout,
		TempDir:       cfg.TempDir,
	})
	if err := enc.Available(); err != nil {
		logger.Warn("encoder not available, jobs will fail until it is installed", "binary", cfg.FFmpegPath, "err", err)
	}

	videos := artifact.NewStore(cfg.VideosDir, logger)
	genOpts := timelapse.Options{
		Location:      cfg.DaylightLocation,
		DefaultWindow: window,
		TempDir:       cfg.TempDir,
		Logger:        logger,
	}
	if cfg.OverlayEnabled {
		genOpts.Stamper = overlay.New(cfg.OverlayWidth)
	}
	gen := timelapse.NewGenerator(captures, videos, enc, genOpts)

	qopts := []queue.Option{
		queue.WithLogger(logger),
		queue.WithListener(metrics.Observe),
		queue.WithDegradedWhen(func(err error) bool { return errors.Is(err, encoder.ErrUnavailable) }),
	}

	var nc *bus.Client
	if cfg.NATSURL != "" {
		nc, err = bus.Connect(cfg.NATSURL, "timelapsed", logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
		qopts = append(qopts, queue.WithListener(bus.JobListener(nc, cfg.EventsSubject, logger)))
	}

	q := queue.New(gen, qopts...)

	if nc != nil {
		if _, err := nc.SubscribeRequests(cfg.RequestSubject, q, logger); err != nil {
			return err
		}
		logger.Info("listening for job requests", "subject", cfg.RequestSubject)
	}

	scanner := timelapse.NewScanner(captures, videos, q, logger)
	scanner.SkipToday = cfg.ScanSkipToday
	merger := timelapse.NewMergeDriver(q, logger)

	srv := &api.Server{
		Queue:    q,
		Scanner:  scanner,
		Merger:   merger,
		Captures: captures,
		Videos:   videos,
		Logger:   logger,
		Metrics:  metrics.Handler(),
		AccessLog: httplog.NewLogger("timelapsed", httplog.Options{
			LogLevel: logging.ParseLevel(cfg.LogLevel),
			JSON:     cfg.LogFormat == "json",
			Concise:  true,
		}),
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := &timelapse.Scheduler{
		Scanner:       scanner,
		Merger:        merger,
		Queue:         q,
		ScanInterval:  cfg.ScanInterval,
		MergeInterval: cfg.MergeInterval,
		ScanOnStart:   cfg.ScanOnStart,
		Logger:        logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		if err := q.Close(shutdownCtx); err != nil {
			logger.Warn("queue shutdown", "err", err)
		}
		return nil
	})
	return g.Wait()
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
