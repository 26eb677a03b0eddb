package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"

	"github.com/lukas-pastva/web-spain-sub000/internal/artifact"
	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/queue"
	"github.com/lukas-pastva/web-spain-sub000/internal/timelapse"
)

type JobQueue interface {
	Enqueue(kind process.Kind, date string) (string, error)
	Status() queue.Status
	Cancel(kind process.Kind, date string) (int, error)
}

type Scanner interface {
	ScanAndEnqueueMissing(ctx context.Context) (timelapse.ScanResult, error)
}

type Merger interface {
	Trigger(kinds ...process.Kind) ([]timelapse.QueuedJob, error)
}

type Videos interface {
	List() ([]artifact.Video, error)
	Get(name string) (artifact.Video, string, error)
	Delete(name string) error
}

// Server holds what the HTTP handlers need. AccessLog and Metrics are
// optional.
type Server struct {
	Queue     JobQueue
	Scanner   Scanner
	Merger    Merger
	Captures  capture.Store
	Videos    Videos
	Logger    *slog.Logger
	AccessLog *httplog.Logger
	Metrics   http.Handler
}

func (s *Server) Routes() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if s.AccessLog != nil {
		r.Use(httplog.RequestLogger(s.AccessLog, []string{"/healthz", "/metrics"}))
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.enqueueJob)
			r.Delete("/", s.cancelJobs)
		})
		r.Post("/scan", s.scan)
		r.Post("/merge", s.merge)

		r.Route("/days", func(r chi.Router) {
			r.Get("/", s.listDays)
			r.Get("/{date}", s.getDay)
			r.Delete("/{date}", s.deleteDay)
		})
		r.Get("/captures/{date}/{name}", s.getCapture)
		r.Delete("/captures/{date}/{name}", s.deleteCapture)

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", s.listVideos)
			r.Get("/{name}", s.getVideo)
			r.Delete("/{name}", s.deleteVideo)
		})
	})
	return r
}
