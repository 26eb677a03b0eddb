package api

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/lukas-pastva/web-spain-sub000/internal/artifact"
	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/queue"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// fail maps domain errors onto HTTP statuses. Only unexpected errors are
// logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	s.respond(w, r, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, process.ErrInvalidKind),
		errors.Is(err, process.ErrInvalidDate),
		errors.Is(err, capture.ErrInvalidName),
		errors.Is(err, capture.ErrInvalidDay),
		errors.Is(err, artifact.ErrInvalidName),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errBadBody = errors.New("invalid request body")

// decode reads an optional JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.Queue.Status())
}

type jobRequest struct {
	Kind string `json:"kind"`
	Date string `json:"date"`
}

func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.Queue.Enqueue(process.Kind(req.Kind), req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, map[string]any{
		"jobId":  id,
		"status": s.Queue.Status(),
	})
}

func (s *Server) cancelJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n, err := s.Queue.Cancel(process.Kind(q.Get("kind")), q.Get("date"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	res, err := s.Scanner.ScanAndEnqueueMissing(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, res)
}

type mergeRequest struct {
	Kinds []process.Kind `json:"kinds"`
}

func (s *Server) merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	queued, err := s.Merger.Trigger(req.Kinds...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, map[string]any{"queuedCount": len(queued), "queued": queued})
}

type dayInfo struct {
	Date        string `json:"date"`
	HasDaily    bool   `json:"hasDaily"`
	HasDaylight bool   `json:"hasDaylight"`
}

func (s *Server) listDays(w http.ResponseWriter, r *http.Request) {
	days := s.Captures.ListDays(r.Context())
	videos, err := s.Videos.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	have := make(map[process.Kind]map[string]bool)
	for _, v := range videos {
		if have[v.Kind] == nil {
			have[v.Kind] = make(map[string]bool)
		}
		have[v.Kind][v.Date] = v.Size > 0
	}
	out := make([]dayInfo, 0, len(days))
	for _, d := range days {
		out = append(out, dayInfo{
			Date:        d,
			HasDaily:    have[process.KindDaily][d],
			HasDaylight: have[process.KindDaylight][d],
		})
	}
	s.respond(w, r, http.StatusOK, out)
}

func (s *Server) getDay(w http.ResponseWriter, r *http.Request) {
	caps, err := s.Captures.ListCaptures(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if caps == nil {
		caps = []capture.Capture{}
	}
	s.respond(w, r, http.StatusOK, caps)
}

func (s *Server) deleteDay(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	n, err := s.Captures.DeleteDay(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Logger.Info("deleted capture day", "date", date, "deleted", n)
	s.respond(w, r, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) getCapture(w http.ResponseWriter, r *http.Request) {
	data, format, err := s.Captures.Open(r.Context(), chi.URLParam(r, "date"), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func (s *Server) deleteCapture(w http.ResponseWriter, r *http.Request) {
	n, err := s.Captures.Delete(r.Context(), chi.URLParam(r, "date"), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if n == 0 {
		s.fail(w, r, capture.ErrNotFound)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) listVideos(w http.ResponseWriter, r *http.Request) {
	vs, err := s.Videos.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if vs == nil {
		vs = []artifact.Video{}
	}
	s.respond(w, r, http.StatusOK, vs)
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	v, path, err := s.Videos.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = artifact.ErrNotFound
		}
		s.fail(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, v.Name, v.ModTime, f)
}

func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Videos.Delete(name); err != nil {
		s.fail(w, r, err)
		return
	}
	s.Logger.Info("deleted video", "name", name)
	w.WriteHeader(http.StatusNoContent)
}
