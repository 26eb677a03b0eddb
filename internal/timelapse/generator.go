// Package timelapse turns stored captures into daily, daylight and combined
// videos and decides which of them still need building.
package timelapse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lukas-pastva/web-spain-sub000/internal/artifact"
	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
	"github.com/lukas-pastva/web-spain-sub000/internal/daylight"
	"github.com/lukas-pastva/web-spain-sub000/internal/encoder"
	"github.com/lukas-pastva/web-spain-sub000/internal/overlay"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/queue"
)

// Stamper draws a caption onto an encoded frame.
type Stamper interface {
	Apply(src []byte, info overlay.Info) ([]byte, error)
}

type Options struct {
	// Stamper is optional; nil hands frames to the encoder untouched.
	Stamper Stamper
	// Location selects which weather entry supplies sunrise/sunset.
	Location      string
	DefaultWindow daylight.Window
	TempDir       string
	Logger        *slog.Logger
}

// Generator is the queue.Handler that builds one artifact per job.
type Generator struct {
	captures  capture.Store
	artifacts *artifact.Store
	encoder   encoder.Encoder
	opts      Options
	logger    *slog.Logger
}

func NewGenerator(captures capture.Store, artifacts *artifact.Store, enc encoder.Encoder, opts Options) *Generator {
	if opts.DefaultWindow == (daylight.Window{}) {
		opts.DefaultWindow = daylight.DefaultWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{captures: captures, artifacts: artifacts, encoder: enc, opts: opts, logger: logger}
}

// Handle dispatches a job to the routine for its kind.
func (g *Generator) Handle(ctx context.Context, job process.Job) (queue.Result, error) {
	switch job.Kind {
	case process.KindDaily:
		return g.Daily(ctx, job.Date)
	case process.KindDaylight:
		return g.Daylight(ctx, job.Date)
	case process.KindCombined24h, process.KindCombinedDaylight:
		return g.Combined(ctx, job.Kind)
	}
	return queue.Result{}, fmt.Errorf("%w: %q", process.ErrInvalidKind, job.Kind)
}

// Daily encodes every capture of date in time order.
func (g *Generator) Daily(ctx context.Context, date string) (queue.Result, error) {
	caps, err := g.captures.ListCaptures(ctx, date)
	if err != nil {
		return queue.Result{}, fmt.Errorf("list captures: %w", err)
	}
	if len(caps) == 0 {
		return skipped("no captures for " + date), nil
	}
	return g.build(ctx, process.KindDaily, date, caps)
}

// Daylight encodes the captures of date that fall inside its sunrise/sunset
// window.
func (g *Generator) Daylight(ctx context.Context, date string) (queue.Result, error) {
	caps, err := g.captures.ListCaptures(ctx, date)
	if err != nil {
		return queue.Result{}, fmt.Errorf("list captures: %w", err)
	}
	w, src := daylight.ResolveWindow(caps, g.opts.Location, g.opts.DefaultWindow)
	selected := daylight.Select(caps, w.Sunrise, w.Sunset)
	g.logger.Info("daylight window resolved", "date", date, "window", w.String(), "source", src, "captures", len(caps), "selected", len(selected))
	if len(selected) == 0 {
		return skipped("no daylight captures for " + date), nil
	}
	return g.build(ctx, process.KindDaylight, date, selected)
}

// Combined concatenates every per-day video of the source kind, oldest first.
func (g *Generator) Combined(ctx context.Context, kind process.Kind) (queue.Result, error) {
	videos, err := g.artifacts.ListKind(kind.Source())
	if err != nil {
		return queue.Result{}, fmt.Errorf("list videos: %w", err)
	}
	if len(videos) == 0 {
		return skipped("no " + string(kind.Source()) + " videos to combine"), nil
	}
	inputs := make([]string, len(videos))
	for i, v := range videos {
		inputs[i] = filepath.Join(g.artifacts.Dir(), v.Name)
	}
	out, err := g.artifacts.Path(kind, "")
	if err != nil {
		return queue.Result{}, err
	}
	if err := g.encoder.Concatenate(ctx, inputs, out); err != nil {
		return queue.Result{}, fmt.Errorf("concatenate %d videos: %w", len(inputs), err)
	}
	return queue.Result{Output: filepath.Base(out), Items: len(inputs)}, nil
}

func (g *Generator) build(ctx context.Context, kind process.Kind, date string, caps []capture.Capture) (queue.Result, error) {
	out, err := g.artifacts.Path(kind, date)
	if err != nil {
		return queue.Result{}, err
	}

	dir, err := os.MkdirTemp(g.opts.TempDir, "frames-*")
	if err != nil {
		return queue.Result{}, fmt.Errorf("create frame dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			g.logger.Warn("cleanup failed", "dir", dir, "err", err)
		}
	}()

	frames, err := g.frames(ctx, dir, caps)
	if err != nil {
		return queue.Result{}, err
	}
	if len(frames) == 0 {
		return skipped("no readable captures for " + date), nil
	}
	if err := g.encoder.BuildFromFrames(ctx, frames, out); err != nil {
		return queue.Result{}, fmt.Errorf("encode %d frames: %w", len(frames), err)
	}
	return queue.Result{Output: filepath.Base(out), Items: len(frames)}, nil
}

// frames resolves each capture to a file the encoder can read. Unreadable
// captures are left out; a failed overlay keeps the original image.
func (g *Generator) frames(ctx context.Context, dir string, caps []capture.Capture) ([]string, error) {
	resolver, direct := g.captures.(capture.PathResolver)
	direct = direct && g.opts.Stamper == nil

	out := make([]string, 0, len(caps))
	for i, c := range caps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if direct {
			p, err := resolver.Path(c.Day, c.Name)
			if err == nil {
				out = append(out, p)
				continue
			}
			g.logger.Warn("resolve capture failed", "day", c.Day, "name", c.Name, "err", err)
			continue
		}

		data, format, err := g.captures.Open(ctx, c.Day, c.Name)
		if err != nil {
			if errors.Is(err, capture.ErrNotFound) {
				g.logger.Warn("capture vanished", "day", c.Day, "name", c.Name)
			} else {
				g.logger.Warn("read capture failed", "day", c.Day, "name", c.Name, "err", err)
			}
			continue
		}
		if g.opts.Stamper != nil {
			stamped, err := g.opts.Stamper.Apply(data, g.caption(c))
			if err != nil {
				g.logger.Warn("overlay failed, using original frame", "day", c.Day, "name", c.Name, "err", err)
			} else {
				data, format = stamped, capture.FormatJPEG
			}
		}
		p := filepath.Join(dir, fmt.Sprintf("%06d.%s", i, format))
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, fmt.Errorf("write frame: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Generator) caption(c capture.Capture) overlay.Info {
	info := overlay.Info{Day: c.Day, Time: c.Time}
	for _, w := range c.Weather {
		if g.opts.Location == "" || strings.EqualFold(w.Location, g.opts.Location) {
			info.Location = w.Location
			info.Temperature = w.Temperature
			break
		}
	}
	return info
}

func skipped(reason string) queue.Result {
	return queue.Result{Skipped: true, Reason: reason}
}
