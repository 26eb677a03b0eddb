// Package artifact names and lists the videos the pipeline produces.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/process"
)

var (
	ErrNotFound    = errors.New("artifact: not found")
	ErrInvalidName = errors.New("artifact: invalid name")
)

const (
	ext              = ".mp4"
	daylightSuffix   = "_daylight"
	combined24hName  = "combined_24h" + ext
	combinedDaylight = "combined_daylight" + ext
)

// Video describes one file in the videos directory.
type Video struct {
	Name    string       `json:"name"`
	Kind    process.Kind `json:"kind"`
	Date    string       `json:"date,omitempty"`
	Size    int64        `json:"size"`
	ModTime time.Time    `json:"modTime"`
}

// Store maps job kinds and dates to files under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) Dir() string { return s.dir }

// Name returns the file name for kind and date. Combined kinds ignore date.
func Name(kind process.Kind, date string) (string, error) {
	switch kind {
	case process.KindDaily:
		if err := process.ValidateDate(date); err != nil {
			return "", err
		}
		return date + ext, nil
	case process.KindDaylight:
		if err := process.ValidateDate(date); err != nil {
			return "", err
		}
		return date + daylightSuffix + ext, nil
	case process.KindCombined24h:
		return combined24hName, nil
	case process.KindCombinedDaylight:
		return combinedDaylight, nil
	}
	return "", fmt.Errorf("%w: %q", process.ErrInvalidKind, kind)
}

// Parse is the inverse of Name.
func Parse(name string) (process.Kind, string, error) {
	switch name {
	case combined24hName:
		return process.KindCombined24h, "", nil
	case combinedDaylight:
		return process.KindCombinedDaylight, "", nil
	}
	base, ok := strings.CutSuffix(name, ext)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	kind := process.KindDaily
	if d, ok := strings.CutSuffix(base, daylightSuffix); ok {
		kind, base = process.KindDaylight, d
	}
	if process.ValidateDate(base) != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return kind, base, nil
}

// Path returns the absolute output location for kind and date.
func (s *Store) Path(kind process.Kind, date string) (string, error) {
	name, err := Name(kind, date)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Exists reports whether the artifact for kind and date is present and
// non-empty.
func (s *Store) Exists(kind process.Kind, date string) bool {
	p, err := s.Path(kind, date)
	if err != nil {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}

// List returns every recognised video, newest date first, combined videos
// last.
func (s *Store) List() ([]Video, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Video
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		kind, date, err := Parse(name)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.logger.Warn("stat video failed", "name", name, "err", err)
			continue
		}
		out = append(out, Video{Name: name, Kind: kind, Date: date, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if (out[i].Date == "") != (out[j].Date == "") {
			return out[j].Date == ""
		}
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListKind returns the non-empty videos of a per-day kind in ascending date
// order, which is the order they are concatenated in.
func (s *Store) ListKind(kind process.Kind) ([]Video, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Video
	for _, v := range all {
		if v.Kind == kind && v.Size > 0 {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Dates returns the set of dates that already have a non-empty kind video.
func (s *Store) Dates(kind process.Kind) (map[string]bool, error) {
	vs, err := s.ListKind(kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(vs))
	for _, v := range vs {
		out[v.Date] = true
	}
	return out, nil
}

// Get resolves a video by file name.
func (s *Store) Get(name string) (Video, string, error) {
	kind, date, err := Parse(name)
	if err != nil {
		return Video{}, "", err
	}
	p := filepath.Join(s.dir, name)
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Video{}, "", ErrNotFound
		}
		return Video{}, "", err
	}
	return Video{Name: name, Kind: kind, Date: date, Size: st.Size(), ModTime: st.ModTime()}, p, nil
}

// Delete removes a video by file name.
func (s *Store) Delete(name string) error {
	if _, _, err := Parse(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
