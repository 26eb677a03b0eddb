package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps captures as <root>/<day>/<HH-MM-SS>.<ext>, with the
// optional weather snapshot in a <HH-MM-SS>.json sidecar.
type FileStore struct {
	root   string
	logger *slog.Logger
}

// NewFileStore initializes a FileStore rooted at root.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("capture: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("capture: ensure root: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{root: root, logger: logger}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) ListDays(ctx context.Context) []string {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("list capture days failed", "root", s.root, "err", err)
		return nil
	}

	days := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || ValidateDay(e.Name()) != nil {
			continue
		}
		if s.hasCaptures(e.Name()) {
			days = append(days, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days
}

func (s *FileStore) hasCaptures(day string) bool {
	entries, err := os.ReadDir(filepath.Join(s.root, day))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if _, _, err := ParseName(e.Name()); err == nil && !e.IsDir() {
			return true
		}
	}
	return false
}

func (s *FileStore) ListCaptures(ctx context.Context, day string) ([]Capture, error) {
	if err := ValidateDay(day); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, day)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read day %s: %w", day, err)
	}

	captures := make([]Capture, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		timeOfDay, format, err := ParseName(e.Name())
		if err != nil {
			continue
		}
		c := Capture{Day: day, Time: timeOfDay, Name: e.Name(), Format: format}
		if info, err := e.Info(); err == nil {
			c.Size = info.Size()
		}
		c.Weather = s.readWeather(dir, e.Name())
		captures = append(captures, c)
	}

	sort.Slice(captures, func(i, j int) bool {
		a, b := captures[i], captures[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if ca, cb := canonical(a), canonical(b); ca != cb {
			return ca
		}
		return a.Name < b.Name
	})
	return s.dedupe(captures), nil
}

// canonical reports whether c is stored under the HH-MM-SS name NameFor
// would give it.
func canonical(c Capture) bool {
	name, err := NameFor(c.Time, c.Format)
	return err == nil && name == c.Name
}

// dedupe keeps one capture per time of day. Legacy HH-MM names collide
// with HH-MM-00 ones; the first in sort order wins.
func (s *FileStore) dedupe(sorted []Capture) []Capture {
	out := sorted[:0]
	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].Time == c.Time {
			s.logger.Warn("ignoring duplicate capture", "day", c.Day, "time", c.Time, "name", c.Name, "kept", out[n-1].Name)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *FileStore) readWeather(dir, name string) []Weather {
	data, err := os.ReadFile(filepath.Join(dir, sidecarName(name)))
	if err != nil {
		return nil
	}
	var w []Weather
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.Warn("ignoring unreadable weather sidecar", "dir", dir, "name", name, "err", err)
		return nil
	}
	return w
}

// Path resolves a capture to its file on disk.
func (s *FileStore) Path(day, name string) (string, error) {
	if err := ValidateDay(day); err != nil {
		return "", err
	}
	if _, _, err := ParseName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, day, name), nil
}

func (s *FileStore) Open(ctx context.Context, day, name string) ([]byte, Format, error) {
	path, err := s.Path(day, name)
	if err != nil {
		return nil, "", err
	}
	_, format, _ := ParseName(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s/%s", ErrNotFound, day, name)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read capture %s/%s: %w", day, name, err)
	}
	return data, format, nil
}

func (s *FileStore) Put(ctx context.Context, c Capture, data []byte) error {
	if err := ValidateDay(c.Day); err != nil {
		return err
	}
	name, err := NameFor(c.Time, c.Format)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.root, c.Day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create day dir: %w", err)
	}
	if s.timeTaken(dir, c.Time) {
		return fmt.Errorf("%w: %s %s", ErrExists, c.Day, c.Time)
	}

	if len(c.Weather) > 0 {
		meta, err := json.Marshal(c.Weather)
		if err != nil {
			return fmt.Errorf("encode weather: %w", err)
		}
		if err := writeFileAtomic(filepath.Join(dir, sidecarName(name)), meta); err != nil {
			return err
		}
	}
	return writeFileAtomic(filepath.Join(dir, name), data)
}

// timeTaken enforces one capture per (day, time of day) across formats and
// name variants.
func (s *FileStore) timeTaken(dir, timeOfDay string) bool {
	want, err := NormalizeTime(timeOfDay)
	if err != nil {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if got, _, err := ParseName(e.Name()); err == nil && !e.IsDir() && got == want {
			return true
		}
	}
	return false
}

func (s *FileStore) Delete(ctx context.Context, day, name string) (int, error) {
	path, err := s.Path(day, name)
	if err != nil {
		return 0, err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("delete capture %s/%s: %w", day, name, err)
	}
	_ = os.Remove(filepath.Join(s.root, day, sidecarName(name)))
	return 1, nil
}

func (s *FileStore) DeleteDay(ctx context.Context, day string) (int, error) {
	captures, err := s.ListCaptures(ctx, day)
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(filepath.Join(s.root, day)); err != nil {
		return 0, fmt.Errorf("delete day %s: %w", day, err)
	}
	return len(captures), nil
}

func sidecarName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".json"
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
