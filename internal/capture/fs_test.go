package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func put(t *testing.T, s *FileStore, day, timeOfDay string, weather ...Weather) {
	t.Helper()
	err := s.Put(context.Background(), Capture{Day: day, Time: timeOfDay, Format: FormatJPEG, Weather: weather}, []byte(day+" "+timeOfDay))
	if err != nil {
		t.Fatalf("Put %s %s: %v", day, timeOfDay, err)
	}
}

func TestListDaysDescendingAndNonEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	put(t, s, "2024-01-01", "12:00")
	put(t, s, "2024-01-03", "12:00")
	put(t, s, "2024-01-02", "12:00")

	if err := os.MkdirAll(filepath.Join(s.Root(), "2024-01-04"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(s.Root(), "not-a-day"), 0o755); err != nil {
		t.Fatal(err)
	}

	days := s.ListDays(ctx)
	want := []string{"2024-01-03", "2024-01-02", "2024-01-01"}
	if len(days) != len(want) {
		t.Fatalf("ListDays = %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("ListDays = %v, want %v", days, want)
		}
	}
}

func TestListDaysMissingRootIsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := os.RemoveAll(s.Root()); err != nil {
		t.Fatal(err)
	}
	if days := s.ListDays(context.Background()); len(days) != 0 {
		t.Fatalf("expected no days, got %v", days)
	}
}

func TestListCapturesAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	put(t, s, "2024-01-01", "20:00")
	put(t, s, "2024-01-01", "06:00")
	put(t, s, "2024-01-01", "12:30:15")

	captures, err := s.ListCaptures(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("ListCaptures: %v", err)
	}
	got := make([]string, len(captures))
	for i, c := range captures {
		got[i] = c.Time
	}
	want := []string{"06:00:00", "12:30:15", "20:00:00"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListCaptures times = %v, want %v", got, want)
		}
	}
	if captures[1].Name != "12-30-15.jpg" {
		t.Fatalf("unexpected name %q", captures[1].Name)
	}
}

func TestListCapturesUnknownDay(t *testing.T) {
	s := newTestStore(t)
	captures, err := s.ListCaptures(context.Background(), "2030-05-05")
	if err != nil {
		t.Fatalf("unknown day should not fail: %v", err)
	}
	if len(captures) != 0 {
		t.Fatalf("expected no captures, got %d", len(captures))
	}
}

func TestWeatherSidecarRoundTrip(t *testing.T) {
	s := newTestStore(t)
	temp := 18.5
	put(t, s, "2024-06-01", "09:00", Weather{Location: "Madrid", Temperature: &temp, Sunrise: "06:44", Sunset: "21:39"})

	captures, err := s.ListCaptures(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(captures) != 1 || len(captures[0].Weather) != 1 {
		t.Fatalf("expected one capture with weather, got %+v", captures)
	}
	w := captures[0].Weather[0]
	if w.Location != "Madrid" || w.Sunrise != "06:44" || w.Temperature == nil || *w.Temperature != 18.5 {
		t.Fatalf("weather not preserved: %+v", w)
	}
}

func TestPutRejectsDuplicateTime(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "2024-01-01", "12:00")
	err := s.Put(context.Background(), Capture{Day: "2024-01-01", Time: "12:00:00", Format: FormatPNG}, []byte("x"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestListCapturesOnePerTimeOfDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := filepath.Join(s.Root(), "2024-01-01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"13-05.jpg", "13-05-00.png", "14-00.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	captures, err := s.ListCaptures(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("ListCaptures: %v", err)
	}
	if len(captures) != 2 {
		t.Fatalf("expected 2 captures, got %+v", captures)
	}
	if captures[0].Time != "13:05:00" || captures[0].Name != "13-05-00.png" {
		t.Fatalf("canonical name should win, got %+v", captures[0])
	}
	if captures[1].Time != "14:00:00" || captures[1].Name != "14-00.jpg" {
		t.Fatalf("unexpected second capture %+v", captures[1])
	}

	err = s.Put(ctx, Capture{Day: "2024-01-01", Time: "14:00:00", Format: FormatJPEG}, []byte("x"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Put over a short-named capture: expected ErrExists, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	put(t, s, "2024-01-01", "12:00")

	data, format, err := s.Open(ctx, "2024-01-01", "12-00-00.jpg")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(data) != "2024-01-01 12:00" || format != FormatJPEG {
		t.Fatalf("unexpected payload %q %s", data, format)
	}

	if _, _, err := s.Open(ctx, "2024-01-01", "13-00-00.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTraversalRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.Open(ctx, "2024-01-01", "../../etc/passwd"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, _, err := s.Open(ctx, "../2024-01-01", "12-00-00.jpg"); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	if _, err := s.DeleteDay(ctx, ".."); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
}

func TestDeleteCountsMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	put(t, s, "2024-01-01", "10:00", Weather{Location: "Madrid", Sunrise: "08:00", Sunset: "18:00"})
	put(t, s, "2024-01-01", "11:00")
	put(t, s, "2024-01-01", "12:00")

	n, err := s.Delete(ctx, "2024-01-01", "10-00-00.jpg")
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v; want 1, nil", n, err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "2024-01-01", "10-00-00.json")); !os.IsNotExist(err) {
		t.Fatal("weather sidecar should be removed with its capture")
	}

	n, err = s.Delete(ctx, "2024-01-01", "10-00-00.jpg")
	if err != nil || n != 0 {
		t.Fatalf("second Delete = %d, %v; want 0, nil", n, err)
	}

	n, err = s.DeleteDay(ctx, "2024-01-01")
	if err != nil || n != 2 {
		t.Fatalf("DeleteDay = %d, %v; want 2, nil", n, err)
	}

	n, err = s.DeleteDay(ctx, "2024-01-01")
	if err != nil || n != 0 {
		t.Fatalf("DeleteDay on empty day = %d, %v; want 0, nil", n, err)
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name     string
		wantTime string
		wantFmt  Format
		wantErr  bool
	}{
		{"06-00-00.jpg", "06:00:00", FormatJPEG, false},
		{"23-59.png", "23:59:00", FormatPNG, false},
		{"07-15-30.jpeg", "07:15:30", FormatJPEG, false},
		{"24-00-00.jpg", "", "", true},
		{"06-00-00.gif", "", "", true},
		{"../06-00-00.jpg", "", "", true},
		{".06-00-00.jpg.123", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTime, gotFmt, err := ParseName(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotTime != tt.wantTime || gotFmt != tt.wantFmt {
				t.Fatalf("ParseName(%q) = %s %s, want %s %s", tt.name, gotTime, gotFmt, tt.wantTime, tt.wantFmt)
			}
		})
	}
}
