package config

import (
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "IMAGES_DIR", "VIDEOS_DIR", "TEMP_DIR", "CAPTURE_BACKEND", "DATABASE_URL",
		"HTTP_ADDR", "FFMPEG_PATH", "FFPROBE_PATH", "FRAME_RATE", "FRAME_DURATION", "ENCODE_TIMEOUT",
		"DAYLIGHT_DEFAULT_SUNRISE", "DAYLIGHT_DEFAULT_SUNSET", "DAYLIGHT_LOCATION",
		"OVERLAY_ENABLED", "OVERLAY_WIDTH", "SCAN_INTERVAL", "MERGE_INTERVAL", "SCAN_ON_START",
		"SCAN_SKIP_TODAY", "NATS_URL", "EVENTS_SUBJECT", "REQUEST_SUBJECT", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ImagesDir != filepath.Join("data", "images") || cfg.VideosDir != filepath.Join("data", "videos") {
		t.Fatalf("unexpected dirs: %s %s", cfg.ImagesDir, cfg.VideosDir)
	}
	if cfg.CaptureBackend != "fs" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected backend/addr: %s %s", cfg.CaptureBackend, cfg.HTTPAddr)
	}
	if cfg.FrameRate != 25 || cfg.FrameDuration != 40*time.Millisecond {
		t.Fatalf("unexpected frame settings: %d %s", cfg.FrameRate, cfg.FrameDuration)
	}
	if cfg.EventsSubject != "timelapse.jobs.events" || cfg.RequestSubject != "timelapse.jobs.requests" {
		t.Fatalf("unexpected subjects: %s %s", cfg.EventsSubject, cfg.RequestSubject)
	}
	if !cfg.ScanOnStart || cfg.OverlayEnabled || cfg.NATSURL != "" {
		t.Fatalf("unexpected toggles: %+v", cfg)
	}
	w, err := cfg.DefaultWindow()
	if err != nil || w.String() != "06:00:00-20:00:00" {
		t.Fatalf("unexpected default window %s, %v", w, err)
	}
}

func TestLoadDataDirDerivesSubdirs(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/srv/cam")
	t.Setenv("VIDEOS_DIR", "/mnt/videos")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ImagesDir != "/srv/cam/images" || cfg.VideosDir != "/mnt/videos" || cfg.TempDir != "/srv/cam/tmp" {
		t.Fatalf("unexpected dirs: %+v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"frame rate not a number", "FRAME_RATE", "fast"},
		{"frame rate zero", "FRAME_RATE", "0"},
		{"duration without unit", "FRAME_DURATION", "40"},
		{"negative interval", "SCAN_INTERVAL", "-1h"},
		{"bad bool", "OVERLAY_ENABLED", "maybe"},
		{"unknown backend", "CAPTURE_BACKEND", "s3"},
		{"postgres without url", "CAPTURE_BACKEND", "postgres"},
		{"bad sunrise", "DAYLIGHT_DEFAULT_SUNRISE", "dawn"},
		{"sunset before sunrise", "DAYLIGHT_DEFAULT_SUNSET", "05:00"},
		{"bad log format", "LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadZeroIntervalDisables(t *testing.T) {
	clearEnv(t)
	t.Setenv("MERGE_INTERVAL", "0")
	t.Setenv("SCAN_INTERVAL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MergeInterval != 0 || cfg.ScanInterval != 15*time.Minute {
		t.Fatalf("unexpected intervals: %s %s", cfg.MergeInterval, cfg.ScanInterval)
	}
}
