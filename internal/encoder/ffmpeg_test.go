package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const fakeFFmpeg = `#!/bin/sh
out=""
manifest=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then manifest="$a"; fi
  prev="$a"
  out="$a"
done
if [ -n "$FAKE_FFMPEG_MANIFEST" ]; then cp "$manifest" "$FAKE_FFMPEG_MANIFEST"; fi
if [ -n "$FAKE_FFMPEG_ARGS" ]; then echo "$@" > "$FAKE_FFMPEG_ARGS"; fi
case "$FAKE_FFMPEG_MODE" in
  fail) printf 'junk' > "$out"; echo "simulated failure" >&2; exit 1 ;;
  empty) : > "$out"; exit 0 ;;
  sleep) exec sleep 5 ;;
esac
printf 'fake-video' > "$out"
`

// newFake writes a stand-in ffmpeg script and returns an encoder using it.
func newFake(t *testing.T) *FFmpegEncoder {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg needs a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte(fakeFFmpeg), 0o755); err != nil {
		t.Fatal(err)
	}
	return NewFFmpegEncoder(Options{
		Binary:        bin,
		FrameDuration: 40 * time.Millisecond,
		TempDir:       t.TempDir(),
	})
}

func TestBuildFromFramesWritesOutput(t *testing.T) {
	enc := newFake(t)
	dir := t.TempDir()
	manifestCopy := filepath.Join(dir, "manifest.txt")
	t.Setenv("FAKE_FFMPEG_MANIFEST", manifestCopy)

	frames := []string{"/frames/06-00-00.jpg", "/frames/06-05-00.jpg"}
	out := filepath.Join(dir, "videos", "2024-01-01.mp4")
	if err := enc.BuildFromFrames(context.Background(), frames, out); err != nil {
		t.Fatalf("BuildFromFrames: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "fake-video" {
		t.Fatalf("unexpected output %q", data)
	}
	if _, err := os.Stat(partialPath(out)); !os.IsNotExist(err) {
		t.Fatalf("partial file should be gone, stat err = %v", err)
	}

	manifest, err := os.ReadFile(manifestCopy)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	want := "ffconcat version 1.0\n" +
		"file '/frames/06-00-00.jpg'\nduration 0.04\n" +
		"file '/frames/06-05-00.jpg'\nduration 0.04\n" +
		"file '/frames/06-05-00.jpg'\n"
	if string(manifest) != want {
		t.Fatalf("manifest mismatch:\n%s\nwant:\n%s", manifest, want)
	}
}

func TestBuildFromFramesUsesLibx264(t *testing.T) {
	enc := newFake(t)
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("FAKE_FFMPEG_ARGS", argsFile)

	out := filepath.Join(t.TempDir(), "a.mp4")
	if err := enc.BuildFromFrames(context.Background(), []string{"/f/1.jpg"}, out); err != nil {
		t.Fatalf("BuildFromFrames: %v", err)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"-c:v libx264", "-pix_fmt yuv420p", "-r 25", "-f concat", "-vf scale=trunc(iw/2)*2:trunc(ih/2)*2"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestConcatenateCopiesStreams(t *testing.T) {
	enc := newFake(t)
	dir := t.TempDir()
	manifestCopy := filepath.Join(dir, "manifest.txt")
	argsFile := filepath.Join(dir, "args")
	t.Setenv("FAKE_FFMPEG_MANIFEST", manifestCopy)
	t.Setenv("FAKE_FFMPEG_ARGS", argsFile)

	out := filepath.Join(dir, "combined_24h.mp4")
	videos := []string{"/v/2024-01-01.mp4", "/v/it's.mp4"}
	if err := enc.Concatenate(context.Background(), videos, out); err != nil {
		t.Fatalf("Concatenate: %v", err)
	}

	manifest, _ := os.ReadFile(manifestCopy)
	want := "ffconcat version 1.0\nfile '/v/2024-01-01.mp4'\nfile '/v/it'\\''s.mp4'\n"
	if string(manifest) != want {
		t.Fatalf("manifest mismatch:\n%s\nwant:\n%s", manifest, want)
	}
	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "-c copy") {
		t.Fatalf("concatenation should copy streams, args: %s", args)
	}
}

func TestFailureLeavesNoOutput(t *testing.T) {
	enc := newFake(t)
	t.Setenv("FAKE_FFMPEG_MODE", "fail")

	out := filepath.Join(t.TempDir(), "2024-01-01.mp4")
	err := enc.BuildFromFrames(context.Background(), []string{"/f/1.jpg"}, out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "simulated failure") {
		t.Fatalf("error should carry ffmpeg diagnostics: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output must not exist after failure, stat err = %v", err)
	}
	if _, err := os.Stat(partialPath(out)); !os.IsNotExist(err) {
		t.Fatalf("partial must be removed after failure, stat err = %v", err)
	}
}

func TestFailureKeepsPreviousOutput(t *testing.T) {
	enc := newFake(t)
	t.Setenv("FAKE_FFMPEG_MODE", "fail")

	out := filepath.Join(t.TempDir(), "combined_24h.mp4")
	if err := os.WriteFile(out, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := enc.Concatenate(context.Background(), []string{"/v/a.mp4"}, out); err == nil {
		t.Fatal("expected error")
	}
	data, _ := os.ReadFile(out)
	if string(data) != "previous" {
		t.Fatalf("previous output was clobbered: %q", data)
	}
}

func TestEmptyOutputIsAnError(t *testing.T) {
	enc := newFake(t)
	t.Setenv("FAKE_FFMPEG_MODE", "empty")

	out := filepath.Join(t.TempDir(), "2024-01-01.mp4")
	err := enc.BuildFromFrames(context.Background(), []string{"/f/1.jpg"}, out)
	if !errors.Is(err, ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("empty output must not be published, stat err = %v", err)
	}
}

func TestTimeoutAbortsEncode(t *testing.T) {
	enc := newFake(t)
	enc.opts.Timeout = 200 * time.Millisecond
	t.Setenv("FAKE_FFMPEG_MODE", "sleep")

	out := filepath.Join(t.TempDir(), "2024-01-01.mp4")
	start := time.Now()
	err := enc.BuildFromFrames(context.Background(), []string{"/f/1.jpg"}, out)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout did not stop ffmpeg")
	}
}

func TestNoInput(t *testing.T) {
	enc := NewFFmpegEncoder(Options{})
	if err := enc.BuildFromFrames(context.Background(), nil, "x.mp4"); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	if err := enc.Concatenate(context.Background(), nil, "x.mp4"); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
}

func TestMissingBinaryIsUnavailable(t *testing.T) {
	enc := NewFFmpegEncoder(Options{Binary: filepath.Join(t.TempDir(), "no-such-ffmpeg")})
	err := enc.BuildFromFrames(context.Background(), []string{"/f/1.jpg"}, filepath.Join(t.TempDir(), "o.mp4"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestParseProbe(t *testing.T) {
	info := parseProbe("width=1280\nheight=720\nnb_read_packets=300\nduration=12.000000\nsize=482113\n")
	if info.Width != 1280 || info.Height != 720 || info.Frames != 300 || info.Duration != 12 || info.Size != 482113 {
		t.Fatalf("unexpected probe result %+v", info)
	}
}
