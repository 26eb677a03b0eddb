// internal/encoder/ffmpeg.go
package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Options configures FFmpegEncoder. Zero values fall back to defaults.
type Options struct {
	Binary        string
	ProbeBinary   string
	FrameRate     int
	FrameDuration time.Duration
	Timeout       time.Duration
	CRF           int
	Preset        string
	TempDir       string
}

const (
	defaultFrameRate     = 25
	defaultFrameDuration = 40 * time.Millisecond
	defaultCRF           = 23
	defaultPreset        = "veryfast"
	maxDiagnostic        = 4096
)

// FFmpegEncoder encodes with ffmpeg's concat demuxer and libx264.
type FFmpegEncoder struct {
	opts Options
}

// NewFFmpegEncoder creates an encoder with opts applied over the defaults.
func NewFFmpegEncoder(opts Options) *FFmpegEncoder {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.ProbeBinary == "" {
		opts.ProbeBinary = "ffprobe"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = defaultFrameRate
	}
	if opts.FrameDuration <= 0 {
		opts.FrameDuration = defaultFrameDuration
	}
	if opts.CRF <= 0 {
		opts.CRF = defaultCRF
	}
	if opts.Preset == "" {
		opts.Preset = defaultPreset
	}
	return &FFmpegEncoder{opts: opts}
}

// Name returns the encoder name
func (f *FFmpegEncoder) Name() string {
	return "ffmpeg"
}

// Available reports whether the ffmpeg binary can be resolved.
func (f *FFmpegEncoder) Available() error {
	if _, err := exec.LookPath(f.opts.Binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, f.opts.Binary, err)
	}
	return nil
}

// BuildFromFrames encodes frames, in order, into an H.264 MP4 at output.
// Each frame is shown for FrameDuration.
func (f *FFmpegEncoder) BuildFromFrames(ctx context.Context, frames []string, output string) error {
	if len(frames) == 0 {
		return ErrNoInput
	}
	manifest, err := f.writeManifest(frames, true)
	if err != nil {
		return err
	}
	defer os.Remove(manifest)

	return f.run(ctx, output, func(partial string) []string {
		// -f concat: read the manifest with per-frame durations
		// -r: constant output frame rate
		// -vf scale: yuv420p needs even width and height
		// -pix_fmt yuv420p: widest player compatibility
		// -movflags +faststart: moov atom up front for streaming
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "concat", "-safe", "0",
			"-i", manifest,
			"-r", strconv.Itoa(f.opts.FrameRate),
			"-vf", evenScale,
			"-c:v", "libx264",
			"-preset", f.opts.Preset,
			"-crf", strconv.Itoa(f.opts.CRF),
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
			"-f", "mp4",
			"-y", partial,
		}
	})
}

// evenScale rounds odd frame sizes down by one pixel.
const evenScale = "scale=trunc(iw/2)*2:trunc(ih/2)*2"

// Concatenate joins videos, in order, into output without re-encoding.
// All inputs must share codec parameters.
func (f *FFmpegEncoder) Concatenate(ctx context.Context, videos []string, output string) error {
	if len(videos) == 0 {
		return ErrNoInput
	}
	manifest, err := f.writeManifest(videos, false)
	if err != nil {
		return err
	}
	defer os.Remove(manifest)

	return f.run(ctx, output, func(partial string) []string {
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "concat", "-safe", "0",
			"-i", manifest,
			"-c", "copy",
			"-movflags", "+faststart",
			"-f", "mp4",
			"-y", partial,
		}
	})
}

// run executes ffmpeg into a hidden partial file next to output and renames
// it into place only after a clean exit with a non-empty result.
func (f *FFmpegEncoder) run(ctx context.Context, output string, args func(partial string) []string) error {
	if err := f.Available(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	partial := partialPath(output)
	defer os.Remove(partial)

	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.opts.Binary, args(partial)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg aborted: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, truncate(out))
	}

	st, err := os.Stat(partial)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: ffmpeg produced no file", ErrEmptyOutput)
		}
		return fmt.Errorf("stat output: %w", err)
	}
	if st.Size() == 0 {
		return ErrEmptyOutput
	}
	if err := os.Rename(partial, output); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// writeManifest writes an ffconcat file listing paths. With durations, the
// last entry is repeated so the concat demuxer honours its duration.
func (f *FFmpegEncoder) writeManifest(paths []string, durations bool) (string, error) {
	tmp, err := os.CreateTemp(f.opts.TempDir, "ffconcat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create manifest: %w", err)
	}
	defer tmp.Close()

	if _, err := tmp.WriteString(Manifest(paths, durations, f.opts.FrameDuration)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return tmp.Name(), nil
}

// Manifest renders an ffconcat manifest for paths. Relative paths are made
// absolute since the demuxer resolves them against the manifest location.
func Manifest(paths []string, durations bool, frame time.Duration) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	d := strconv.FormatFloat(frame.Seconds(), 'f', -1, 64)
	for _, p := range paths {
		fmt.Fprintf(&b, "file %s\n", quote(p))
		if durations {
			fmt.Fprintf(&b, "duration %s\n", d)
		}
	}
	if durations {
		fmt.Fprintf(&b, "file %s\n", quote(paths[len(paths)-1]))
	}
	return b.String()
}

func quote(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

func partialPath(output string) string {
	return filepath.Join(filepath.Dir(output), "."+filepath.Base(output)+".partial")
}

func truncate(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxDiagnostic {
		return "..." + s[len(s)-maxDiagnostic:]
	}
	return s
}

// Probe returns metadata about an encoded video.
func (f *FFmpegEncoder) Probe(ctx context.Context, input string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, f.opts.ProbeBinary,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,nb_read_packets",
		"-show_entries", "format=size,duration",
		"-of", "default=noprint_wrappers=1",
		input,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, truncate(output))
	}
	return parseProbe(string(output)), nil
}

func parseProbe(output string) *VideoInfo {
	info := &VideoInfo{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			info.Width, _ = strconv.Atoi(value)
		case "height":
			info.Height, _ = strconv.Atoi(value)
		case "nb_read_packets":
			info.Frames, _ = strconv.Atoi(value)
		case "duration":
			if d, err := strconv.ParseFloat(value, 64); err == nil {
				info.Duration = d
			}
		case "size":
			if s, err := strconv.ParseInt(value, 10, 64); err == nil {
				info.Size = s
			}
		}
	}
	return info
}
