// cmd/encode-day builds a single time-lapse video synchronously, without the
// queue, scheduler or HTTP server.
//
// Usage:
//
//	./encode-day -date 2024-01-01
//	./encode-day -kind daylight -date 2024-01-01 -overlay
//	./encode-day -kind combined-24h
//	./encode-day -probe data/videos/2024-01-01.mp4
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/artifact"
	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
	"github.com/lukas-pastva/web-spain-sub000/internal/config"
	"github.com/lukas-pastva/web-spain-sub000/internal/encoder"
	"github.com/lukas-pastva/web-spain-sub000/internal/logging"
	"github.com/lukas-pastva/web-spain-sub000/internal/overlay"
	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/timelapse"
)

func main() {
	kindFlag := flag.String("kind", "daily", "Video kind: daily, daylight, combined-24h, combined-daylight")
	date := flag.String("date", "", "Capture day (YYYY-MM-DD), required for per-day kinds")
	probe := flag.String("probe", "", "Show metadata of an existing video and exit")
	withOverlay := flag.Bool("overlay", false, "Stamp date and time onto each frame")
	timeout := flag.Duration("timeout", 30*time.Minute, "Encoding timeout")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	config.LoadDotenv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := logging.New("debug", "text", logOut)

	enc := encoder.NewFFmpegEncoder(encoder.Options{
		Binary:        cfg.FFmpegPath,
		ProbeBinary:   cfg.FFprobePath,
		FrameRate:     cfg.FrameRate,
		FrameDuration: cfg.FrameDuration,
		Timeout:       *timeout,
		TempDir:       cfg.TempDir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *probe != "" {
		fmt.Println("\n📊 Video Metadata:")
		fmt.Println(strings.Repeat("-", 40))
		info, err := enc.Probe(ctx, *probe)
		if err != nil {
			log.Fatalf("❌ Failed to probe file: %v", err)
		}
		printVideoInfo(info)
		return
	}

	kind, day, err := process.Normalize(process.Kind(*kindFlag), *date)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		log.Fatalf("❌ Failed to create temp dir: %v", err)
	}
	captures, closeCaptures, err := capture.Open(ctx, cfg.CaptureBackend, cfg.ImagesDir, cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("❌ Failed to open captures: %v", err)
	}
	defer closeCaptures()

	window, err := cfg.DefaultWindow()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	opts := timelapse.Options{
		Location:      cfg.DaylightLocation,
		DefaultWindow: window,
		TempDir:       cfg.TempDir,
		Logger:        logger,
	}
	if *withOverlay || cfg.OverlayEnabled {
		opts.Stamper = overlay.New(cfg.OverlayWidth)
	}
	videos := artifact.NewStore(cfg.VideosDir, logger)
	gen := timelapse.NewGenerator(captures, videos, enc, opts)

	job := process.NewJob(kind, day, time.Now())
	fmt.Printf("\n🎬 Building %s...\n", job.Label())
	start := time.Now()

	res, err := gen.Handle(ctx, *job)
	if err != nil {
		log.Fatalf("❌ Encoding failed: %v", err)
	}
	if res.Skipped {
		fmt.Printf("\n⏭️  Skipped: %s\n\n", res.Reason)
		return
	}
	duration := time.Since(start)

	out := filepath.Join(videos.Dir(), res.Output)
	outputInfo, err := os.Stat(out)
	if err != nil {
		log.Fatalf("❌ Failed to read output file: %v", err)
	}

	fmt.Printf("\n✅ Encoding successful!\n")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("📁 Output: %s\n", out)
	fmt.Printf("🖼️  Inputs: %d\n", res.Items)
	fmt.Printf("📏 Size: %s\n", formatBytes(outputInfo.Size()))
	fmt.Printf("⏱️  Time: %v\n", duration.Round(time.Millisecond))

	if *verbose {
		if info, err := enc.Probe(ctx, out); err == nil {
			fmt.Println()
			printVideoInfo(info)
		}
	}
	fmt.Println()
}

func printVideoInfo(info *encoder.VideoInfo) {
	if info.Width > 0 && info.Height > 0 {
		fmt.Printf("Dimensions: %dx%d pixels\n", info.Width, info.Height)
	}
	if info.Duration > 0 {
		fmt.Printf("Duration: %.2f seconds (%s)\n", info.Duration, formatDuration(info.Duration))
	}
	if info.Frames > 0 {
		fmt.Printf("Frames: %d\n", info.Frames)
	}
	if info.Size > 0 {
		fmt.Printf("File Size: %s\n", formatBytes(info.Size))
	}
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats seconds into MM:SS format
func formatDuration(seconds float64) string {
	mins := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d", mins, secs)
}
