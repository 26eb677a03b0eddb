// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/lukas-pastva/web-spain-sub000/internal/daylight"
)

type Config struct {
	DataDir   string
	ImagesDir string
	VideosDir string
	TempDir   string

	CaptureBackend string
	DatabaseURL    string

	HTTPAddr string

	FFmpegPath    string
	FFprobePath   string
	FrameRate     int
	FrameDuration time.Duration
	EncodeTimeout time.Duration

	DefaultSunrise   string
	DefaultSunset    string
	DaylightLocation string

	OverlayEnabled bool
	OverlayWidth   int

	ScanInterval  time.Duration
	MergeInterval time.Duration
	ScanOnStart   bool
	ScanSkipToday bool

	NATSURL        string
	EventsSubject  string
	RequestSubject string

	LogLevel  string
	LogFormat string
}

// LoadDotenv reads .env files into the environment, ignoring missing files.
func LoadDotenv(files ...string) {
	_ = godotenv.Load(files...)
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	dataDir := getenv("DATA_DIR", "./data")
	cfg := Config{
		DataDir:          dataDir,
		ImagesDir:        getenv("IMAGES_DIR", filepath.Join(dataDir, "images")),
		VideosDir:        getenv("VIDEOS_DIR", filepath.Join(dataDir, "videos")),
		TempDir:          getenv("TEMP_DIR", filepath.Join(dataDir, "tmp")),
		CaptureBackend:   strings.ToLower(getenv("CAPTURE_BACKEND", "fs")),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		FFmpegPath:       getenv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getenv("FFPROBE_PATH", "ffprobe"),
		DefaultSunrise:   getenv("DAYLIGHT_DEFAULT_SUNRISE", "06:00"),
		DefaultSunset:    getenv("DAYLIGHT_DEFAULT_SUNSET", "20:00"),
		DaylightLocation: getenv("DAYLIGHT_LOCATION", ""),
		NATSURL:          getenv("NATS_URL", ""),
		EventsSubject:    getenv("EVENTS_SUBJECT", "timelapse.jobs.events"),
		RequestSubject:   getenv("REQUEST_SUBJECT", "timelapse.jobs.requests"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.FrameRate, err = parsePositiveInt(getenv("FRAME_RATE", "25"), "FRAME_RATE"); err != nil {
		return Config{}, err
	}
	if cfg.OverlayWidth, err = parsePositiveInt(getenv("OVERLAY_WIDTH", "1280"), "OVERLAY_WIDTH"); err != nil {
		return Config{}, err
	}
	if cfg.FrameDuration, err = parseDuration(getenv("FRAME_DURATION", "40ms"), "FRAME_DURATION"); err != nil {
		return Config{}, err
	}
	if cfg.EncodeTimeout, err = parseDuration(getenv("ENCODE_TIMEOUT", "30m"), "ENCODE_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.ScanInterval, err = parseDuration(getenv("SCAN_INTERVAL", "1h"), "SCAN_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.MergeInterval, err = parseDuration(getenv("MERGE_INTERVAL", "24h"), "MERGE_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.OverlayEnabled, err = parseBool(getenv("OVERLAY_ENABLED", "false"), "OVERLAY_ENABLED"); err != nil {
		return Config{}, err
	}
	if cfg.ScanOnStart, err = parseBool(getenv("SCAN_ON_START", "true"), "SCAN_ON_START"); err != nil {
		return Config{}, err
	}
	if cfg.ScanSkipToday, err = parseBool(getenv("SCAN_SKIP_TODAY", "false"), "SCAN_SKIP_TODAY"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.CaptureBackend {
	case "fs":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when CAPTURE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("CAPTURE_BACKEND must be fs or postgres (got %q)", c.CaptureBackend))
	}
	if _, err := c.DefaultWindow(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json (got %q)", c.LogFormat))
	}
	return errors.Join(errs...)
}

// DefaultWindow is the daylight window used for days without weather data.
func (c Config) DefaultWindow() (daylight.Window, error) {
	sunrise, err := daylight.ParseClock(c.DefaultSunrise)
	if err != nil {
		return daylight.Window{}, fmt.Errorf("invalid DAYLIGHT_DEFAULT_SUNRISE: %w", err)
	}
	sunset, err := daylight.ParseClock(c.DefaultSunset)
	if err != nil {
		return daylight.Window{}, fmt.Errorf("invalid DAYLIGHT_DEFAULT_SUNSET: %w", err)
	}
	if sunrise >= sunset {
		return daylight.Window{}, fmt.Errorf("DAYLIGHT_DEFAULT_SUNRISE %s must be before DAYLIGHT_DEFAULT_SUNSET %s", sunrise, sunset)
	}
	return daylight.Window{Sunrise: sunrise, Sunset: sunset}, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := cast.ToIntE(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

// parseDuration requires a unit so "40" is not silently read as nanoseconds.
// Zero is allowed and disables interval triggers.
func parseDuration(value string, name string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "0" {
		return 0, nil
	}
	if _, err := cast.ToFloat64E(value); err == nil {
		return 0, fmt.Errorf("invalid %s: %q needs a unit such as s, m or h", name, value)
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %s)", name, d)
	}
	return d, nil
}

func parseBool(value string, name string) (bool, error) {
	v, err := cast.ToBoolE(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
