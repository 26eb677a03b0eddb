// Package capture stores timestamped webcam images grouped by calendar day.
package capture

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("capture not found")
	ErrExists      = errors.New("capture already exists")
	ErrInvalidName = errors.New("invalid capture name")
	ErrInvalidDay  = errors.New("invalid day")
)

const dayLayout = "2006-01-02"

// Format is the encoded image type of a capture.
type Format string

const (
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
)

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Weather is the sun/weather snapshot recorded for one named location at
// capture time. Sunrise and Sunset are kept as the provider reported them.
type Weather struct {
	Location    string   `json:"location"`
	Temperature *float64 `json:"temperature,omitempty"`
	Sunrise     string   `json:"sunrise,omitempty"`
	Sunset      string   `json:"sunset,omitempty"`
	DayLength   string   `json:"day_length,omitempty"`
}

// Capture is the metadata of one stored image. Time is zero-padded
// HH:MM:SS so captures of a day sort chronologically as strings.
type Capture struct {
	Day     string    `json:"day"`
	Time    string    `json:"time"`
	Name    string    `json:"name"`
	Format  Format    `json:"format"`
	Size    int64     `json:"size"`
	Weather []Weather `json:"weather,omitempty"`
}

// Store is the read/delete surface the video pipeline needs from capture
// storage, plus Put for the capture producer.
type Store interface {
	// ListDays returns days holding at least one capture, most recent first.
	// Storage failures are logged and reported as no days.
	ListDays(ctx context.Context) []string
	// ListCaptures returns a day's captures ascending by time of day.
	ListCaptures(ctx context.Context, day string) ([]Capture, error)
	Open(ctx context.Context, day, name string) ([]byte, Format, error)
	Put(ctx context.Context, c Capture, data []byte) error
	Delete(ctx context.Context, day, name string) (int, error)
	DeleteDay(ctx context.Context, day string) (int, error)
}

// PathResolver is implemented by stores whose captures already live on the
// local filesystem, so frames can be handed to the encoder without copying.
type PathResolver interface {
	Path(day, name string) (string, error)
}

var nameRe = regexp.MustCompile(`^([01][0-9]|2[0-3])-([0-5][0-9])(?:-([0-5][0-9]))?\.(jpg|jpeg|png)$`)

// ValidateDay rejects anything that is not a zero-padded YYYY-MM-DD key.
func ValidateDay(day string) error {
	t, err := time.Parse(dayLayout, day)
	if err != nil || t.Format(dayLayout) != day {
		return fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return nil
}

// ParseName splits a capture filename such as 13-05-00.jpg into its
// HH:MM:SS time of day and format.
func ParseName(name string) (string, Format, error) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	sec := m[3]
	if sec == "" {
		sec = "00"
	}
	format := FormatJPEG
	if m[4] == "png" {
		format = FormatPNG
	}
	return m[1] + ":" + m[2] + ":" + sec, format, nil
}

// NameFor returns the canonical filename for a time of day.
func NameFor(timeOfDay string, format Format) (string, error) {
	t, err := NormalizeTime(timeOfDay)
	if err != nil {
		return "", err
	}
	if format == "" {
		format = FormatJPEG
	}
	return strings.ReplaceAll(t, ":", "-") + "." + string(format), nil
}

// NormalizeTime turns HH:MM or HH:MM:SS into zero-padded HH:MM:SS.
func NormalizeTime(s string) (string, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("%w: time %q", ErrInvalidName, s)
}
