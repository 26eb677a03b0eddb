// Package encoder turns ordered still frames into H.264 videos and joins
// existing videos, using an external ffmpeg binary.
package encoder

import (
	"context"
	"errors"
)

var (
	// ErrNoInput is returned when there is nothing to encode.
	ErrNoInput = errors.New("encoder: no input")
	// ErrUnavailable is returned when the encoder binary cannot be found.
	ErrUnavailable = errors.New("encoder: binary unavailable")
	// ErrEmptyOutput is returned when the encoder exits cleanly but leaves
	// a zero-length file.
	ErrEmptyOutput = errors.New("encoder: empty output")
)

// Encoder builds and joins videos. Implementations never leave a partial
// file at the output path: it either holds a complete, non-empty video or
// is untouched.
type Encoder interface {
	Name() string
	BuildFromFrames(ctx context.Context, frames []string, output string) error
	Concatenate(ctx context.Context, videos []string, output string) error
}

// VideoInfo is what Probe reports about an encoded file.
type VideoInfo struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
	Frames   int     `json:"frames"`
}
