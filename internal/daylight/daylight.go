// Package daylight decides which captures of a day fall between sunrise and
// sunset.
package daylight

import (
	"fmt"
	"strings"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/capture"
)

// Clock is a time of day in seconds since midnight.
type Clock int

var clockLayouts = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM", "3:04:05PM", "3:04PM"}

// ParseClock accepts HH:MM, HH:MM:SS and the 12-hour forms weather
// providers report sunrise/sunset in.
func ParseClock(s string) (Clock, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("daylight: unrecognised time of day %q", s)
}

// MustClock is ParseClock for constants.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// Window is a sunrise/sunset pair for one day.
type Window struct {
	Sunrise Clock `json:"sunrise"`
	Sunset  Clock `json:"sunset"`
}

// DefaultWindow is used when a day has no usable weather metadata.
var DefaultWindow = Window{Sunrise: 6 * 3600, Sunset: 20 * 3600}

// Contains is inclusive at both ends. An inverted window contains nothing.
func (w Window) Contains(c Clock) bool {
	return w.Sunrise <= w.Sunset && w.Sunrise <= c && c <= w.Sunset
}

func (w Window) String() string {
	return w.Sunrise.String() + "-" + w.Sunset.String()
}

// Select keeps the captures whose time of day lies within [sunrise, sunset],
// preserving order. sunrise > sunset yields an empty result rather than
// wrapping past midnight.
func Select(captures []capture.Capture, sunrise, sunset Clock) []capture.Capture {
	w := Window{Sunrise: sunrise, Sunset: sunset}
	if w.Sunrise > w.Sunset {
		return nil
	}
	var out []capture.Capture
	for _, c := range captures {
		at, err := ParseClock(c.Time)
		if err != nil {
			continue
		}
		if w.Contains(at) {
			out = append(out, c)
		}
	}
	return out
}

// Source reports where a resolved window came from.
type Source string

const (
	SourceWeather Source = "weather"
	SourceDefault Source = "default"
)

// ResolveWindow takes the sun times from the most recent capture of the day
// that carries weather for location (any location when empty). Captures with
// unparseable sun times are passed over; fallback is returned when none
// qualify.
func ResolveWindow(captures []capture.Capture, location string, fallback Window) (Window, Source) {
	for i := len(captures) - 1; i >= 0; i-- {
		for _, w := range captures[i].Weather {
			if location != "" && !strings.EqualFold(w.Location, location) {
				continue
			}
			sunrise, err := ParseClock(w.Sunrise)
			if err != nil {
				continue
			}
			sunset, err := ParseClock(w.Sunset)
			if err != nil {
				continue
			}
			return Window{Sunrise: sunrise, Sunset: sunset}, SourceWeather
		}
	}
	return fallback, SourceDefault
}
