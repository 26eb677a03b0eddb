// internal/overlay/overlay.go
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Info is the caption stamped onto a frame.
type Info struct {
	Day         string
	Time        string
	Location    string
	Temperature *float64
}

// Caption renders the single line drawn in the bar.
func (i Info) Caption() string {
	parts := []string{strings.TrimSpace(i.Day + " " + i.Time)}
	if i.Location != "" {
		parts = append(parts, i.Location)
	}
	if i.Temperature != nil {
		parts = append(parts, fmt.Sprintf("%.1fC", *i.Temperature))
	}
	return asciiOnly(strings.Join(parts, "  |  "))
}

// Stamper resizes frames and draws a caption bar along the bottom edge.
type Stamper struct {
	Width   int // target width; 0 keeps the source size
	Quality int
}

// New returns a Stamper producing frames width pixels wide.
func New(width int) *Stamper {
	return &Stamper{Width: width, Quality: 85}
}

// Apply decodes src, resizes it without upscaling, trims odd edges so both
// sides are even, draws the caption and re-encodes as JPEG.
func (s *Stamper) Apply(src []byte, info Info) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if s.Width > 0 && img.Bounds().Dx() > s.Width {
		img = imaging.Resize(img, s.Width, 0, imaging.Lanczos)
	}
	if b := img.Bounds(); b.Dx()%2 != 0 || b.Dy()%2 != 0 {
		img = imaging.CropAnchor(img, b.Dx()&^1, b.Dy()&^1, imaging.TopLeft)
	}

	canvas := imaging.Clone(img)
	drawCaption(canvas, info.Caption())

	q := s.Quality
	if q <= 0 {
		q = 85
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

const barPadding = 4

func drawCaption(dst *image.NRGBA, text string) {
	face := basicfont.Face7x13
	b := dst.Bounds()
	barHeight := face.Height + 2*barPadding
	if barHeight > b.Dy() {
		return
	}
	bar := image.Rect(b.Min.X, b.Max.Y-barHeight, b.Max.X, b.Max.Y)
	draw.Draw(dst, bar, image.NewUniform(color.NRGBA{A: 140}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(b.Min.X+barPadding*2, b.Max.Y-barPadding-face.Descent),
	}
	d.DrawString(text)
}

// basicfont only carries printable ASCII.
func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
