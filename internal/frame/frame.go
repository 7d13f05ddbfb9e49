// Package frame holds the decoded video frame type and the single-slot
// latest-wins buffer that hands frames from the capture goroutine to
// operator-driven code.
package frame

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// ErrInvalidFrame is returned when a frame's geometry and buffer disagree.
var ErrInvalidFrame = errors.New("invalid frame")

// PixelFormat identifies the memory layout of Frame.Pix.
type PixelFormat uint8

// Supported pixel formats.
const (
	FormatUnknown PixelFormat = iota
	FormatRGBA
	FormatGray
)

// BytesPerPixel returns the size of one pixel, or 0 for unknown formats.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case FormatRGBA:
		return 4
	case FormatGray:
		return 1
	default:
		return 0
	}
}

func (p PixelFormat) String() string {
	switch p {
	case FormatRGBA:
		return "rgba"
	case FormatGray:
		return "gray"
	default:
		return "unknown"
	}
}

// ParsePixelFormat maps an ffmpeg-style pixel format name to a PixelFormat.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgba":
		return FormatRGBA, nil
	case "gray", "grey", "gray8":
		return FormatGray, nil
	default:
		return FormatUnknown, fmt.Errorf("unsupported pixel format %q", s)
	}
}

// Frame is one decoded image from the live stream.
//
// A Frame is treated as immutable once it has been handed to a Buffer, a
// station slot, or a display sink. Code that needs to keep a frame across
// owners takes a Clone.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	Stride int
	Pix    []byte

	// Timestamp is when the device delivered the frame.
	Timestamp time.Time

	// Seq is assigned by Buffer.Publish and increases monotonically per buffer.
	Seq uint64
}

// New builds a frame over a private copy of pix with a tightly packed stride.
func New(width, height int, format PixelFormat, pix []byte) (*Frame, error) {
	f := &Frame{
		Width:     width,
		Height:    height,
		Format:    format,
		Stride:    width * format.BytesPerPixel(),
		Pix:       pix,
		Timestamp: time.Now(),
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

// Validate reports whether the frame's dimensions, stride and buffer length
// are mutually consistent.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	bpp := f.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: unknown pixel format", ErrInvalidFrame)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if f.Stride < f.Width*bpp {
		return fmt.Errorf("%w: stride %d shorter than row of %d bytes", ErrInvalidFrame, f.Stride, f.Width*bpp)
	}
	if want := f.Stride * f.Height; len(f.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d", ErrInvalidFrame, len(f.Pix), want)
	}
	return nil
}

// Clone returns an independent deep copy.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Pix = make([]byte, len(f.Pix))
	copy(c.Pix, f.Pix)
	return &c
}

// Size returns the frame dimensions as "WxH".
func (f *Frame) Size() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Image exposes the frame as an image.Image for encoders. The returned
// image aliases f.Pix and must be treated as read-only.
func (f *Frame) Image() image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case FormatGray:
		return &image.Gray{Pix: f.Pix, Stride: f.Stride, Rect: rect}
	default:
		return &image.RGBA{Pix: f.Pix, Stride: f.Stride, Rect: rect}
	}
}

// FromImage converts any image into an RGBA frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) || len(rgba.Pix) != rgba.Stride*b.Dy() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				rgba.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}
	f := &Frame{
		Width:     rgba.Rect.Dx(),
		Height:    rgba.Rect.Dy(),
		Format:    FormatRGBA,
		Stride:    rgba.Stride,
		Pix:       rgba.Pix,
		Timestamp: time.Now(),
	}
	return f.Clone()
}
