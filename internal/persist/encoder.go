package persist

import (
	"image/jpeg"
	"io"

	"github.com/smazurov/photostation/internal/frame"
)

// DefaultQuality is the JPEG quality used for saved captures.
const DefaultQuality = 92

// Encoder turns a frame into image bytes.
type Encoder interface {
	Encode(w io.Writer, f *frame.Frame) error
	// Ext is the file extension including the dot, e.g. ".jpg".
	Ext() string
}

// JPEGEncoder encodes frames as baseline JPEG.
type JPEGEncoder struct {
	Quality int
}

// NewJPEGEncoder returns an encoder at DefaultQuality.
func NewJPEGEncoder() JPEGEncoder {
	return JPEGEncoder{Quality: DefaultQuality}
}

func (e JPEGEncoder) Encode(w io.Writer, f *frame.Frame) error {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = DefaultQuality
	}
	return jpeg.Encode(w, f.Image(), &jpeg.Options{Quality: q})
}

func (e JPEGEncoder) Ext() string { return ".jpg" }
