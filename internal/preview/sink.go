// Package preview is the live display sink. It keeps the latest frame for
// HTTP previews and wakes MJPEG viewers when a new one arrives.
package preview

import (
	"bytes"
	"sync"

	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/persist"
)

// DefaultQuality is the JPEG quality of preview images. Saved captures use
// persist.DefaultQuality.
const DefaultQuality = 75

// Sink receives frames from the capture source. Show never blocks; frames
// nobody looked at are replaced.
type Sink struct {
	frames  *frame.Buffer
	encoder persist.Encoder

	mu      sync.Mutex
	updated chan struct{}
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{
		frames:  frame.NewBuffer(),
		encoder: persist.JPEGEncoder{Quality: DefaultQuality},
		updated: make(chan struct{}),
	}
}

// Show implements capture.DisplaySink. The sink owns f afterwards.
func (s *Sink) Show(f *frame.Frame) {
	s.frames.Publish(f)

	s.mu.Lock()
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
}

// Clear blanks the preview, e.g. when capture stops.
func (s *Sink) Clear() {
	s.frames.Clear()
}

// Updated returns a channel closed on the next Show.
func (s *Sink) Updated() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// Latest returns a copy of the newest frame.
func (s *Sink) Latest() (*frame.Frame, bool) {
	return s.frames.Snapshot()
}

// LatestJPEG encodes the newest frame.
func (s *Sink) LatestJPEG() ([]byte, bool, error) {
	f, ok := s.Latest()
	if !ok {
		return nil, false, nil
	}
	b, err := s.EncodeJPEG(f)
	return b, true, err
}

// EncodeJPEG encodes f at preview quality.
func (s *Sink) EncodeJPEG(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.encoder.Encode(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats exposes the underlying buffer counters.
func (s *Sink) Stats() frame.BufferStats {
	return s.frames.Stats()
}
