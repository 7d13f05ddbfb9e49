package preview

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/smazurov/photostation/internal/logging"
)

const boundary = "photostationframe"

// MJPEGHandler streams the live preview as multipart/x-mixed-replace.
type MJPEGHandler struct {
	sink   *Sink
	minGap time.Duration
	logger *slog.Logger
}

// NewMJPEGHandler creates a stream handler for sink. maxFPS caps the rate
// per viewer; zero sends every frame.
func NewMJPEGHandler(sink *Sink, maxFPS int) *MJPEGHandler {
	h := &MJPEGHandler{sink: sink, logger: logging.GetLogger("preview")}
	if maxFPS > 0 {
		h.minGap = time.Second / time.Duration(maxFPS)
	}
	return h
}

func (h *MJPEGHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("MJPEG viewer connected", "remote", r.RemoteAddr)
	defer h.logger.Debug("MJPEG viewer disconnected", "remote", r.RemoteAddr)

	ctx := r.Context()
	var lastSeq uint64
	var lastSent time.Time
	for {
		updated := h.sink.Updated()

		if f, ok := h.sink.Latest(); ok && f.Seq != lastSeq && time.Since(lastSent) >= h.minGap {
			img, err := h.sink.EncodeJPEG(f)
			if err != nil {
				h.logger.Warn("Preview encode failed", "error", err)
			} else if err := writePart(w, img); err != nil {
				return
			}
			flusher.Flush()
			lastSeq, lastSent = f.Seq, time.Now()
		}

		select {
		case <-ctx.Done():
			return
		case <-updated:
			if wait := h.minGap - time.Since(lastSent); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
	}
}

func writePart(w http.ResponseWriter, img []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(img)); err != nil {
		return err
	}
	if _, err := w.Write(img); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
