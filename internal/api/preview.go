package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/preview"
)

// registerPreviewRoutes serves the live preview. The MJPEG stream is a plain
// handler on the mux since Huma cannot describe multipart streams.
func (s *Server) registerPreviewRoutes() {
	if s.options.Preview == nil {
		s.logger.Debug("Preview sink not available, skipping preview routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-live-frame",
		Method:      http.MethodGet,
		Path:        "/api/live.jpg",
		Summary:     "Live Frame",
		Description: "The newest live frame as JPEG",
		Tags:        []string{"preview"},
		Security:    public(),
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*models.ImageResponse, error) {
		f, ok := s.options.Preview.Latest()
		if !ok {
			return nil, huma.Error503ServiceUnavailable("No live frame available")
		}
		return s.jpegResponse(f)
	})

	s.mux.Handle("GET /api/live.mjpeg", preview.NewMJPEGHandler(s.options.Preview, s.options.PreviewMaxFPS))
}
