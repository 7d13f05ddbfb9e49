package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/photostation/internal/api/models"
)

// ServiceController manages the station's own systemd unit.
type ServiceController interface {
	Unit() string
	Status(ctx context.Context) (string, error)
	Restart(ctx context.Context) error
}

func (s *Server) registerSystemRoutes() {
	if s.options.Service == nil {
		return
	}
	svc := s.options.Service

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/system/service",
		Summary:     "Service Status",
		Description: "Get the systemd state of the station service",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceStatusResponse, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		return &models.ServiceStatusResponse{
			Body: models.ServiceStatus{Service: svc.Unit(), Status: status},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/system/restart",
		Summary:     "Restart Station",
		Description: "Restart the station service. Captured slots are lost.",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceActionResponse, error) {
		if err := svc.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart service", err)
		}
		s.logger.Info("Service restart requested", "unit", svc.Unit())
		return &models.ServiceActionResponse{
			Body: models.ServiceAction{Service: svc.Unit(), Action: "restart", Success: true},
		}, nil
	})
}
