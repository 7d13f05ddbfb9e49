package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/updater"
)

// Updater installs station releases.
type Updater interface {
	Check(ctx context.Context) (updater.Info, error)
	Apply(ctx context.Context) (updater.Info, error)
	Rollback(ctx context.Context) error
	Status() updater.Status
}

// registerUpdateRoutes registers the self-update endpoints. A disabled
// updater still answers, with 503 for every action.
func (s *Server) registerUpdateRoutes() {
	if s.options.Updater == nil {
		return
	}
	u := s.options.Updater

	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/system/update",
		Summary:     "Update Status",
		Description: "Current update state, running version and backup availability",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		return &models.UpdateStatusResponse{Body: u.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "check-update",
		Method:      http.MethodPost,
		Path:        "/api/system/update/check",
		Summary:     "Check for Update",
		Description: "Look up the newest release without downloading it",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 502, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateInfoResponse, error) {
		info, err := u.Check(ctx)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateInfoResponse{Body: info}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-update",
		Method:      http.MethodPost,
		Path:        "/api/system/update/apply",
		Summary:     "Apply Update",
		Description: "Install the newest release and restart. Captured slots are lost.",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 500, 502, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateInfoResponse, error) {
		info, err := u.Apply(ctx)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateInfoResponse{Body: info}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-update",
		Method:      http.MethodPost,
		Path:        "/api/system/update/rollback",
		Summary:     "Rollback Update",
		Description: "Restore the binary replaced by the last update and restart",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := u.Rollback(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return nil, nil
	})
}

// mapUpdateError converts updater errors to Huma HTTP errors.
func mapUpdateError(err error) error {
	var updateErr *updater.Error
	if !errors.As(err, &updateErr) {
		return huma.Error500InternalServerError(err.Error())
	}
	switch updateErr.Code {
	case updater.ErrCodeInvalidState, updater.ErrCodeNoUpdate:
		return huma.Error409Conflict(updateErr.Message)
	case updater.ErrCodeNotFound, updater.ErrCodeNoBackup:
		return huma.Error404NotFound(updateErr.Message)
	case updater.ErrCodeCheckFailed:
		return huma.Error502BadGateway(updateErr.Message, updateErr.Cause)
	case updater.ErrCodeDisabled:
		return huma.Error503ServiceUnavailable("Self-update disabled: " + updateErr.Message)
	default:
		return huma.Error500InternalServerError(updateErr.Message, updateErr)
	}
}
