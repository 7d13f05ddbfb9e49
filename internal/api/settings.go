package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/settings"
)

// registerSettingsRoutes registers device listing and the settings screen.
func (s *Server) registerSettingsRoutes() {
	if s.options.Capture != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "list-devices",
			Method:      http.MethodGet,
			Path:        "/api/devices",
			Summary:     "List Devices",
			Description: "Enumerate capture devices",
			Tags:        []string{"devices"},
			Security:    public(),
			Errors:      []int{500},
		}, func(_ context.Context, _ *struct{}) (*models.DeviceListResponse, error) {
			list, err := s.options.Capture.Devices()
			if err != nil {
				return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
			}
			if list == nil {
				list = []devices.DeviceInfo{}
			}
			return &models.DeviceListResponse{
				Body: models.DeviceListData{Devices: list, Count: len(list)},
			}, nil
		})
	}

	if s.options.SettingsService == nil {
		s.logger.Debug("Settings service not available, skipping settings routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/api/settings",
		Summary:     "Get Settings",
		Description: "Devices with the configured one preselected, and the destination base folder",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.SettingsResponse, error) {
		form, err := s.options.SettingsService.Form()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to load settings", err)
		}
		if form.Devices == nil {
			form.Devices = []devices.DeviceInfo{}
		}
		return &models.SettingsResponse{
			Body: models.SettingsData{
				Devices:          form.Devices,
				SelectedDeviceID: form.SelectedDeviceID,
				BasePath:         form.BasePath,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPut,
		Path:        "/api/settings",
		Summary:     "Update Settings",
		Description: "Select the camera and destination base folder. Capture restarts only when the camera changes.",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 500},
	}, func(_ context.Context, input *models.SettingsUpdateRequest) (*models.SettingsUpdateResponse, error) {
		res, err := s.options.SettingsService.Apply(settings.Update{
			DeviceID: input.Body.DeviceID,
			BasePath: input.Body.BasePath,
		})
		// A populated result means the settings were installed and only the
		// capture restart failed.
		if err != nil && res.Settings.BasePath == "" {
			return nil, toHTTPError(err)
		}
		out := &models.SettingsUpdateResponse{
			Body: models.SettingsUpdateData{
				DeviceID:      res.Settings.DeviceID,
				BasePath:      res.Settings.BasePath,
				DeviceChanged: res.DeviceChanged,
			},
		}
		if err != nil {
			s.logger.Warn("Settings saved but capture restart failed", "error", err)
			out.Body.RestartError = err.Error()
		}
		return out, nil
	})
}
