package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// LED request/response models

// LEDRequest represents a request to control an LED
type LEDRequest struct {
	Body struct {
		Type    string  `json:"type" example:"user" doc:"LED type (board-specific: user, act, green, etc.)"`
		Enabled bool    `json:"enabled" example:"true" doc:"Whether the LED should be on or off"`
		Pattern *string `json:"pattern,omitempty" example:"solid" doc:"Optional LED pattern (solid, blink, heartbeat)"`
	}
}

// LEDStatus describes the status LED and what else the board offers.
type LEDStatus struct {
	StatusLED         string   `json:"status_led" example:"user" doc:"LED driven by the station, empty when the board has none"`
	Indicator         string   `json:"indicator" example:"partial" doc:"What the status LED shows: no_camera, ready, partial or idle"`
	AvailableTypes    []string `json:"available_types" doc:"List of available LED types on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"List of available LED patterns on this board"`
}

// LEDStatusResponse wraps LEDStatus.
type LEDStatusResponse struct {
	Body LEDStatus
}

// registerLEDRoutes registers LED control endpoints
func (s *Server) registerLEDRoutes() {
	if s.options.LEDManager == nil {
		s.logger.Debug("LED manager not available, skipping LED routes")
		return
	}
	manager := s.options.LEDManager

	huma.Register(s.api, huma.Operation{
		OperationID: "get-leds",
		Method:      http.MethodGet,
		Path:        "/api/leds",
		Summary:     "Get LED Status",
		Description: "The status LED indicator and the LED types and patterns of this board",
		Tags:        []string{"leds"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*LEDStatusResponse, error) {
		controller := manager.Controller()
		return &LEDStatusResponse{
			Body: LEDStatus{
				StatusLED:         manager.LEDType(),
				Indicator:         string(manager.Indicator()),
				AvailableTypes:    controller.Available(),
				AvailablePatterns: controller.Patterns(),
			},
		}, nil
	})

	// Overrides last until the next station event moves the status LED.
	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Control an LED's state and optional pattern. LED types and patterns are board-specific.",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		pattern := ""
		if input.Body.Pattern != nil {
			pattern = *input.Body.Pattern
		}

		if err := manager.Controller().Set(input.Body.Type, input.Body.Enabled, pattern); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	s.logger.Info("LED routes registered", "status_led", manager.LEDType())
}
