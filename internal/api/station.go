package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/metrics"
	"github.com/smazurov/photostation/internal/station"
)

// registerStationRoutes registers the capture, save and slot endpoints.
// They need no login: the kiosk operator drives them.
func (s *Server) registerStationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Station Status",
		Description: "Slot occupancy, capture state and counters",
		Tags:        []string{"station"},
		Security:    public(),
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "capture",
		Method:      http.MethodPost,
		Path:        "/api/capture",
		Summary:     "Take Picture",
		Description: "Capture the live frame into front, then back. When both are occupied a choice is required.",
		Tags:        []string{"station"},
		Security:    public(),
		Errors:      []int{400, 409, 503},
	}, func(_ context.Context, input *models.CaptureRequest) (*models.CaptureResponse, error) {
		data, err := s.capture(input.Body.Choice)
		if err != nil {
			return nil, err
		}
		return &models.CaptureResponse{Body: *data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "save",
		Method:      http.MethodPost,
		Path:        "/api/save",
		Summary:     "Save",
		Description: "Write Front.jpg and Back.jpg into the named folder and clear both slots",
		Tags:        []string{"station"},
		Security:    public(),
		Errors:      []int{400, 409, 500},
	}, func(_ context.Context, input *models.SaveRequest) (*models.SaveResponse, error) {
		data, err := s.save(input.Body.Folder)
		if err != nil {
			return nil, err
		}
		return &models.SaveResponse{Body: *data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-slot",
		Method:      http.MethodDelete,
		Path:        "/api/slots/{slot}",
		Summary:     "Reset Slot",
		Description: "Clear one slot. Clearing an empty slot is not an error.",
		Tags:        []string{"station"},
		Security:    public(),
		Errors:      []int{400},
	}, func(_ context.Context, input *models.SlotRequest) (*models.ResetResponse, error) {
		slot, err := station.ParseSlot(input.Slot)
		if err != nil {
			return nil, toHTTPError(err)
		}
		data := s.reset(slot)
		return &models.ResetResponse{Body: *data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-slot-image",
		Method:      http.MethodGet,
		Path:        "/api/slots/{slot}/image",
		Summary:     "Slot Image",
		Description: "The captured frame of a slot as JPEG",
		Tags:        []string{"station"},
		Security:    public(),
		Errors:      []int{400, 404},
	}, func(_ context.Context, input *models.SlotRequest) (*models.ImageResponse, error) {
		slot, err := station.ParseSlot(input.Slot)
		if err != nil {
			return nil, toHTTPError(err)
		}
		f, ok := s.options.Station.Frame(slot)
		if !ok {
			return nil, huma.Error404NotFound(slot.String() + " is empty")
		}
		return s.jpegResponse(f)
	})
}

func (s *Server) status() models.StatusData {
	data := models.StatusData{
		Slots:   slotsData(s.options.Station.State()),
		Metrics: metrics.Current(),
	}
	if s.options.Capture != nil {
		data.Capture = models.CaptureStatusData{
			Running:  s.options.Capture.Running(),
			DeviceID: s.options.Capture.DeviceID(),
		}
	}
	if s.options.Settings != nil {
		data.BasePath = s.options.Settings.Get().BasePath
	}
	if s.options.Preview != nil {
		stats := s.options.Preview.Stats()
		data.Preview = &stats
	}
	return data
}

func (s *Server) capture(rawChoice string) (*models.CaptureData, error) {
	choice, err := station.ParseChoice(rawChoice)
	if err != nil {
		return nil, toHTTPError(err)
	}
	res, err := s.options.Station.CaptureInto(choice)
	if err != nil {
		return nil, toHTTPError(err)
	}
	data := &models.CaptureData{
		Stored: res.Stored,
		Result: res.Outcome(),
		Slots:  slotsData(s.options.Station.State()),
	}
	if res.Stored {
		data.Slot = res.Slot.String()
	}
	return data, nil
}

func (s *Server) save(folder string) (*models.SaveData, error) {
	var base string
	if s.options.Settings != nil {
		base = s.options.Settings.Get().BasePath
	}
	res, err := s.options.Writer.Save(s.options.Station, base, folder)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &models.SaveData{
		Folder:    res.Folder,
		FrontPath: res.FrontPath,
		BackPath:  res.BackPath,
	}, nil
}

func (s *Server) reset(slot station.Slot) *models.ResetData {
	cleared := s.options.Station.Reset(slot)
	return &models.ResetData{
		Cleared: cleared,
		Slots:   slotsData(s.options.Station.State()),
	}
}

func (s *Server) jpegResponse(f *frame.Frame) (*models.ImageResponse, error) {
	var buf bytes.Buffer
	if err := s.encoder.Encode(&buf, f); err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode image", err)
	}
	return &models.ImageResponse{
		ContentType:  "image/jpeg",
		CacheControl: "no-store",
		Body:         buf.Bytes(),
	}, nil
}

func slotsData(st station.State) models.SlotsData {
	return models.SlotsData{Front: st.Front, Back: st.Back}
}
