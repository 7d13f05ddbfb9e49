package models

import (
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/metrics"
	"github.com/smazurov/photostation/internal/updater"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	Modified  bool   `json:"modified" doc:"Built from a dirty working tree"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go version used to build"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Station models
type SlotsData struct {
	Front bool `json:"front" doc:"Whether the front slot holds a capture"`
	Back  bool `json:"back" doc:"Whether the back slot holds a capture"`
}

type CaptureStatusData struct {
	Running  bool   `json:"running" doc:"Whether live capture is running"`
	DeviceID string `json:"device_id,omitempty" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Device being captured"`
}

type StatusData struct {
	Capture  CaptureStatusData  `json:"capture"`
	Slots    SlotsData          `json:"slots"`
	BasePath string             `json:"base_path" example:"/srv/photos" doc:"Destination base folder"`
	Preview  *frame.BufferStats `json:"preview,omitempty" doc:"Live preview counters"`
	Metrics  metrics.Snapshot   `json:"metrics"`
}

type StatusResponse struct {
	Body StatusData
}

type CaptureRequest struct {
	Body struct {
		Choice string `json:"choice,omitempty" example:"back" doc:"Slot to overwrite when both are occupied: front, back or discard"`
	} `required:"false"`
}

type CaptureData struct {
	Stored bool      `json:"stored" doc:"False when the capture was discarded"`
	Slot   string    `json:"slot,omitempty" example:"front" doc:"Slot that received the frame"`
	Result string    `json:"result" example:"front" doc:"Capture outcome"`
	Slots  SlotsData `json:"slots"`
}

type CaptureResponse struct {
	Body CaptureData
}

type SaveRequest struct {
	Body struct {
		Folder string `json:"folder" example:"device42" doc:"Folder created under the destination base folder"`
	}
}

type SaveData struct {
	Folder    string `json:"folder" example:"/srv/photos/device42"`
	FrontPath string `json:"front_path" example:"/srv/photos/device42/Front.jpg"`
	BackPath  string `json:"back_path" example:"/srv/photos/device42/Back.jpg"`
}

type SaveResponse struct {
	Body SaveData
}

type SlotRequest struct {
	Slot string `path:"slot" example:"front" doc:"Slot name: front or back"`
}

type ResetData struct {
	Cleared bool      `json:"cleared" doc:"False when the slot was already empty"`
	Slots   SlotsData `json:"slots"`
}

type ResetResponse struct {
	Body ResetData
}

// ImageResponse carries an encoded JPEG.
type ImageResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// Command models
type CommandRequest struct {
	// Authorization is checked only for exit.
	Authorization string `header:"Authorization" doc:"Basic credentials, required for exit"`
	Body          struct {
		Command string `json:"command" example:"takepicture" doc:"Command text as typed or scanned"`
		Folder  string `json:"folder,omitempty" example:"device42" doc:"Folder name for save"`
		Choice  string `json:"choice,omitempty" example:"back" doc:"Overwrite choice for capture"`
	}
}

type CommandData struct {
	Command string       `json:"command" example:"capture" doc:"Recognized command, none for blank input"`
	Capture *CaptureData `json:"capture,omitempty"`
	Save    *SaveData    `json:"save,omitempty"`
	Reset   *ResetData   `json:"reset,omitempty"`
}

type CommandResponse struct {
	Body CommandData
}

// Device models
type DeviceListData struct {
	Devices []devices.DeviceInfo `json:"devices" doc:"Enumerated capture devices"`
	Count   int                  `json:"count" example:"1"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// Settings models
type SettingsData struct {
	Devices          []devices.DeviceInfo `json:"devices" doc:"Enumerated capture devices"`
	SelectedDeviceID string               `json:"selected_device_id" doc:"Configured device, or the first one if it is missing"`
	BasePath         string               `json:"base_path" example:"/srv/photos"`
}

type SettingsResponse struct {
	Body SettingsData
}

type SettingsUpdateRequest struct {
	Body struct {
		DeviceID string `json:"device_id" minLength:"1" doc:"Device to capture from"`
		BasePath string `json:"base_path" minLength:"1" example:"/srv/photos" doc:"Destination base folder"`
	}
}

type SettingsUpdateData struct {
	DeviceID      string `json:"device_id"`
	BasePath      string `json:"base_path"`
	DeviceChanged bool   `json:"device_changed" doc:"Whether capture was restarted"`
	RestartError  string `json:"restart_error,omitempty" doc:"Why the restart failed; the settings are saved regardless"`
}

type SettingsUpdateResponse struct {
	Body SettingsUpdateData
}

// ServiceStatus contains the systemd state of the station unit.
type ServiceStatus struct {
	Service string `json:"service" example:"photostation.service" doc:"Unit name"`
	Status  string `json:"status" example:"active" doc:"ActiveState (active, inactive, failed, etc.)"`
}

// ServiceStatusResponse wraps ServiceStatus for API responses.
type ServiceStatusResponse struct {
	Body ServiceStatus
}

// ServiceAction contains the result of a unit action.
type ServiceAction struct {
	Service string `json:"service" example:"photostation.service"`
	Action  string `json:"action" example:"restart"`
	Success bool   `json:"success" example:"true"`
}

// ServiceActionResponse wraps ServiceAction for API responses.
type ServiceActionResponse struct {
	Body ServiceAction
}

// UpdateStatusResponse wraps the updater status for API responses.
type UpdateStatusResponse struct {
	Body updater.Status
}

// UpdateInfoResponse wraps release information for API responses.
type UpdateInfoResponse struct {
	Body updater.Info
}
