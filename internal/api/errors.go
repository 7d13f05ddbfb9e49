package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/photostation/internal/capture"
	"github.com/smazurov/photostation/internal/command"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/persist"
	"github.com/smazurov/photostation/internal/settings"
	"github.com/smazurov/photostation/internal/station"
)

// errCommandNotAllowed rejects console-only commands sent over HTTP.
var errCommandNotAllowed = errors.New("command is only available on the console")

// toHTTPError maps domain errors to API status codes. Station errors are
// recoverable operator mistakes and never 5xx, except a save that failed
// on disk.
func toHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, station.ErrNoFrameAvailable),
		errors.Is(err, capture.ErrDeviceUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, station.ErrAmbiguousCaptureTarget),
		errors.Is(err, persist.ErrIncompleteCapture):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, persist.ErrInvalidFolderName),
		errors.Is(err, station.ErrUnknownSlot),
		errors.Is(err, station.ErrUnknownChoice),
		errors.Is(err, command.ErrUnknownCommand),
		errors.Is(err, settings.ErrNoDeviceSelected),
		errors.Is(err, config.ErrInvalidBasePath):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, capture.ErrDeviceNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, settings.ErrInvalidCredentials):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, errCommandNotAllowed):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, persist.ErrSaveFailed):
		return huma.Error500InternalServerError("Failed to save capture", err)
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
