package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/command"
	"github.com/smazurov/photostation/internal/station"
)

// commandCall runs one command received over HTTP. The arguments a console
// would prompt for travel in the request instead.
type commandCall struct {
	s      *Server
	folder string
	choice string
	auth   string
	out    models.CommandData
}

func (c *commandCall) Capture(context.Context) error {
	data, err := c.s.capture(c.choice)
	c.out.Capture = data
	return err
}

func (c *commandCall) Save(context.Context) error {
	data, err := c.s.save(c.folder)
	c.out.Save = data
	return err
}

func (c *commandCall) ResetFront(context.Context) error {
	c.out.Reset = c.s.reset(station.Front)
	return nil
}

func (c *commandCall) ResetBack(context.Context) error {
	c.out.Reset = c.s.reset(station.Back)
	return nil
}

// OpenSettings has no HTTP form; clients use /api/settings.
func (c *commandCall) OpenSettings(context.Context) error {
	return toHTTPError(errCommandNotAllowed)
}

// Exit stops the station. Scanners post without credentials, so exit alone
// requires the settings login.
func (c *commandCall) Exit(context.Context) error {
	if c.s.options.Shutdown == nil {
		return toHTTPError(errCommandNotAllowed)
	}
	if !c.s.authorizedHeader(c.auth) {
		c.s.logger.Warn("Exit refused without valid credentials")
		return huma.Error401Unauthorized("exit requires the settings login")
	}
	c.s.logger.Info("Exit requested over HTTP")
	c.s.options.Shutdown()
	return nil
}

// registerCommandRoutes exposes the scanner command surface. A network
// barcode scanner posts exactly what it would have typed.
func (s *Server) registerCommandRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "run-command",
		Method:      http.MethodPost,
		Path:        "/api/commands",
		Summary:     "Run Command",
		Description: "Run an operator command such as takepicture, save, resetfront or resetback. Case and whitespace are ignored.",
		Tags:        []string{"station"},
		Security:    public(),
		Errors:      []int{400, 401, 403, 409, 500, 503},
	}, func(ctx context.Context, input *models.CommandRequest) (*models.CommandResponse, error) {
		call := &commandCall{
			s:      s,
			folder: input.Body.Folder,
			choice: input.Body.Choice,
			auth:   input.Authorization,
		}
		router := command.NewRouter(call, command.RouterOptions{
			Source: "http",
			Events: s.eventBus,
			Logger: s.logger,
		})

		cmd, err := router.Dispatch(ctx, input.Body.Command)
		if err != nil {
			var statusErr huma.StatusError
			if errors.As(err, &statusErr) {
				return nil, err
			}
			return nil, toHTTPError(err)
		}
		call.out.Command = cmd.String()
		return &models.CommandResponse{Body: call.out}, nil
	})
}
