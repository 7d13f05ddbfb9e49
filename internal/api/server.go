package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/led"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/persist"
	"github.com/smazurov/photostation/internal/preview"
	"github.com/smazurov/photostation/internal/settings"
	"github.com/smazurov/photostation/internal/station"
	"github.com/smazurov/photostation/internal/version"
)

const authRealm = `Basic realm="Photostation Settings"`

// Station is the slot station as the API drives it.
type Station interface {
	CaptureInto(choice station.Choice) (station.CaptureResult, error)
	Reset(slot station.Slot) bool
	State() station.State
	Frame(slot station.Slot) (*frame.Frame, bool)
	persist.Slots
}

// Capture reports on the live capture source.
type Capture interface {
	Devices() ([]devices.DeviceInfo, error)
	Running() bool
	DeviceID() string
}

// SettingsService is the settings screen behind /api/settings. Its
// credentials also guard every authenticated route.
type SettingsService interface {
	Authenticate(username, password string) error
	Form() (settings.Form, error)
	Apply(u settings.Update) (settings.Result, error)
}

// Options wires the API server to the running station.
type Options struct {
	Station         Station
	Writer          *persist.Writer
	Settings        interface{ Get() config.Settings }
	SettingsService SettingsService
	Capture         Capture
	Preview         *preview.Sink
	PreviewMaxFPS   int
	LEDManager      *led.Manager // Optional; LED routes are skipped without it
	EventBus        *events.Bus
	Service         ServiceController // Optional; systemd routes are skipped without it
	Updater         Updater           // Optional; update routes are skipped without it
	// Shutdown handles the exit command. Without it exit is rejected.
	Shutdown          func()
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	encoder    persist.Encoder
	logger     *slog.Logger
}

// basicAuthMiddleware checks the settings login for operations that declare
// a security requirement.
func (s *Server) basicAuthMiddleware(ctx huma.Context, next func(huma.Context)) {
	op := ctx.Operation()
	if op != nil && len(op.Security) == 0 {
		next(ctx)
		return
	}

	var encoded string
	if authHeader := ctx.Header("Authorization"); authHeader != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(authHeader, prefix) {
			s.unauthorized(ctx, "Invalid authentication type")
			return
		}
		encoded = authHeader[len(prefix):]
	} else {
		// EventSource cannot set headers
		encoded = ctx.Query("auth")
	}
	if encoded == "" {
		s.unauthorized(ctx, "Authentication required")
		return
	}

	username, password, err := decodeBasicAuth(encoded)
	if err != nil {
		s.unauthorized(ctx, "Invalid credentials format", err)
		return
	}

	if !s.authenticated(username, password) {
		s.unauthorized(ctx, "Invalid credentials")
		return
	}

	next(ctx)
}

var errMalformedCredentials = errors.New("malformed basic credentials")

// decodeBasicAuth splits base64 "user:password".
func decodeBasicAuth(encoded string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", err
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errMalformedCredentials
	}
	return username, password, nil
}

func (s *Server) authenticated(username, password string) bool {
	return s.options.SettingsService != nil && s.options.SettingsService.Authenticate(username, password) == nil
}

// authorizedHeader reports whether an Authorization header carries a valid
// settings login. Public operations use it to guard individual actions.
func (s *Server) authorizedHeader(header string) bool {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok || encoded == "" {
		return false
	}
	username, password, err := decodeBasicAuth(encoded)
	return err == nil && s.authenticated(username, password)
}

func (s *Server) unauthorized(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

// NewServer creates the API server on a Go 1.22+ ServeMux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	humaConfig := huma.DefaultConfig("Photostation API", "1.0.0")
	humaConfig.Info.Description = "Front/back photo capture station"
	// Relative paths keep the OpenAPI document valid behind any host
	humaConfig.Servers = []*huma.Server{}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, humaConfig)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		encoder:  persist.JPEGEncoder{Quality: preview.DefaultQuality},
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	api.UseMiddleware(server.basicAuthMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve accepts connections on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Starting Photostation API server", "addr", l.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+l.Addr().String()+"/docs")

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down, waiting up to the ctx deadline for requests.
// Streaming responses are cut off.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // no auth
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				Modified:  versionInfo.Modified,
				GoVersion: versionInfo.GoVersion,
				Platform:  versionInfo.Platform,
			},
		}, nil
	})

	s.registerStationRoutes()
	s.registerCommandRoutes()
	s.registerPreviewRoutes()
	s.registerSettingsRoutes()
	s.registerLEDRoutes()
	s.registerSystemRoutes()
	s.registerUpdateRoutes()
	s.registerSSERoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}

// public marks an operation as not requiring auth.
func public() []map[string][]string {
	return []map[string][]string{}
}
