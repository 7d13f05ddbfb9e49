package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/google/uuid"
	"github.com/smazurov/photostation/cmd"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port          string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	ServerEnabled bool   `help:"Serve the HTTP API" default:"true" toml:"server.enabled" env:"SERVER_ENABLED"`

	// Station settings
	StationSettingsFile string `help:"Operator settings file" default:"settings.toml" toml:"station.settings_file" env:"STATION_SETTINGS_FILE"`
	StationBasePath     string `help:"Destination base folder used until the operator sets one" default:"photos" toml:"station.base_path" env:"STATION_BASE_PATH"`
	StationLockFile     string `help:"Single instance lock file (default: <tmp>/photostation.lock)" toml:"station.lock_file" env:"STATION_LOCK_FILE"`
	StationConsole      bool   `help:"Read operator commands from stdin" default:"true" toml:"station.console" env:"STATION_CONSOLE"`

	// Auth settings, used until settings.toml carries its own
	AuthUsername     string `help:"Settings screen username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPasswordHash string `help:"bcrypt hash of the settings password (see hash-password)" toml:"auth.password_hash" env:"AUTH_PASSWORD_HASH"`

	// Capture settings
	CaptureFFmpegPath       string `help:"ffmpeg binary" default:"ffmpeg" toml:"capture.ffmpeg_path" env:"CAPTURE_FFMPEG_PATH"`
	CaptureInputFormat      string `help:"ffmpeg input format override (v4l2, dshow, avfoundation)" toml:"capture.input_format" env:"CAPTURE_INPUT_FORMAT"`
	CaptureWidth            int    `help:"Capture width" default:"1280" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight           int    `help:"Capture height" default:"720" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	CaptureFPS              int    `help:"Capture frame rate" default:"15" toml:"capture.fps" env:"CAPTURE_FPS"`
	CapturePixelFormat      string `help:"Frame pixel format (rgba, gray)" default:"rgba" toml:"capture.pixel_format" env:"CAPTURE_PIXEL_FORMAT"`
	CaptureStartTimeoutSecs int    `help:"Seconds to wait for the first frame" default:"10" toml:"capture.start_timeout_secs" env:"CAPTURE_START_TIMEOUT_SECS"`

	// Preview settings
	PreviewMaxFPS int `help:"Max frame rate of the MJPEG preview" default:"10" toml:"preview.max_fps" env:"PREVIEW_MAX_FPS"`

	// Features settings
	FeaturesLEDControl bool `help:"Enable LED control" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`

	// Systemd settings
	SystemdUnit    string `help:"Unit to report and restart over the API (empty disables)" toml:"systemd.unit" env:"SYSTEMD_UNIT"`
	SystemdUserBus bool   `help:"Use the user bus instead of the system bus" default:"false" toml:"systemd.user_bus" env:"SYSTEMD_USER_BUS"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-update (empty disables)" default:"smazurov/photostation" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Offer prereleases" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// NATS settings
	NATSURL       string `help:"NATS server URL for remote control (empty disables)" toml:"nats.url" env:"NATS_URL"`
	NATSStationID string `help:"Station name used in NATS subjects" default:"default" toml:"nats.station_id" env:"NATS_STATION_ID"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture  string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDevices  string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingStation  string `help:"Station logging level" default:"info" toml:"logging.station" env:"LOGGING_STATION"`
	LoggingPersist  string `help:"Persist logging level" default:"info" toml:"logging.persist" env:"LOGGING_PERSIST"`
	LoggingConsole  string `help:"Console logging level" default:"info" toml:"logging.console" env:"LOGGING_CONSOLE"`
	LoggingCommand  string `help:"Command router logging level" default:"info" toml:"logging.command" env:"LOGGING_COMMAND"`
	LoggingSettings string `help:"Settings logging level" default:"info" toml:"logging.settings" env:"LOGGING_SETTINGS"`
	LoggingConfig   string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP access logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingLED      string `help:"LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
	LoggingSystemd  string `help:"Systemd logging level" default:"info" toml:"logging.systemd" env:"LOGGING_SYSTEMD"`
	LoggingUpdater  string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
	LoggingNATS     string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingPreview  string `help:"Preview logging level" default:"info" toml:"logging.preview" env:"LOGGING_PREVIEW"`
}

// stopTimeout bounds how long OnStop waits for the station to wind down.
const stopTimeout = 10 * time.Second

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// The console owns stdout, so logs go to stderr while it runs
		output := "stdout"
		if opts.StationConsole {
			output = "stderr"
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Output: output,
			Modules: map[string]string{
				"capture":  opts.LoggingCapture,
				"devices":  opts.LoggingDevices,
				"station":  opts.LoggingStation,
				"persist":  opts.LoggingPersist,
				"console":  opts.LoggingConsole,
				"command":  opts.LoggingCommand,
				"settings": opts.LoggingSettings,
				"config":   opts.LoggingConfig,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
				"led":      opts.LoggingLED,
				"systemd":  opts.LoggingSystemd,
				"updater":  opts.LoggingUpdater,
				"nats":     opts.LoggingNATS,
				"preview":  opts.LoggingPreview,
			},
		})

		logger := logging.GetLogger("main").With("session_id", uuid.NewString())

		ctx, cancel := context.WithCancel(context.Background())
		finished := make(chan struct{})

		hooks.OnStart(func() {
			defer close(finished)
			defer cancel()

			if err := run(ctx, cancel, opts, logger); err != nil {
				logger.Error("Station failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down station")
			cancel()

			select {
			case <-finished:
			case <-time.After(stopTimeout):
				logger.Warn("Timed out waiting for shutdown")
			}
		})
	})

	// Add devices command
	cli.Root().AddCommand(cmd.CreateDevicesCmd())

	// Add hash-password command
	cli.Root().AddCommand(cmd.CreateHashPasswordCmd())

	// Add update command
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	// Run the CLI
	cli.Run()
}
