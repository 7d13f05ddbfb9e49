package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/photostation/internal/api"
	"github.com/smazurov/photostation/internal/capture"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/console"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/instance"
	"github.com/smazurov/photostation/internal/led"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/metrics/exporters"
	"github.com/smazurov/photostation/internal/nats"
	"github.com/smazurov/photostation/internal/persist"
	"github.com/smazurov/photostation/internal/preview"
	"github.com/smazurov/photostation/internal/settings"
	"github.com/smazurov/photostation/internal/station"
	"github.com/smazurov/photostation/internal/systemd"
	"github.com/smazurov/photostation/internal/updater"
	"github.com/smazurov/photostation/internal/version"
)

// settingsDebounce coalesces editor save bursts on settings.toml.
const settingsDebounce = 500 * time.Millisecond

// run starts the station and blocks until the console exits, the exit
// command arrives over HTTP, or ctx is cancelled. It returns an error only
// when startup cannot continue.
func run(ctx context.Context, cancel context.CancelFunc, opts *Options, logger *slog.Logger) error {
	logger.Info("Starting photostation", "version", version.String())

	lockPath := opts.StationLockFile
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "photostation.lock")
	}
	lock, err := instance.Acquire(lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Warn("Failed to release instance lock", "error", releaseErr)
		}
	}()

	pixelFormat, err := frame.ParsePixelFormat(opts.CapturePixelFormat)
	if err != nil {
		return err
	}

	notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
	eventBus := events.New()

	// Operator settings: defaults from the CLI config, overlaid by settings.toml
	store := config.NewSettingsStore(opts.StationSettingsFile, config.Settings{
		BasePath:     opts.StationBasePath,
		Username:     opts.AuthUsername,
		PasswordHash: opts.AuthPasswordHash,
	}, logging.GetLogger("config"))
	if loadErr := store.Load(); loadErr != nil {
		logger.Warn("Failed to load settings, using defaults", "path", store.Path(), "error", loadErr)
	}
	if watchErr := store.Watch(config.WithDebounce(settingsDebounce)); watchErr != nil {
		logger.Warn("Failed to watch settings file", "error", watchErr)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("Failed to stop settings watcher", "error", closeErr)
		}
	}()

	// Device hotplug feeds the event stream and the LED
	detector := devices.NewDetector()
	if monErr := detector.StartMonitoring(ctx, eventBus); monErr != nil {
		logger.Warn("Device monitoring unavailable", "error", monErr)
	}
	defer detector.StopMonitoring()

	// The LED must be listening before capture reports its first state
	var ledManager *led.Manager
	if opts.FeaturesLEDControl {
		logger.Info("LED control enabled, initializing")
		ledLogger := logging.GetLogger("led")
		controller, ledType := led.New(ledLogger)
		ledManager = led.NewManager(controller, ledType, eventBus, ledLogger)
		ledManager.Start()
		defer ledManager.Stop()
	}

	buffer := frame.NewBuffer()
	sink := preview.NewSink()

	source := capture.NewSource(capture.SourceOptions{
		Detector: detector,
		Opener: capture.NewFFmpegOpener(capture.FFmpegOptions{
			Binary:       opts.CaptureFFmpegPath,
			InputFormat:  opts.CaptureInputFormat,
			Width:        opts.CaptureWidth,
			Height:       opts.CaptureHeight,
			FPS:          opts.CaptureFPS,
			PixelFormat:  pixelFormat,
			StartTimeout: time.Duration(opts.CaptureStartTimeoutSecs) * time.Second,
		}),
		Buffer: buffer,
		Sink:   sink,
		Events: eventBus,
	})
	defer source.Stop()

	st := station.New(buffer, station.Options{Events: eventBus})
	writer := persist.NewWriter(persist.Options{Events: eventBus})

	settingsService := settings.New(ctx, store, source, settings.Options{Events: eventBus})
	defer settingsService.Close()

	startCapture(ctx, source, store, logger)

	var service api.ServiceController
	if opts.SystemdUnit != "" {
		manager, sdErr := systemd.NewManager(ctx, opts.SystemdUnit, opts.SystemdUserBus)
		if sdErr != nil {
			logger.Warn("systemd unit control unavailable", "unit", opts.SystemdUnit, "error", sdErr)
		} else {
			defer manager.Close()
			service = manager
		}
	}

	var selfUpdate *updater.Updater
	if opts.UpdateRepository != "" {
		updateOpts := updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
		}
		if service != nil {
			// Restart through systemd when the unit is known
			updateOpts.Restart = func() {
				if restartErr := service.Restart(context.Background()); restartErr != nil {
					logger.Error("Failed to restart after update", "error", restartErr)
				}
			}
		}
		u, updErr := updater.New(updateOpts)
		if updErr != nil {
			logger.Warn("Self-update unavailable", "error", updErr)
		} else {
			selfUpdate = u
		}
	}

	if opts.ServerEnabled {
		listener, listenErr := net.Listen("tcp", opts.Port)
		if listenErr != nil {
			return fmt.Errorf("failed to listen on %s: %w", opts.Port, listenErr)
		}

		apiOpts := &api.Options{
			Station:           st,
			Writer:            writer,
			Settings:          store,
			SettingsService:   settingsService,
			Capture:           source,
			Preview:           sink,
			PreviewMaxFPS:     opts.PreviewMaxFPS,
			EventBus:          eventBus,
			Service:           service,
			Shutdown:          cancel,
			PrometheusHandler: exporters.HTTPHandler(),
		}
		if ledManager != nil {
			apiOpts.LEDManager = ledManager
		}
		if selfUpdate != nil {
			apiOpts.Updater = selfUpdate
		}
		server := api.NewServer(apiOpts)

		go func() {
			if serveErr := server.Serve(listener); serveErr != nil {
				logger.Error("HTTP server failed", "error", serveErr)
				cancel()
			}
		}()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if stopErr := server.Stop(stopCtx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
		}()
	}

	if opts.NATSURL != "" {
		bridge := nats.NewBridge(nats.Options{
			URL:       opts.NATSURL,
			StationID: opts.NATSStationID,
			Station:   st,
			Writer:    writer,
			Settings:  store,
			Events:    eventBus,
		})
		if natsErr := bridge.Start(ctx); natsErr != nil {
			logger.Warn("NATS bridge unavailable", "url", opts.NATSURL, "error", natsErr)
		} else {
			defer bridge.Stop()
		}
	}

	notifier.Ready()
	notifier.Status("Station ready")
	go notifier.Watchdog(ctx)
	defer notifier.Stopping()

	if !opts.StationConsole {
		<-ctx.Done()
		return nil
	}

	con := console.New(console.Options{
		Station:  st,
		Writer:   writer,
		Settings: store,
		Screen:   settingsService,
		Events:   eventBus,
	})
	if runErr := con.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("Console stopped", "error", runErr)
	}
	return nil
}

// startCapture opens the configured camera, or the first one found. A
// missing camera is not fatal: the operator can still pick one in settings.
func startCapture(ctx context.Context, source *capture.Source, store *config.SettingsStore, logger *slog.Logger) {
	current := store.Get()
	selected, err := source.Start(ctx, current)
	if err != nil {
		logger.Warn("Camera not available", "device_id", current.DeviceID, "error", err)
		return
	}
	if selected.DeviceID != current.DeviceID {
		if installErr := store.Install(selected); installErr != nil {
			logger.Warn("Failed to remember selected camera", "device_id", selected.DeviceID, "error", installErr)
		}
	}
}
