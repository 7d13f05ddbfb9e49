// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output is routed automatically:
//   - to the systemd journal when journald is reachable
//   - to stdout when a terminal, pipe, or file is connected
//   - to both when both are available
//
// # Usage
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"api":     "warn",
//		},
//	})
//
// Then obtain module loggers:
//
//	logger := logging.GetLogger("station")
//	logger.Info("Slot filled", "slot", "front")
//
// Module levels can be changed at runtime with [SetModuleLevel].
//
// # Viewing Logs
//
//	journalctl -t photostation -f
//	journalctl -t photostation MODULE=capture
package logging
