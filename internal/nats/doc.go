// Package nats connects the station to a NATS broker so line equipment can
// follow the station and drive it remotely.
//
// # Subject Hierarchy
//
//	photostation.{station}.events.{name}   # station events, JSON (station → broker)
//	photostation.{station}.commands        # command requests (broker → station)
//
// Event names match the SSE event names: capture-state, slot-changed,
// save-completed, save-failed, device-changed, settings-changed and
// command-rejected.
//
// A command request is either the plain command text, exactly as a scanner
// would type it, or JSON carrying the arguments the console would prompt for:
//
//	{"command":"save","folder":"device42"}
//	{"command":"takepicture","choice":"back"}
//
// Requests sent with a reply subject get a JSON Reply. The settings and exit
// commands are refused remotely.
//
// The bridge uses core NATS (no JetStream) and reconnects forever; the
// station keeps working while the broker is away.
//
// # Debugging with nats CLI
//
// Follow everything a station publishes:
//
//	nats sub "photostation.kiosk-1.events.>"
//
// Take a picture and save it:
//
//	nats req photostation.kiosk-1.commands takepicture
//	nats req photostation.kiosk-1.commands '{"command":"save","folder":"device42"}'
package nats
