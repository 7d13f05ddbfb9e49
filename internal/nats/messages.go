package nats

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SubjectRoot prefixes every subject the bridge uses.
const SubjectRoot = "photostation"

// SubjectEvents returns the subject station events named name are published on.
func SubjectEvents(station, name string) string {
	return fmt.Sprintf("%s.%s.events.%s", SubjectRoot, station, name)
}

// SubjectCommands returns the subject a station takes commands on.
func SubjectCommands(station string) string {
	return fmt.Sprintf("%s.%s.commands", SubjectRoot, station)
}

// Request is one remote command.
type Request struct {
	Command string `json:"command"`
	Folder  string `json:"folder,omitempty"`
	Choice  string `json:"choice,omitempty"`
}

// Reply reports what a command did.
type Reply struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`

	// Capture
	Slot   string `json:"slot,omitempty"`
	Result string `json:"result,omitempty"`

	// Save
	Folder    string `json:"folder,omitempty"`
	FrontPath string `json:"front_path,omitempty"`
	BackPath  string `json:"back_path,omitempty"`

	// Reset
	Cleared bool `json:"cleared,omitempty"`

	FrontOccupied bool `json:"front_occupied"`
	BackOccupied  bool `json:"back_occupied"`
}

// ParseRequest accepts a JSON Request or plain command text.
func ParseRequest(data []byte) (Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Request{Command: string(trimmed)}, nil
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return Request{}, fmt.Errorf("invalid command request: %w", err)
	}
	return req, nil
}
