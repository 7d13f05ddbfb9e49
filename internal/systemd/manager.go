// Package systemd talks to the service manager: readiness notifications
// over the notify socket and unit control over D-Bus.
package systemd

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// ErrNoUnit is returned when the manager was created without a unit name.
var ErrNoUnit = errors.New("no systemd unit configured")

// Manager controls the station's own systemd unit via D-Bus.
type Manager struct {
	conn *dbus.Conn
	unit string
}

// NewManager connects to the user or the system bus and manages unit.
func NewManager(ctx context.Context, unit string, userBus bool) (*Manager, error) {
	if unit == "" {
		return nil, ErrNoUnit
	}
	var (
		conn *dbus.Conn
		err  error
	)
	if userBus {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Manager{conn: conn, unit: unit}, nil
}

// Unit returns the managed unit name.
func (m *Manager) Unit() string {
	return m.unit
}

// Status returns the unit's ActiveState (active, activating, failed, ...).
func (m *Manager) Status(ctx context.Context) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, m.unit, "ActiveState")
	if err != nil {
		return "", err
	}
	var state string
	if err := prop.Value.Store(&state); err != nil {
		return prop.Value.String(), nil
	}
	return state, nil
}

// Restart queues a restart of the unit in replace mode. When the unit is
// this process the call returns before the restart takes effect.
func (m *Manager) Restart(ctx context.Context) error {
	_, err := m.conn.RestartUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
