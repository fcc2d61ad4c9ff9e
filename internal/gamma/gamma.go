// Package gamma talks to wl-gammarelay over the session bus.
package gamma

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	Service   = "rs.wl-gammarelay"
	Path      = "/"
	Interface = "rs.wl.gammarelay"
)

// Limits accepted by the relay.
const (
	MinTemperature = 1000
	MaxTemperature = 10000
	NeutralKelvin  = 6500
)

type Relay struct {
	conn *dbus.Conn
}

// Connect uses the shared session bus connection, which must not be closed.
func Connect() (*Relay, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("gamma: session bus: %w", err)
	}
	return &Relay{conn: conn}, nil
}

func (r *Relay) obj() dbus.BusObject {
	return r.conn.Object(Service, Path)
}

// Available reports whether the relay owns its bus name.
func (r *Relay) Available() bool {
	var has bool
	err := r.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, Service).Store(&has)
	return err == nil && has
}

func (r *Relay) SetTemperature(kelvin uint16) error {
	kelvin = ClampTemperature(kelvin)
	if err := r.obj().SetProperty(Interface+".Temperature", dbus.MakeVariant(kelvin)); err != nil {
		return fmt.Errorf("gamma: set temperature: %w", err)
	}
	return nil
}

// SetBrightness sets the software brightness multiplier (0..1).
func (r *Relay) SetBrightness(b float64) error {
	if err := r.obj().SetProperty(Interface+".Brightness", dbus.MakeVariant(b)); err != nil {
		return fmt.Errorf("gamma: set brightness: %w", err)
	}
	return nil
}

func ClampTemperature(k uint16) uint16 {
	switch {
	case k < MinTemperature:
		return MinTemperature
	case k > MaxTemperature:
		return MaxTemperature
	}
	return k
}
