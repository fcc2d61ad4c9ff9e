// Package power applies temporary brightness overrides through the
// privileged services on the system and session buses.
package power

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ErrRemote marks a failed call to a bus service.
var ErrRemote = errors.New("power: remote call failed")

const (
	loginService  = "org.freedesktop.login1"
	sessionPath   = "/org/freedesktop/login1/session/auto"
	setBrightness = "org.freedesktop.login1.Session.SetBrightness"
)

// Limits of the auto-brightness adjustment applied as a software multiplier.
const minMultiplier = 0.1

type sessionObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// BrightnessRelay dims the output in software.
type BrightnessRelay interface {
	SetBrightness(float64) error
}

type Service struct {
	session   sessionObject
	relay     BrightnessRelay
	backlight *Backlight
}

func New(system *dbus.Conn, relay BrightnessRelay, backlight *Backlight) *Service {
	return &Service{
		session:   system.Object(loginService, dbus.ObjectPath(sessionPath)),
		relay:     relay,
		backlight: backlight,
	}
}

// Lookup returns nil when the system bus cannot be reached. A missing
// backlight device is reported later by SetTemporaryBrightnessOverride.
func Lookup(relay BrightnessRelay, sysfsRoot string) *Service {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil
	}
	bl, _ := FindBacklight(sysfsRoot)
	return New(conn, relay, bl)
}

// SetTemporaryBrightnessOverride sets the panel backlight to level (0..255).
func (s *Service) SetTemporaryBrightnessOverride(level int) error {
	if s.backlight == nil {
		return fmt.Errorf("%w: no backlight device", ErrRemote)
	}
	v, err := s.backlight.Scale(level)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	if err := s.session.Call(setBrightness, 0, "backlight", s.backlight.Name, v).Err; err != nil {
		return fmt.Errorf("%w: set brightness: %v", ErrRemote, err)
	}
	return nil
}

// SetTemporaryAutoBrightnessOverride applies an adjustment in [-1, 1] as
// the multiplier 1+adj, clamped to [0.1, 1].
func (s *Service) SetTemporaryAutoBrightnessOverride(adj float64) error {
	if s.relay == nil {
		return fmt.Errorf("%w: no gamma relay", ErrRemote)
	}
	if err := s.relay.SetBrightness(Multiplier(adj)); err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	return nil
}

func Multiplier(adj float64) float64 {
	return min(max(1+adj, minMultiplier), 1)
}
