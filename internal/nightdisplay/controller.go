// Package nightdisplay owns the per-user activation state of the night
// display color filter.
package nightdisplay

import (
	"context"
	"fmt"
	"sync"

	"github.com/hoppxi/nightdisplay/internal/settings"
	"go.uber.org/zap"
)

// Default color temperatures in Kelvin.
const (
	DefaultNightKelvin   = 4000
	DefaultNeutralKelvin = 6500
)

type Callback interface {
	OnActivated(activated bool)
}

// ColorApplier changes the output color temperature.
type ColorApplier interface {
	SetTemperature(kelvin uint16) error
}

// Probe reports whether the color filter can be applied on this machine.
type Probe interface {
	Available() bool
}

// IsAvailable reports whether the feature exists here.
func IsAvailable(p Probe) bool {
	return p != nil && p.Available()
}

// Controller is bound to one user for its whole life. Build a new one on
// user switch.
type Controller struct {
	store         settings.Store
	user          int
	applier       ColorApplier
	nightKelvin   uint16
	neutralKelvin uint16
	dispatch      func(func())
	log           *zap.Logger

	mu          sync.Mutex
	listener    Callback
	cancelWatch context.CancelFunc
	last        bool
}

type Option func(*Controller)

func WithApplier(a ColorApplier) Option {
	return func(c *Controller) {
		c.applier = a
	}
}

func WithTemperatures(night, neutral uint16) Option {
	return func(c *Controller) {
		c.nightKelvin = night
		c.neutralKelvin = neutral
	}
}

// WithDispatcher routes listener callbacks, typically onto the owner
// goroutine. The default calls the listener directly.
func WithDispatcher(dispatch func(func())) Option {
	return func(c *Controller) {
		c.dispatch = dispatch
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

func NewController(store settings.Store, user int, opts ...Option) *Controller {
	c := &Controller{
		store:         store,
		user:          user,
		nightKelvin:   DefaultNightKelvin,
		neutralKelvin: DefaultNeutralKelvin,
		dispatch:      func(f func()) { f() },
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.Int("user", user))
	return c
}

func (c *Controller) User() int {
	return c.user
}

func (c *Controller) IsActivated() bool {
	v, err := c.store.GetInt(settings.KeyNightDisplayActivated, 0, c.user)
	if err != nil {
		c.log.Warn("Reading activation failed", zap.Error(err))
	}
	return v == 1
}

func (c *Controller) SetActivated(activated bool) error {
	v := 0
	if activated {
		v = 1
	}
	if err := c.store.PutInt(settings.KeyNightDisplayActivated, v, c.user); err != nil {
		return fmt.Errorf("nightdisplay: set activated: %w", err)
	}

	c.apply(activated)
	c.changed(activated)
	return nil
}

// SetTemperatures changes the applied temperatures and re-applies the
// current activation. Zero keeps the current value.
func (c *Controller) SetTemperatures(night, neutral uint16) {
	if night != 0 {
		c.nightKelvin = night
	}
	if neutral != 0 {
		c.neutralKelvin = neutral
	}
	c.Apply()
}

// Apply pushes the stored activation to the color applier.
func (c *Controller) Apply() {
	c.apply(c.IsActivated())
}

func (c *Controller) apply(activated bool) {
	if c.applier == nil {
		return
	}
	k := c.neutralKelvin
	if activated {
		k = c.nightKelvin
	}
	if err := c.applier.SetTemperature(k); err != nil {
		c.log.Warn("Applying color temperature failed", zap.Uint16("kelvin", k), zap.Error(err))
	}
}

// SetListener replaces the listener; nil detaches. While a listener is set
// and the store can be watched, changes made elsewhere are reported too.
func (c *Controller) SetListener(cb Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
	}
	c.listener = cb
	if cb == nil {
		return
	}

	c.last = c.IsActivated()

	w, ok := c.store.(settings.Watcher)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	changes, err := w.Watch(ctx, c.user)
	if err != nil {
		cancel()
		c.log.Warn("Watching settings failed", zap.Error(err))
		return
	}
	c.cancelWatch = cancel

	go func() {
		for key := range changes {
			if key == settings.KeyNightDisplayActivated {
				c.changed(c.IsActivated())
			}
		}
	}()
}

func (c *Controller) changed(activated bool) {
	c.mu.Lock()
	if c.listener == nil || activated == c.last {
		c.last = activated
		c.mu.Unlock()
		return
	}
	c.last = activated
	l := c.listener
	c.mu.Unlock()

	c.dispatch(func() {
		c.mu.Lock()
		current := c.listener
		c.mu.Unlock()
		if current == l {
			l.OnActivated(activated)
		}
	})
}
