// Package tile implements the night display quick-settings toggle.
//
// A Tile is driven from a single owner goroutine: clicks, controller
// callbacks, listening changes and user switches must not run concurrently.
// Only the brightness persistence writes leave that goroutine, through the
// work queue.
package tile

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hoppxi/nightdisplay/internal/nightdisplay"
	"github.com/hoppxi/nightdisplay/internal/settings"
	"go.uber.org/zap"
)

// MetricsCategory identifies tile events in the metrics sink.
const MetricsCategory = "qs_night_display"

// DefaultSettingsTarget is the long-press destination.
const DefaultSettingsTarget = "nightdisplay://settings"

// Brightness applied while night display is on.
const (
	AutoOverride   = -0.3 // auto-brightness adjustment, -1..1
	ManualOverride = 1    // manual level, 0..255
)

type FeatureController interface {
	IsActivated() bool
	SetActivated(activated bool) error
	SetListener(cb nightdisplay.Callback)
}

type PowerService interface {
	SetTemporaryAutoBrightnessOverride(adj float64) error
	SetTemporaryBrightnessOverride(level int) error
}

type Renderer interface {
	Render(v any) error
}

type MetricsSink interface {
	Action(category string, activated bool)
}

type Queue interface {
	Submit(name string, fn func()) bool
}

type Config struct {
	Store settings.Store
	// NewController builds the controller bound to one user.
	NewController func(user int) FeatureController
	Queue         Queue

	// Available reports whether the feature exists. Nil means it does.
	Available func() bool
	// Power returns the power service, or nil when it cannot be reached.
	Power    func() PowerService
	Renderer Renderer
	Metrics  MetricsSink

	Labels         Labels
	SettingsTarget string
	User           int
	Logger         *zap.Logger
}

type Tile struct {
	store         settings.Store
	newController func(user int) FeatureController
	queue         Queue
	available     func() bool
	power         func() PowerService
	renderer      Renderer
	metrics       MetricsSink
	labels        Labels
	target        string
	log           *zap.Logger

	user       int
	controller FeatureController
	listening  bool
	snapshot   BrightnessSnapshot
	state      State

	// Whether the override for the current activation reached the power
	// service. Deactivation only restores what was overridden.
	overrideApplied bool

	// Bumped on every override request. A queued override write only runs
	// if no later request was made.
	overrideGen atomic.Uint64

	// Restores queued but not yet written, by user. While one is pending the
	// store still holds the override, so its snapshot is reused.
	restoreMu sync.Mutex
	restores  map[int]pendingRestore
}

type pendingRestore struct {
	gen  uint64
	snap BrightnessSnapshot
}

func New(cfg Config) (*Tile, error) {
	if cfg.Store == nil {
		return nil, errors.New("tile: settings store is required")
	}
	if cfg.NewController == nil {
		return nil, errors.New("tile: controller factory is required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("tile: work queue is required")
	}

	t := &Tile{
		store:         cfg.Store,
		newController: cfg.NewController,
		queue:         cfg.Queue,
		available:     cfg.Available,
		power:         cfg.Power,
		renderer:      cfg.Renderer,
		metrics:       cfg.Metrics,
		labels:        cfg.Labels,
		target:        cfg.SettingsTarget,
		log:           cfg.Logger,
		user:          cfg.User,
		restores:      make(map[int]pendingRestore),
	}
	if t.labels == (Labels{}) {
		t.labels = DefaultLabels()
	}
	if t.target == "" {
		t.target = DefaultSettingsTarget
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}

	t.controller = t.newController(t.user)
	t.loadSnapshot()
	return t, nil
}

func (t *Tile) IsAvailable() bool {
	if t.available == nil {
		return true
	}
	return t.available()
}

func (t *Tile) User() int {
	return t.user
}

func (t *Tile) Listening() bool {
	return t.listening
}

func (t *Tile) Label() string {
	return t.labels.Label
}

// LongClickTarget names the detailed settings screen.
func (t *Tile) LongClickTarget() string {
	return t.target
}

// State returns the most recently rendered state.
func (t *Tile) State() State {
	return t.state
}

func (t *Tile) Snapshot() BrightnessSnapshot {
	return t.snapshot
}

// Click flips night display and, when the user asked for it, dims the
// screen while it is on.
func (t *Tile) Click() {
	activated := !t.controller.IsActivated()
	if t.metrics != nil {
		t.metrics.Action(MetricsCategory, activated)
	}

	if err := t.controller.SetActivated(activated); err != nil {
		t.log.Warn("Setting night display failed", zap.Bool("activated", activated), zap.Error(err))
		t.RefreshState()
		return
	}

	if t.brightnessToggleEnabled() {
		t.ApplyBrightnessOverride(activated)
	}
	t.RefreshState()
}

func (t *Tile) brightnessToggleEnabled() bool {
	v, err := t.store.GetInt(settings.KeyNightBrightnessToggle, 0, t.user)
	if err != nil {
		t.log.Warn("Reading brightness toggle preference failed", zap.Error(err))
	}
	return v == 1
}

// SetBrightnessToggle stores the "apply brightness on toggle" preference
// for the bound user.
func (t *Tile) SetBrightnessToggle(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return t.store.PutInt(settings.KeyNightBrightnessToggle, v, t.user)
}

// ApplyBrightnessOverride dims the screen when activate is true and puts
// the user's brightness back otherwise. Settings writes are queued. Power
// service failures are logged and skipped.
func (t *Tile) ApplyBrightnessOverride(activate bool) {
	gen := t.overrideGen.Add(1)
	user := t.user

	if !activate {
		t.restoreBrightness(gen, user)
		return
	}

	// Must happen before the override or the user's values are lost.
	if snap, ok := t.pendingRestore(user); ok {
		t.snapshot = snap
	} else if !t.overrideApplied {
		t.refreshSnapshot()
	}
	snap := t.snapshot

	svc := t.lookupPower()
	if svc == nil {
		t.log.Warn("Power service unavailable, skipping brightness override")
		return
	}
	if err := t.override(svc, snap.Mode, AutoOverride, ManualOverride); err != nil {
		t.log.Warn("Setting brightness failed", zap.String("mode", snap.Mode.String()), zap.Error(err))
		return
	}
	t.overrideApplied = true

	t.persistSnapshot(user, snap)
	t.queue.Submit("persist-brightness-override", func() {
		if t.overrideGen.Load() != gen {
			t.log.Debug("Brightness override superseded, not persisting")
			return
		}
		t.writeBrightness(user, snap.Mode, AutoOverride, ManualOverride)
	})
}

func (t *Tile) restoreBrightness(gen uint64, user int) {
	if !t.overrideApplied {
		t.log.Debug("No brightness override to undo")
		return
	}
	t.overrideApplied = false
	snap := t.snapshot

	if svc := t.lookupPower(); svc != nil {
		if err := t.override(svc, snap.Mode, snap.AutoAdjust, snap.ManualLevel); err != nil {
			t.log.Warn("Restoring brightness failed", zap.Error(err))
		}
	}

	t.restoreMu.Lock()
	t.restores[user] = pendingRestore{gen: gen, snap: snap}
	t.restoreMu.Unlock()

	t.queue.Submit("restore-brightness", func() {
		t.writeBrightness(user, snap.Mode, snap.AutoAdjust, snap.ManualLevel)
		if err := t.store.PutInt(settings.KeyRestoreBrightnessMode, -1, user); err != nil {
			t.log.Warn("Clearing brightness snapshot failed", zap.Int("user", user), zap.Error(err))
		}

		t.restoreMu.Lock()
		if p, ok := t.restores[user]; ok && p.gen == gen {
			delete(t.restores, user)
		}
		t.restoreMu.Unlock()
	})
}

func (t *Tile) pendingRestore(user int) (BrightnessSnapshot, bool) {
	t.restoreMu.Lock()
	defer t.restoreMu.Unlock()
	p, ok := t.restores[user]
	return p.snap, ok
}

func (t *Tile) lookupPower() PowerService {
	if t.power == nil {
		return nil
	}
	return t.power()
}

func (t *Tile) override(svc PowerService, mode BrightnessMode, auto float64, manual int) error {
	if mode == ModeAutomatic {
		return svc.SetTemporaryAutoBrightnessOverride(auto)
	}
	return svc.SetTemporaryBrightnessOverride(manual)
}

func (t *Tile) writeBrightness(user int, mode BrightnessMode, auto float64, manual int) {
	var err error
	if mode == ModeAutomatic {
		err = t.store.PutFloat(settings.KeyAutoBrightnessAdj, auto, user)
	} else {
		err = t.store.PutInt(settings.KeyBrightness, manual, user)
	}
	if err != nil {
		t.log.Warn("Persisting brightness failed", zap.Int("user", user), zap.Error(err))
	}
}

func (t *Tile) refreshSnapshot() {
	auto, err := t.store.GetFloat(settings.KeyAutoBrightnessAdj, 0, t.user)
	if err != nil {
		t.log.Warn("Reading auto brightness failed", zap.Error(err))
	}
	manual, err := t.store.GetInt(settings.KeyBrightness, 0, t.user)
	if err != nil {
		t.log.Warn("Reading brightness failed", zap.Error(err))
	}
	mode, err := t.store.GetInt(settings.KeyBrightnessMode, settings.BrightnessModeManual, t.user)
	if err != nil {
		t.log.Warn("Reading brightness mode failed", zap.Error(err))
	}

	t.snapshot = BrightnessSnapshot{
		AutoAdjust:  auto,
		ManualLevel: manual,
		Mode:        modeFromSetting(mode),
	}
}

func (t *Tile) persistSnapshot(user int, snap BrightnessSnapshot) {
	t.queue.Submit("save-brightness-snapshot", func() {
		errs := []error{
			t.store.PutFloat(settings.KeyRestoreAutoBrightnessAdj, snap.AutoAdjust, user),
			t.store.PutInt(settings.KeyRestoreBrightness, snap.ManualLevel, user),
			t.store.PutInt(settings.KeyRestoreBrightnessMode, snap.Mode.setting(), user),
		}
		if err := errors.Join(errs...); err != nil {
			t.log.Warn("Saving brightness snapshot failed", zap.Int("user", user), zap.Error(err))
		}
	})
}

// loadSnapshot reads the current brightness, preferring the saved snapshot
// while night display is still on from an earlier run.
func (t *Tile) loadSnapshot() {
	t.overrideApplied = false
	if snap, ok := t.pendingRestore(t.user); ok {
		t.snapshot = snap
		return
	}

	t.refreshSnapshot()
	if !t.controller.IsActivated() {
		return
	}

	mode, err := t.store.GetInt(settings.KeyRestoreBrightnessMode, -1, t.user)
	if err != nil || mode < 0 {
		return
	}
	auto, err := t.store.GetFloat(settings.KeyRestoreAutoBrightnessAdj, t.snapshot.AutoAdjust, t.user)
	if err != nil {
		return
	}
	manual, err := t.store.GetInt(settings.KeyRestoreBrightness, t.snapshot.ManualLevel, t.user)
	if err != nil {
		return
	}
	t.snapshot = BrightnessSnapshot{
		AutoAdjust:  auto,
		ManualLevel: manual,
		Mode:        modeFromSetting(mode),
	}
	t.overrideApplied = true
}

// HandleUserSwitch rebinds the tile to newUser. The old controller loses
// its listener before the new one gets it.
func (t *Tile) HandleUserSwitch(newUser int) {
	if t.listening {
		t.controller.SetListener(nil)
	}

	t.controller = t.newController(newUser)
	t.user = newUser
	t.loadSnapshot()

	if t.listening {
		t.controller.SetListener(t)
	}
	t.log.Info("Switched user", zap.Int("user", newUser))
	t.RefreshState()
}

func (t *Tile) SetListening(on bool) {
	t.listening = on
	if on {
		t.controller.SetListener(t)
		t.RefreshState()
		return
	}
	t.controller.SetListener(nil)
}

// OnActivated is called by the controller when activation changes.
func (t *Tile) OnActivated(bool) {
	t.RefreshState()
}

func (t *Tile) ComputeState() State {
	activated := t.controller.IsActivated()
	s := State{
		Role:        RoleSwitch,
		Activated:   activated,
		Label:       t.labels.Label,
		Icon:        IconOff,
		Description: t.labels.SummaryOff,
	}
	if activated {
		s.Icon = IconOn
		s.Description = t.labels.SummaryOn
	}
	return s
}

// RefreshState recomputes the state and hands it to the renderer.
func (t *Tile) RefreshState() State {
	t.state = t.ComputeState()
	if t.renderer != nil {
		if err := t.renderer.Render(t.state); err != nil {
			t.log.Warn("Rendering tile failed", zap.Error(err))
		}
	}
	return t.state
}

// SetLabels replaces the label set and re-renders.
func (t *Tile) SetLabels(l Labels) {
	if l == (Labels{}) {
		l = DefaultLabels()
	}
	t.labels = l
	t.RefreshState()
}
