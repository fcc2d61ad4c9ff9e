package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/hoppxi/nightdisplay/internal/gamma"
	"github.com/hoppxi/nightdisplay/internal/metrics"
	"github.com/hoppxi/nightdisplay/internal/nightdisplay"
	"github.com/hoppxi/nightdisplay/internal/power"
	"github.com/hoppxi/nightdisplay/internal/render"
	"github.com/hoppxi/nightdisplay/internal/settings"
	"github.com/hoppxi/nightdisplay/internal/tile"
	"github.com/hoppxi/nightdisplay/internal/worker"
	"go.uber.org/zap"
)

// OpenStore builds the settings backend named in cfg.
func OpenStore(cfg SettingsConfig) (settings.Store, error) {
	switch cfg.Backend {
	case "", "file":
		return settings.NewFileStore(cfg.Dir)
	case "redis":
		var opts []settings.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, settings.WithPrefix(cfg.Redis.Prefix))
		}
		return settings.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...), nil
	case "memory":
		return settings.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

// Deps overrides the collaborators NewDaemon would otherwise build from
// the config. Nil fields are built.
type Deps struct {
	Store    settings.Store
	Relay    *gamma.Relay
	NoRelay  bool
	// Applier replaces the relay as the color temperature target.
	Applier  nightdisplay.ColorApplier
	Power    func() tile.PowerService
	Renderer tile.Renderer
}

type Daemon struct {
	cfg     *Config
	log     *zap.Logger
	loop    *Loop
	queue   *worker.Queue
	metrics *metrics.Sink
	store   settings.Store
	tile    *tile.Tile

	// Owner goroutine only.
	controller *nightdisplay.Controller
}

func NewDaemon(cfg *Config, log *zap.Logger, deps Deps) (*Daemon, error) {
	if log == nil {
		log = zap.NewNop()
	}

	store := deps.Store
	if store == nil {
		s, err := OpenStore(cfg.Settings)
		if err != nil {
			return nil, err
		}
		store = s
	}

	relay := deps.Relay
	if relay == nil && !deps.NoRelay {
		r, err := gamma.Connect()
		if err != nil {
			log.Warn("Gamma relay unreachable, night display unavailable", zap.Error(err))
		} else {
			relay = r
		}
	}

	d := &Daemon{
		cfg:     cfg,
		log:     log,
		loop:    NewLoop(),
		queue:   worker.New(log.Named("worker")),
		metrics: metrics.New(log.Named("metrics")),
		store:   store,
	}

	powerFn := deps.Power
	if powerFn == nil {
		var br power.BrightnessRelay
		if relay != nil {
			br = relay
		}
		powerFn = func() tile.PowerService {
			svc := power.Lookup(br, cfg.Power.SysfsRoot)
			if svc == nil {
				return nil
			}
			return svc
		}
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = render.NewEww(cfg.Tile.EwwVar)
	}

	var probe nightdisplay.Probe
	if relay != nil {
		probe = relay
	}

	ctrlLog := log.Named("nightdisplay")
	newController := func(user int) tile.FeatureController {
		nd := d.cfg.NightDisplay
		opts := []nightdisplay.Option{
			nightdisplay.WithTemperatures(nd.Temperature, nd.NeutralTemperature),
			nightdisplay.WithDispatcher(d.loop.Post),
			nightdisplay.WithLogger(ctrlLog),
		}
		switch {
		case deps.Applier != nil:
			opts = append(opts, nightdisplay.WithApplier(deps.Applier))
		case relay != nil:
			opts = append(opts, nightdisplay.WithApplier(relay))
		}
		c := nightdisplay.NewController(store, user, opts...)
		c.Apply()
		d.controller = c
		return c
	}

	t, err := tile.New(tile.Config{
		Store:          store,
		NewController:  newController,
		Queue:          d.queue,
		Available:      func() bool { return nightdisplay.IsAvailable(probe) },
		Power:          powerFn,
		Renderer:       renderer,
		Metrics:        d.metrics,
		Labels:         cfg.Tile.Labels,
		SettingsTarget: cfg.Tile.SettingsTarget,
		User:           cfg.User,
		Logger:         log.Named("tile"),
	})
	if err != nil {
		d.queue.Close()
		return nil, err
	}
	d.tile = t

	return d, nil
}

func (d *Daemon) Metrics() *metrics.Sink {
	return d.metrics
}

// Run drives the owner loop until ctx is done. The tile starts listening
// once the loop is up.
func (d *Daemon) Run(ctx context.Context) {
	d.loop.Post(func() {
		d.tile.SetListening(true)
	})
	d.loop.Run(ctx)
}

// Reload applies a changed config to the running tile. Settings backend,
// power and metrics changes need a restart.
func (d *Daemon) Reload(cfg *Config) {
	d.loop.Post(func() {
		d.cfg = cfg
		nd := cfg.NightDisplay
		d.controller.SetTemperatures(nd.Temperature, nd.NeutralTemperature)
		d.tile.SetLabels(cfg.Tile.Labels)
		if cfg.User != d.tile.User() {
			d.tile.HandleUserSwitch(cfg.User)
		}
	})
}

// Close waits for queued settings writes, then releases the store.
func (d *Daemon) Close() {
	d.queue.Close()
	if c, ok := d.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			d.log.Warn("Closing settings store failed", zap.Error(err))
		}
	}
}

func (d *Daemon) stateJSON() (string, error) {
	var s tile.State
	if err := d.loop.Do(func() { s = d.tile.RefreshState() }); err != nil {
		return "", err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func onOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("expected on|off")
	}
	switch args[0] {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on|off, got %q", args[0])
}

// Handle serves the tile commands of the IPC protocol.
func (d *Daemon) Handle(command string, args []string) (string, error) {
	switch command {
	case "CLICK":
		if err := d.loop.Do(d.tile.Click); err != nil {
			return "", err
		}
		return d.stateJSON()
	case "STATE":
		return d.stateJSON()
	case "AVAILABLE":
		var ok bool
		if err := d.loop.Do(func() { ok = d.tile.IsAvailable() }); err != nil {
			return "", err
		}
		return strconv.FormatBool(ok), nil
	case "LISTEN":
		on, err := onOff(args)
		if err != nil {
			return "", err
		}
		if err := d.loop.Do(func() { d.tile.SetListening(on) }); err != nil {
			return "", err
		}
		return strconv.FormatBool(on), nil
	case "USER":
		if len(args) != 1 {
			return "", fmt.Errorf("expected a user id")
		}
		user, err := strconv.Atoi(args[0])
		if err != nil || user < 0 {
			return "", fmt.Errorf("invalid user id %q", args[0])
		}
		if err := d.loop.Do(func() { d.tile.HandleUserSwitch(user) }); err != nil {
			return "", err
		}
		return strconv.Itoa(user), nil
	case "LONGPRESS":
		var target string
		if err := d.loop.Do(func() { target = d.tile.LongClickTarget() }); err != nil {
			return "", err
		}
		return target, nil
	case "PREF":
		on, err := onOff(args)
		if err != nil {
			return "", err
		}
		var perr error
		if err := d.loop.Do(func() { perr = d.tile.SetBrightnessToggle(on) }); err != nil {
			return "", err
		}
		if perr != nil {
			return "", perr
		}
		return strconv.FormatBool(on), nil
	default:
		return "", fmt.Errorf("unknown command %s", command)
	}
}
