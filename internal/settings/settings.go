// Package settings stores per-user display settings.
//
// Values are scoped by key and user id. Reads of a missing key return the
// supplied default. Backends that can observe changes made by other
// processes also implement Watcher.
package settings

import (
	"context"

	"github.com/spf13/cast"
)

const (
	KeyAutoBrightnessAdj     = "screen_auto_brightness_adj"
	KeyBrightness            = "screen_brightness"
	KeyBrightnessMode        = "screen_brightness_mode"
	KeyNightBrightnessToggle = "qs_night_brightness_toggle"
	KeyNightDisplayActivated = "night_display_activated"

	// Brightness captured before a night display override, kept so the
	// override can be undone after a restart.
	KeyRestoreAutoBrightnessAdj = "night_display_restore_auto_brightness_adj"
	KeyRestoreBrightness        = "night_display_restore_brightness"
	KeyRestoreBrightnessMode    = "night_display_restore_brightness_mode"
)

// Values of KeyBrightnessMode.
const (
	BrightnessModeManual    = 0
	BrightnessModeAutomatic = 1
)

type Store interface {
	GetFloat(key string, def float64, user int) (float64, error)
	PutFloat(key string, value float64, user int) error
	GetInt(key string, def int, user int) (int, error)
	PutInt(key string, value int, user int) error
}

// Watcher reports the keys changed in a user's scope until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, user int) (<-chan string, error)
}

func toFloat(v any, def float64) (float64, error) {
	if v == nil {
		return def, nil
	}
	return cast.ToFloat64E(v)
}

func toInt(v any, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	return cast.ToIntE(v)
}
