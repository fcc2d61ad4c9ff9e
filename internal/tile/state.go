package tile

import (
	"fmt"

	"github.com/hoppxi/nightdisplay/internal/settings"
)

type Icon int

const (
	IconOff Icon = iota
	IconOn
)

func (i Icon) String() string {
	if i == IconOn {
		return "night-display-on"
	}
	return "night-display-off"
}

func (i Icon) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Icon) UnmarshalText(b []byte) error {
	switch string(b) {
	case "night-display-on":
		*i = IconOn
	case "night-display-off":
		*i = IconOff
	default:
		return fmt.Errorf("tile: unknown icon %q", b)
	}
	return nil
}

// RoleSwitch tells the host to present the tile as an on/off switch.
const RoleSwitch = "switch"

// State is what the host renders. It is recomputed on every refresh.
type State struct {
	Role        string `json:"role"`
	Activated   bool   `json:"activated"`
	Label       string `json:"label"`
	Icon        Icon   `json:"icon"`
	Description string `json:"description"`
}

type Labels struct {
	Label      string `mapstructure:"label"`
	SummaryOn  string `mapstructure:"summary_on"`
	SummaryOff string `mapstructure:"summary_off"`
}

func DefaultLabels() Labels {
	return Labels{
		Label:      "Night Display",
		SummaryOn:  "Night display on",
		SummaryOff: "Night display off",
	}
}

type BrightnessMode int

const (
	ModeManual BrightnessMode = iota
	ModeAutomatic
)

func (m BrightnessMode) String() string {
	if m == ModeAutomatic {
		return "automatic"
	}
	return "manual"
}

// Any stored mode other than manual counts as automatic.
func modeFromSetting(v int) BrightnessMode {
	if v != settings.BrightnessModeManual {
		return ModeAutomatic
	}
	return ModeManual
}

func (m BrightnessMode) setting() int {
	if m == ModeAutomatic {
		return settings.BrightnessModeAutomatic
	}
	return settings.BrightnessModeManual
}

// BrightnessSnapshot holds the user's brightness as it was before an
// override.
type BrightnessSnapshot struct {
	AutoAdjust  float64
	ManualLevel int
	Mode        BrightnessMode
}
