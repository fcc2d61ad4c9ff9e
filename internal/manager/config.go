package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/hoppxi/nightdisplay/internal/nightdisplay"
	"github.com/hoppxi/nightdisplay/internal/power"
	"github.com/hoppxi/nightdisplay/internal/render"
	"github.com/hoppxi/nightdisplay/internal/tile"
	"github.com/spf13/viper"
)

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SettingsConfig struct {
	// Backend is one of "file", "redis" or "memory".
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type NightDisplayConfig struct {
	Temperature        uint16 `mapstructure:"temperature"`
	NeutralTemperature uint16 `mapstructure:"neutral_temperature"`
}

type TileConfig struct {
	Labels         tile.Labels `mapstructure:",squash"`
	EwwVar         string      `mapstructure:"eww_var"`
	SettingsTarget string      `mapstructure:"settings_target"`
}

type Config struct {
	User         int                `mapstructure:"user"`
	LogLevel     string             `mapstructure:"log_level"`
	Settings     SettingsConfig     `mapstructure:"settings"`
	NightDisplay NightDisplayConfig `mapstructure:"night_display"`
	Tile         TileConfig         `mapstructure:"tile"`
	Power        struct {
		SysfsRoot string `mapstructure:"sysfs_root"`
	} `mapstructure:"power"`
	Metrics struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"metrics"`
}

func DefaultConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	return filepath.Join(configDir, "nightdisplay", "nightdisplay.yaml")
}

func defaultSettingsDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "nightdisplay")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "nightdisplay")
	}
	return filepath.Join(home, ".local", "share", "nightdisplay")
}

func setDefaults(v *viper.Viper) {
	labels := tile.DefaultLabels()

	v.SetDefault("user", os.Getuid())
	v.SetDefault("log_level", "info")
	v.SetDefault("settings.backend", "file")
	v.SetDefault("settings.dir", defaultSettingsDir())
	v.SetDefault("settings.redis.addr", "127.0.0.1:6379")
	v.SetDefault("settings.redis.prefix", "nightdisplay:settings:")
	v.SetDefault("night_display.temperature", nightdisplay.DefaultNightKelvin)
	v.SetDefault("night_display.neutral_temperature", nightdisplay.DefaultNeutralKelvin)
	v.SetDefault("tile.label", labels.Label)
	v.SetDefault("tile.summary_on", labels.SummaryOn)
	v.SetDefault("tile.summary_off", labels.SummaryOff)
	v.SetDefault("tile.eww_var", render.DefaultVar)
	v.SetDefault("tile.settings_target", tile.DefaultSettingsTarget)
	v.SetDefault("power.sysfs_root", power.DefaultSysfsRoot)
	v.SetDefault("metrics.listen", "")
}

type ConfigManager struct {
	v *viper.Viper
}

// NewConfigManager reads path when it exists; otherwise defaults apply.
// NIGHTDISPLAY_* environment variables override both.
func NewConfigManager(path string) *ConfigManager {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("nightdisplay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &ConfigManager{v: v}
}

func (c *ConfigManager) Load() (*Config, error) {
	if err := c.v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(c.v.ConfigFileUsed()); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return c.decode()
}

func (c *ConfigManager) decode() (*Config, error) {
	var cfg Config
	if err := c.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Watch calls onChange with the new config after each edit of the file.
// Edits that fail to decode are dropped.
func (c *ConfigManager) Watch(onChange func(*Config)) {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := c.decode()
		if err != nil {
			return
		}
		onChange(cfg)
	})
	c.v.WatchConfig()
}
