package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the hotkeyd daemon.
//
// The config file is the primary configuration surface; flags exist for small
// overrides and for environments where a file is awkward. Defaults and
// validation are centralized here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Input device discovery and polling
	Input InputConfig `yaml:"input"`

	// Power button / suspend behavior
	Power PowerConfig `yaml:"power"`

	// Backlight brightness ladder and control surface
	Backlight BacklightConfig `yaml:"backlight"`

	// Mixer volume control
	Volume VolumeConfig `yaml:"volume"`

	// IPC socket (used by the menu UI and hotkey-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// State WebSocket server
	WS WSConfig `yaml:"ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	// Devices maps logical roles to device-name substrings, in the order
	// sources are drained each tick.
	Devices []DevicePattern `yaml:"devices"`

	// PollHz is the polling loop frequency.
	PollHz int `yaml:"poll_hz"`
}

type PowerConfig struct {
	SuspendPath  string `yaml:"suspend_path"`
	SuspendValue string `yaml:"suspend_value"`

	LongPressMS    int `yaml:"long_press_ms"`
	WakeDebounceMS int `yaml:"wake_debounce_ms"`

	// PoweroffCmd runs after a long-power-press shutdown request.
	PoweroffCmd string `yaml:"poweroff_cmd"`
}

type BacklightConfig struct {
	BrightnessPath string `yaml:"brightness_path"`

	MinPercent     int `yaml:"min_percent"`
	MaxPercent     int `yaml:"max_percent"`
	StepPercent    int `yaml:"step_percent"`
	DefaultPercent int `yaml:"default_percent"`
}

type VolumeConfig struct {
	MixerCmd    string   `yaml:"mixer_cmd"`
	MixerArgs   []string `yaml:"mixer_args"`
	StepPercent int      `yaml:"step_percent"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type WSConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Devices: []DevicePattern{
				{Role: RoleMode, Match: "joypad"},
				{Role: RolePower, Match: "pwrkey"},
				{Role: RoleKeys, Match: "gpio-keys"},
			},
			PollHz: defaultPollHz,
		},
		Power: PowerConfig{
			SuspendPath:    "/sys/power/state",
			SuspendValue:   "mem",
			LongPressMS:    defaultLongPressMS,
			WakeDebounceMS: defaultWakeDebounceMS,
			PoweroffCmd:    "poweroff",
		},
		Backlight: BacklightConfig{
			BrightnessPath: "/sys/class/backlight/backlight/brightness",
			MinPercent:     defaultBrightnessMin,
			MaxPercent:     defaultBrightnessMax,
			StepPercent:    defaultBrightnessStep,
			DefaultPercent: defaultBrightnessPercent,
		},
		Volume: VolumeConfig{
			MixerCmd:    "amixer",
			MixerArgs:   []string{"-q", "-c", "0", "sset", "Master"},
			StepPercent: defaultVolumeStepPercent,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/hotkeyd.sock",
		},
		WS: WSConfig{
			Enabled: true,
			Port:    3002,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies flag values on top of a loaded config. A nil pointer
// means "flag not set"; a non-nil pointer is applied even if it is a zero
// value.
type FlagOverrides struct {
	PollHz        *int
	IPCSocketPath *string
	WSEnabled     *bool
	WSPort        *int
	LogLevel      *string
}

func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.PollHz != nil {
		cfg.Input.PollHz = *o.PollHz
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSEnabled != nil {
		cfg.WS.Enabled = *o.WSEnabled
	}
	if o.WSPort != nil {
		cfg.WS.Port = *o.WSPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if len(c.Input.Devices) == 0 {
		return errors.New("input.devices must not be empty")
	}
	seen := map[DeviceRole]bool{}
	for i, d := range c.Input.Devices {
		if d.Role == "" {
			return fmt.Errorf("input.devices[%d].role is empty", i)
		}
		if d.Match == "" {
			return fmt.Errorf("input.devices[%d].match is empty", i)
		}
		if seen[d.Role] {
			return fmt.Errorf("input.devices[%d]: duplicate role %q", i, d.Role)
		}
		seen[d.Role] = true
	}
	if c.Input.PollHz <= 0 || c.Input.PollHz > 1000 {
		return errors.New("input.poll_hz must be between 1 and 1000")
	}

	if c.Power.SuspendPath == "" {
		return errors.New("power.suspend_path must not be empty")
	}
	if c.Power.SuspendValue == "" {
		return errors.New("power.suspend_value must not be empty")
	}
	if c.Power.LongPressMS <= 0 {
		return errors.New("power.long_press_ms must be > 0")
	}
	if c.Power.WakeDebounceMS < 0 {
		return errors.New("power.wake_debounce_ms must be >= 0")
	}

	if c.Backlight.BrightnessPath == "" {
		return errors.New("backlight.brightness_path must not be empty")
	}
	if c.Backlight.MinPercent < 0 || c.Backlight.MaxPercent > 100 {
		return errors.New("backlight percent range must be within 0-100")
	}
	if c.Backlight.MinPercent > c.Backlight.MaxPercent {
		return errors.New("backlight.min_percent must be <= backlight.max_percent")
	}
	if c.Backlight.StepPercent <= 0 {
		return errors.New("backlight.step_percent must be > 0")
	}
	if c.Backlight.DefaultPercent < c.Backlight.MinPercent || c.Backlight.DefaultPercent > c.Backlight.MaxPercent {
		return errors.New("backlight.default_percent must be within min/max")
	}

	if c.Volume.MixerCmd == "" {
		return errors.New("volume.mixer_cmd must not be empty")
	}
	if c.Volume.StepPercent <= 0 || c.Volume.StepPercent > 100 {
		return errors.New("volume.step_percent must be between 1 and 100")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.WS.Enabled && (c.WS.Port <= 0 || c.WS.Port > 65535) {
		return errors.New("ws.port must be a valid TCP port")
	}
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// Thresholds converts the config into the reducer's timing/range knobs.
func (c *Config) Thresholds() Thresholds {
	return Thresholds{
		LongPress:      time.Duration(c.Power.LongPressMS) * time.Millisecond,
		WakeDebounce:   time.Duration(c.Power.WakeDebounceMS) * time.Millisecond,
		BrightnessMin:  c.Backlight.MinPercent,
		BrightnessMax:  c.Backlight.MaxPercent,
		BrightnessStep: c.Backlight.StepPercent,
		VolumeStep:     c.Volume.StepPercent,
	}
}

// MonitorConfig derives the monitor's view of the configuration.
func (c *Config) MonitorConfig() MonitorConfig {
	return MonitorConfig{
		Patterns:   c.Input.Devices,
		Thresholds: c.Thresholds(),
		Brightness: c.Backlight.DefaultPercent,
	}
}
