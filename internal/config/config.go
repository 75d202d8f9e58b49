package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TransportType identifies which capture backend should be used.
type TransportType string

const (
	TransportRTMIDI TransportType = "rtmidi"
	TransportSerial TransportType = "serial"

	// DefaultSerialBaud is the classic DIN-MIDI line rate.
	DefaultSerialBaud = 31250

	DefaultPollIntervalMS = 2000
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// TransportConfig contains backend-specific capture parameters.
type TransportConfig struct {
	Kind TransportType `json:"kind"`

	// SerialPort preselects a serial device by name. Empty means the
	// device is chosen at runtime.
	SerialPort string `json:"serial_port"`
	SerialBaud int    `json:"serial_baud"`
}

// DecoderConfig tunes frame classification.
type DecoderConfig struct {
	// NoteOffOnZeroVelocity reclassifies NoteOn frames with velocity
	// zero as NoteOff. On by default; disable for strict wire fidelity.
	NoteOffOnZeroVelocity bool `json:"note_off_on_zero_velocity"`
}

// MonitorConfig tunes device-presence polling.
type MonitorConfig struct {
	PollIntervalMS int `json:"poll_interval_ms"`
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// NotificationsConfig stores desktop notification preferences.
type NotificationsConfig struct {
	Enabled bool                     `json:"enabled"`
	Events  NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	DeviceAdded   bool `json:"device_added"`
	DeviceRemoved bool `json:"device_removed"`
	Connection    bool `json:"connection"`
}

// RecorderConfig controls the optional sqlite event recorder.
type RecorderConfig struct {
	Enabled bool `json:"enabled"`

	// DatabasePath overrides the default location under the user config
	// dir. Empty means the default.
	DatabasePath string `json:"database_path"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Transport     TransportConfig     `json:"transport"`
	Decoder       DecoderConfig       `json:"decoder"`
	Monitor       MonitorConfig       `json:"monitor"`
	Logging       LoggingConfig       `json:"logging"`
	Notifications NotificationsConfig `json:"notifications"`
	Recorder      RecorderConfig      `json:"recorder"`
}

func Default() AppConfig {
	return AppConfig{
		Transport: TransportConfig{
			Kind:       TransportRTMIDI,
			SerialPort: "",
			SerialBaud: DefaultSerialBaud,
		},
		Decoder: DecoderConfig{
			NoteOffOnZeroVelocity: true,
		},
		Monitor: MonitorConfig{
			PollIntervalMS: DefaultPollIntervalMS,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Events: NotificationEventsConfig{
				DeviceAdded:   true,
				DeviceRemoved: true,
				Connection:    true,
			},
		},
		Recorder: RecorderConfig{
			Enabled:      false,
			DatabasePath: "",
		},
	}
}

// Load reads path into a config pre-seeded with defaults, so keys absent
// from the file keep their default values (including default-true
// booleans). A missing file yields the defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportRTMIDI
	}
	if c.Transport.SerialBaud <= 0 {
		c.Transport.SerialBaud = DefaultSerialBaud
	}
	if c.Monitor.PollIntervalMS <= 0 {
		c.Monitor.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c AppConfig) Validate() error {
	switch c.Transport.Kind {
	case TransportRTMIDI:
	case TransportSerial:
		if c.Transport.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown transport: %s", c.Transport.Kind)
	}

	if c.Monitor.PollIntervalMS <= 0 {
		return errors.New("poll interval must be positive")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
