// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/controller"
)

// Radio drivers
const (
	DriverBluetooth = "bluetooth"
	DriverLink      = "link"
	DriverLog       = "log"
)

// Capture sources
const (
	SourceBluetooth = "bluetooth"
	SourceLink      = "link"
)

// Config represents the daemon configuration
type Config struct {
	Log         LogConfig          `yaml:"log"`
	Radio       RadioConfig        `yaml:"radio"`
	Scheduler   SchedulerConfig    `yaml:"scheduler"`
	State       StateConfig        `yaml:"state"`
	Capture     CaptureConfig      `yaml:"capture"`
	Script      string             `yaml:"script"`
	Controllers []ControllerConfig `yaml:"controllers"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// RadioConfig selects and configures the advertising radio
type RadioConfig struct {
	Driver   string     `yaml:"driver"`   // bluetooth, link or log
	Adapter  string     `yaml:"adapter"`  // host adapter id, empty for the default
	Interval Duration   `yaml:"interval"` // advertising interval (bluetooth driver)
	Link     LinkConfig `yaml:"link"`
}

// LinkConfig locates an advertising bridge, on a serial port or a WebSocket
type LinkConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// SchedulerConfig contains advertiser settings
type SchedulerConfig struct {
	Tick Duration `yaml:"tick"`
}

// StateConfig locates the controller state database. An empty path keeps
// rolling state in memory only.
type StateConfig struct {
	Path string `yaml:"path"`
}

// CaptureConfig enables identification of advertisements heard nearby
type CaptureConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Source         string   `yaml:"source"` // bluetooth or link
	IgnoreBLEParam bool     `yaml:"ignore_ble_param"`
	DedupeTTL      Duration `yaml:"dedupe_ttl"`
}

// ControllerConfig describes one emulated remote
type ControllerConfig struct {
	Name          string    `yaml:"name"`
	Encoding      string    `yaml:"encoding"`
	Variant       string    `yaml:"variant"`
	ForcedID      *HexID    `yaml:"forced_id"`
	UseUUID       bool      `yaml:"use_uuid"`
	Index         uint8     `yaml:"index"`
	Seed          uint16    `yaml:"seed"`
	MinTxDuration Duration  `yaml:"min_tx_duration"`
	MaxTxDuration Duration  `yaml:"max_tx_duration"`
	SeqDuration   *Duration `yaml:"seq_duration"` // 0 disables sequencing
}

// CodecID returns the registry id of the selected codec
func (c *ControllerConfig) CodecID() string {
	return c.Encoding + " - " + c.Variant
}

// Controller converts the entry to controller settings
func (c *ControllerConfig) Controller() controller.Config {
	cfg := controller.Config{
		Name:          c.Name,
		Codec:         c.CodecID(),
		UseUUID:       c.UseUUID,
		Index:         c.Index,
		Seed:          c.Seed,
		MinTxDuration: c.MinTxDuration.Duration(),
		MaxTxDuration: c.MaxTxDuration.Duration(),
	}
	if c.ForcedID != nil {
		id := uint32(*c.ForcedID)
		cfg.ForcedID = &id
	}
	if c.SeqDuration != nil {
		cfg.SeqDuration = c.SeqDuration.Duration()
		if cfg.SeqDuration == 0 {
			cfg.SeqDuration = -1
		}
	}
	return cfg
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// HexID is a transmitter id written as an integer or a "0x" string
type HexID uint32

// UnmarshalYAML implements yaml.Unmarshaler for HexID
func (h *HexID) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*h = HexID(v)
	return nil
}

// MarshalYAML writes the id in hex
func (h HexID) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%X", uint32(h)), nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// zhijiaDefaultID is the id Zhijia remotes are paired with out of the box
const zhijiaDefaultID = HexID(0xC630B800)

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Radio defaults
	if cfg.Radio.Driver == "" {
		cfg.Radio.Driver = DriverBluetooth
	}
	if cfg.Radio.Interval == 0 {
		cfg.Radio.Interval = Duration(20 * time.Millisecond)
	}
	if cfg.Radio.Link.Baud == 0 {
		cfg.Radio.Link.Baud = 115200
	}

	if cfg.Scheduler.Tick == 0 {
		cfg.Scheduler.Tick = Duration(controller.DefaultTickInterval)
	}

	// Capture defaults
	if cfg.Capture.Source == "" {
		cfg.Capture.Source = SourceBluetooth
	}
	if cfg.Capture.DedupeTTL == 0 {
		cfg.Capture.DedupeTTL = Duration(5 * time.Second)
	}

	// Controller defaults follow the receivers sold with each family
	for i := range cfg.Controllers {
		c := &cfg.Controllers[i]
		if c.Variant == "" {
			if c.Encoding == bleadv.FamilyZhijia {
				c.Variant = "v2"
			} else {
				c.Variant = "v3"
			}
		}
		if c.ForcedID == nil && !c.UseUUID && c.Encoding == bleadv.FamilyZhijia {
			id := zhijiaDefaultID
			c.ForcedID = &id
		}
	}
}

// Validate checks the configuration against registry
func (cfg *Config) Validate(registry *bleadv.Registry) error {
	var errs []error

	switch cfg.Radio.Driver {
	case DriverBluetooth, DriverLog:
	case DriverLink:
		if cfg.Radio.Link.Port == "" && cfg.Radio.Link.URL == "" {
			errs = append(errs, errors.New("radio.link: either port or url must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("radio.driver: unknown driver %q", cfg.Radio.Driver))
	}

	if cfg.Capture.Enabled {
		switch cfg.Capture.Source {
		case SourceBluetooth:
		case SourceLink:
			if cfg.Radio.Driver != DriverLink {
				errs = append(errs, errors.New("capture.source: link capture needs the link radio driver"))
			}
		default:
			errs = append(errs, fmt.Errorf("capture.source: unknown source %q", cfg.Capture.Source))
		}
	}

	names := make(map[string]bool, len(cfg.Controllers))
	for i, c := range cfg.Controllers {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("controllers[%d]: name is required", i))
		} else if names[c.Name] {
			errs = append(errs, fmt.Errorf("controllers[%d]: duplicate name %q", i, c.Name))
		}
		names[c.Name] = true

		if _, err := registry.Lookup(c.CodecID()); err != nil {
			errs = append(errs, fmt.Errorf("controllers[%d]: %w", i, err))
		}
		if c.ForcedID != nil && c.UseUUID {
			errs = append(errs, fmt.Errorf("controllers[%d]: forced_id and use_uuid are exclusive", i))
		}
		if c.MaxTxDuration < 0 || c.MinTxDuration < 0 {
			errs = append(errs, fmt.Errorf("controllers[%d]: durations must be positive", i))
		}
	}
	return errors.Join(errs...)
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
