package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/link"
)

// DefaultConfigPath is the path to the canonical daemon defaults file.
// This is the single source of truth for all default daemon settings.
const DefaultConfigPath = "config/junction.defaults.json"

// Config represents the root configuration for the controller daemon.
// The signal plan fields match the /api/config endpoint so the same JSON
// can be used for both startup configuration and runtime updates.
type Config struct {
	// Signal plan params. The red-yellow interval is pinned to one tick
	// by the engine and has no knob here.
	GreenStraight   *int `json:"green_straight,omitempty"`
	GreenLeft       *int `json:"green_left,omitempty"`
	Yellow          *int `json:"yellow,omitempty"`
	AllRed          *int `json:"all_red,omitempty"`
	ExtendThreshold *int `json:"extension_threshold,omitempty"`
	MaxExtension    *int `json:"max_extension,omitempty"`
	SkipLimit       *int `json:"skip_limit,omitempty"`

	// Free-run params
	FreeRun      *bool   `json:"free_run,omitempty"`
	StepInterval *string `json:"step_interval,omitempty"` // duration string like "1s"

	// Serial link params
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`

	// Monitor params
	ListenAddr *string `json:"listen_addr,omitempty"`

	// Recording params
	DBPath *string `json:"db_path,omitempty"`
	Record *bool   `json:"record,omitempty"`
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// EmptyConfig returns a Config with all fields set to nil.
// Use LoadConfig to load actual values from a file.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field set to its stock value.
// The accessor fallbacks on an empty Config agree with these values.
func DefaultConfig() *Config {
	plan := engine.DefaultTiming()
	return &Config{
		GreenStraight:   ptrInt(int(plan.GreenStraight)),
		GreenLeft:       ptrInt(int(plan.GreenLeft)),
		Yellow:          ptrInt(int(plan.Yellow)),
		AllRed:          ptrInt(int(plan.AllRed)),
		ExtendThreshold: ptrInt(int(plan.ExtendThreshold)),
		MaxExtension:    ptrInt(int(plan.MaxExtension)),
		SkipLimit:       ptrInt(int(plan.SkipLimit)),
		FreeRun:         ptrBool(false),
		StepInterval:    ptrString("1s"),
		SerialPort:      ptrString(""),
		BaudRate:        ptrInt(115200),
		DataBits:        ptrInt(8),
		StopBits:        ptrInt(1),
		Parity:          ptrString("N"),
		ListenAddr:      ptrString(":8080"),
		DBPath:          ptrString("junction_runs.db"),
		Record:          ptrBool(false),
	}
}

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The accessor methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical daemon defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *Config {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/ or cmd/junction/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	// Signal plan values are tick counts and must not be negative; the
	// engine treats a zero interval as one to be left on the next tick.
	planFields := []struct {
		name  string
		value *int
	}{
		{"green_straight", c.GreenStraight},
		{"green_left", c.GreenLeft},
		{"yellow", c.Yellow},
		{"all_red", c.AllRed},
		{"extension_threshold", c.ExtendThreshold},
		{"max_extension", c.MaxExtension},
		{"skip_limit", c.SkipLimit},
	}
	for _, f := range planFields {
		if f.value != nil && *f.value < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", f.name, *f.value)
		}
	}

	// Validate StepInterval can be parsed if set
	if c.StepInterval != nil && *c.StepInterval != "" {
		d, err := time.ParseDuration(*c.StepInterval)
		if err != nil {
			return fmt.Errorf("invalid step_interval '%s': %w", *c.StepInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("step_interval must not be negative, got %s", *c.StepInterval)
		}
	}

	// Serial options share the link package's rules.
	if _, err := c.PortOptions().Normalize(); err != nil {
		return fmt.Errorf("invalid serial options: %w", err)
	}

	return nil
}

// SignalPlan returns the engine timing with any configured overrides
// applied over the stock plan.
func (c *Config) SignalPlan() engine.Timing {
	t := engine.DefaultTiming()
	if c.GreenStraight != nil {
		t.GreenStraight = uint32(*c.GreenStraight)
	}
	if c.GreenLeft != nil {
		t.GreenLeft = uint32(*c.GreenLeft)
	}
	if c.Yellow != nil {
		t.Yellow = uint32(*c.Yellow)
	}
	if c.AllRed != nil {
		t.AllRed = uint32(*c.AllRed)
	}
	if c.ExtendThreshold != nil {
		t.ExtendThreshold = uint32(*c.ExtendThreshold)
	}
	if c.MaxExtension != nil {
		t.MaxExtension = uint32(*c.MaxExtension)
	}
	if c.SkipLimit != nil {
		t.SkipLimit = uint32(*c.SkipLimit)
	}
	return t.Normalize()
}

// PortOptions assembles the serial parameters for opening a controller link.
func (c *Config) PortOptions() link.PortOptions {
	return link.PortOptions{
		BaudRate: c.GetBaudRate(),
		DataBits: c.GetDataBits(),
		StopBits: c.GetStopBits(),
		Parity:   c.GetParity(),
	}
}

// GetStepInterval parses and returns the StepInterval as a time.Duration.
func (c *Config) GetStepInterval() time.Duration {
	if c.StepInterval == nil || *c.StepInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.StepInterval)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetFreeRun returns the free_run value or the default.
func (c *Config) GetFreeRun() bool {
	if c.FreeRun == nil {
		return false // default: steps come from the wire session
	}
	return *c.FreeRun
}

// GetSerialPort returns the serial_port value or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return "" // default: no serial link, the session runs on stdio
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *Config) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetDataBits returns the data_bits value or the default.
func (c *Config) GetDataBits() int {
	if c.DataBits == nil {
		return 8
	}
	return *c.DataBits
}

// GetStopBits returns the stop_bits value or the default.
func (c *Config) GetStopBits() int {
	if c.StopBits == nil {
		return 1
	}
	return *c.StopBits
}

// GetParity returns the parity value or the default.
func (c *Config) GetParity() string {
	if c.Parity == nil || *c.Parity == "" {
		return "N"
	}
	return *c.Parity
}

// GetListenAddr returns the monitor listen address or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080" // default
	}
	return *c.ListenAddr
}

// GetDBPath returns the run store path or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "junction_runs.db" // default
	}
	return *c.DBPath
}

// GetRecord returns the record value or the default.
func (c *Config) GetRecord() bool {
	if c.Record == nil {
		return false // default: recording disabled
	}
	return *c.Record
}
