// Package config loads the daemon's JSON configuration. Fields omitted
// from the file keep their defaults, so partial configs are safe; the Get*
// methods supply the fallback values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the root configuration. The schema is shared between the file
// on disk and the values the runners consume at startup.
type Config struct {
	// Bus params
	BusDivider  *int `json:"bus_divider,omitempty"`
	TrigLatency *int `json:"trig_latency,omitempty"`

	// UDP terminal endpoint
	UDPListenPort *int    `json:"udp_listen_port,omitempty"`
	UDPRemoteHost *string `json:"udp_remote_host,omitempty"`
	UDPRemotePort *int    `json:"udp_remote_port,omitempty"`

	// Serial bench console
	SerialDevice *string `json:"serial_device,omitempty"`
	SerialBaud   *int    `json:"serial_baud,omitempty"`

	// Sweep log database
	DBPath *string `json:"db_path,omitempty"`
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and stay under the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every provided field. Absent fields pass; they fall back
// to defaults.
func (c *Config) Validate() error {
	if c.BusDivider != nil && *c.BusDivider < 2 {
		return fmt.Errorf("bus_divider must be at least 2, got %d", *c.BusDivider)
	}
	if c.TrigLatency != nil && *c.TrigLatency < 0 {
		return fmt.Errorf("trig_latency must be non-negative, got %d", *c.TrigLatency)
	}
	for name, p := range map[string]*int{
		"udp_listen_port": c.UDPListenPort,
		"udp_remote_port": c.UDPRemotePort,
	} {
		if p != nil && (*p < 1 || *p > 65535) {
			return fmt.Errorf("%s must be in [1,65535], got %d", name, *p)
		}
	}
	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}
	if c.DBPath != nil && *c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty when provided")
	}
	return nil
}

// GetBusDivider returns the bus clock divider or the default.
func (c *Config) GetBusDivider() int {
	if c.BusDivider == nil {
		return 4
	}
	return *c.BusDivider
}

// GetTrigLatency returns the modelled trig primitive latency or the default.
func (c *Config) GetTrigLatency() int {
	if c.TrigLatency == nil {
		return 2
	}
	return *c.TrigLatency
}

// GetUDPListenPort returns the terminal listen port or the default.
func (c *Config) GetUDPListenPort() int {
	if c.UDPListenPort == nil {
		return 15000
	}
	return *c.UDPListenPort
}

// GetUDPRemoteHost returns the terminal peer host or the default.
func (c *Config) GetUDPRemoteHost() string {
	if c.UDPRemoteHost == nil {
		return "127.0.0.1"
	}
	return *c.UDPRemoteHost
}

// GetUDPRemotePort returns the terminal peer port or the default.
func (c *Config) GetUDPRemotePort() int {
	if c.UDPRemotePort == nil {
		return 15001
	}
	return *c.UDPRemotePort
}

// GetSerialDevice returns the bench console device or the default.
func (c *Config) GetSerialDevice() string {
	if c.SerialDevice == nil {
		return "/dev/ttyUSB0"
	}
	return *c.SerialDevice
}

// GetSerialBaud returns the bench console baud rate or the default.
func (c *Config) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 115200
	}
	return *c.SerialBaud
}

// GetDBPath returns the sweep log database path or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "beam_log.db"
	}
	return *c.DBPath
}
