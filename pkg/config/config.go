// Package config loads the odometer plugin configuration from YAML:
// the axis table (letter + steps-per-mm), NVS geometry and logging.
//
// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/grblHAL/Plugin-odometer/pkg/hal"
	"github.com/grblHAL/Plugin-odometer/pkg/nvs"
)

type Config struct {
	Axes []AxisConfig `yaml:"axes"`
	NVS  NVSConfig    `yaml:"nvs"`
	Log  LogConfig    `yaml:"log"`

	// TaskQueue is the foreground dispatcher queue capacity.
	TaskQueue int `yaml:"task_queue"`
}

type AxisConfig struct {
	Letter     string  `yaml:"letter"`
	StepsPerMM float32 `yaml:"steps_per_mm"`
}

type NVSConfig struct {
	// Path of the backing file; empty selects the in-memory store.
	Path string `yaml:"path"`
	Type string `yaml:"type"`
	Size uint32 `yaml:"size"`

	// Storage already claimed by the firmware settings area and the
	// driver, unavailable to the odometer.
	FirmwareReserved uint32 `yaml:"firmware_reserved"`
	DriverReserved   uint32 `yaml:"driver_reserved"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given: a three
// axis machine with common steps-per-mm and a 4 KiB FRAM store.
func Default() *Config {
	return &Config{
		Axes: []AxisConfig{
			{Letter: "X", StepsPerMM: 80},
			{Letter: "Y", StepsPerMM: 80},
			{Letter: "Z", StepsPerMM: 400},
		},
		NVS: NVSConfig{
			Type:             "fram",
			Size:             4096,
			FirmwareReserved: 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		TaskQueue: 32,
	}
}

// Load reads and validates a YAML configuration file. Options absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Reload reparses a configuration file, installs the fresh settings on
// the HAL and fires the settings-changed event so observers can re-hook.
// On error the previous settings stay in place and no event is fired.
func Reload(path string, h *hal.HAL, events *hal.Events) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	settings := cfg.HALSettings()
	if h != nil {
		h.Settings = settings
	}
	if events != nil {
		events.PublishSettingsChanged(settings)
	}
	return cfg, nil
}

// Parse parses and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Axes) == 0 {
		return fmt.Errorf("config: no axes configured")
	}
	if len(c.Axes) > hal.MaxAxes {
		return fmt.Errorf("config: %d axes exceeds maximum of %d", len(c.Axes), hal.MaxAxes)
	}
	seen := make(map[string]bool, len(c.Axes))
	for i, axis := range c.Axes {
		if axis.Letter == "" {
			return fmt.Errorf("config: axis %d: missing letter", i)
		}
		if seen[axis.Letter] {
			return fmt.Errorf("config: duplicate axis letter %q", axis.Letter)
		}
		seen[axis.Letter] = true
		if axis.StepsPerMM <= 0 {
			return fmt.Errorf("config: axis %s: steps_per_mm must be positive, got %v", axis.Letter, axis.StepsPerMM)
		}
	}

	if _, err := nvs.ParseType(c.NVS.Type); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.NVS.Size == 0 {
		return fmt.Errorf("config: nvs size must be positive")
	}
	if c.NVS.FirmwareReserved+c.NVS.DriverReserved >= c.NVS.Size {
		return fmt.Errorf("config: reserved areas (%d) leave no nvs space (size %d)",
			c.NVS.FirmwareReserved+c.NVS.DriverReserved, c.NVS.Size)
	}

	if c.TaskQueue < 0 {
		return fmt.Errorf("config: task_queue must not be negative")
	}
	return nil
}

// HALSettings converts the axis table into the live settings value the
// firmware publishes on reload.
func (c *Config) HALSettings() *hal.Settings {
	s := &hal.Settings{Axes: make([]hal.AxisSettings, len(c.Axes))}
	for i, axis := range c.Axes {
		s.Axes[i] = hal.AxisSettings{
			Letter:     axis.Letter,
			StepsPerMM: axis.StepsPerMM,
		}
	}
	return s
}

// StorageType returns the parsed NVS technology tag.
func (c *Config) StorageType() nvs.Type {
	t, _ := nvs.ParseType(c.NVS.Type)
	return t
}
