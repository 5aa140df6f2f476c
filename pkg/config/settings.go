// Service settings
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gcodeviewer-go/pkg/bed"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/gcode"
)

// Settings is the YAML service configuration.
type Settings struct {
	Server ServerSettings `yaml:"server"`
	Log    LogSettings    `yaml:"log"`
	Job    JobDefaults    `yaml:"job"`
	// PrinterConfig optionally names a printer.cfg to take the bed from.
	PrinterConfig string `yaml:"printer_config"`
}

type ServerSettings struct {
	Listen        string        `yaml:"listen"`
	WebsocketPath string        `yaml:"websocket_path"`
	GCodeRoot     string        `yaml:"gcode_root"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`

	// Basic auth for /metrics; empty disables it.
	MetricsUser     string `yaml:"metrics_user"`
	MetricsPassword string `yaml:"metrics_password"`
}

type LogSettings struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// JobDefaults are the options a parse job starts from before the
// client's own options are applied.
type JobDefaults struct {
	ToolOffsets           []gcode.Offset `yaml:"tool_offsets"`
	Bed                   *bed.Shape     `yaml:"bed"`
	IgnoreOutsideBed      bool           `yaml:"ignore_outside_bed"`
	G90InfluencesExtruder bool           `yaml:"g90_influences_extruder"`
	Compress              bool           `yaml:"compress"`
	ProgressThreshold     float64        `yaml:"progress_threshold"`
	SkipUntil             string         `yaml:"skip_until"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	s := &Settings{}
	applyDefaults(s)
	return s
}

// LoadSettings reads path. An empty path yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigSection, "cannot read settings").SetSource(path)
	}
	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigType, "invalid settings file").SetSource(path)
	}
	applyDefaults(s)
	if s.Job.Bed != nil {
		if err := s.Job.Bed.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigValidation, "invalid job bed").SetSource(path)
		}
	}
	return s, nil
}

func applyDefaults(s *Settings) {
	if s.Server.Listen == "" {
		s.Server.Listen = ":7130"
	}
	if s.Server.WebsocketPath == "" {
		s.Server.WebsocketPath = "/websocket"
	}
	if s.Server.FetchTimeout == 0 {
		s.Server.FetchTimeout = 5 * time.Minute
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "text"
	}
	if s.Log.MaxSizeMB == 0 {
		s.Log.MaxSizeMB = 10
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 5
	}
	if s.Job.ProgressThreshold == 0 {
		s.Job.ProgressThreshold = 2
	}
}

// JobBed returns the bed for new jobs. An explicit job bed wins, then
// the printer.cfg, then bed.Default().
func (s *Settings) JobBed() (bed.Shape, error) {
	if s.Job.Bed != nil {
		return *s.Job.Bed, nil
	}
	if s.PrinterConfig == "" {
		return bed.Default(), nil
	}
	c, err := Load(s.PrinterConfig)
	if err != nil {
		return bed.Shape{}, err
	}
	return BedFromPrinterConfig(c)
}
