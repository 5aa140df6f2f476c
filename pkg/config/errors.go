// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package config reads the viewer's YAML settings and imports bed
// geometry from a Klipper printer.cfg.
package config

import (
	"fmt"

	"gcodeviewer-go/pkg/errors"
)

// ConfigError is the HostError produced by this package; it carries a
// CONFIG_* code plus the section/option context.
type ConfigError = errors.HostError

// NewConfigError creates a new ConfigError.
func NewConfigError(section, option, message string) *ConfigError {
	return errors.ConfigValidationError(section, option, message)
}

// WrapError wraps an existing error with config context.
func WrapError(section, option string, err error) *ConfigError {
	return errors.Wrap(err, errors.ErrConfigSection, "cannot read configuration").SetSection(section).SetOption(option)
}

// ErrMissingOption returns an error for a required but missing option.
func ErrMissingOption(section, option string) *ConfigError {
	return errors.New(errors.ErrConfigOption, "must be specified").SetSection(section).SetOption(option)
}

// ErrMissingSection returns an error for a missing section.
func ErrMissingSection(section string) *ConfigError {
	return errors.ConfigSectionError(section)
}

// ErrInvalidValue returns an error for an invalid value.
func ErrInvalidValue(section, option, value, expected string) *ConfigError {
	msg := fmt.Sprintf("invalid value '%s', expected %s", value, expected)
	return errors.New(errors.ErrConfigType, msg).SetSection(section).SetOption(option)
}

// ErrInvalidChoice returns an error for an invalid choice value.
func ErrInvalidChoice(section, option, value string, choices []string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}
