// Bed geometry import from printer.cfg
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"math"
	"slices"

	"gcodeviewer-go/pkg/bed"
	"gcodeviewer-go/pkg/log"
)

var kinematicsChoices = []string{
	"cartesian", "corexy", "corexz", "hybrid_corexy", "hybrid_corexz",
	"delta", "rotary_delta", "deltesian", "polar", "winch", "limited_cartesian",
	"limited_corexy", "limited_corexz", "none",
}

// BedFromPrinterConfig derives the bed shape from the kinematics.
// Delta style printers get a circular bed of print_radius (falling back
// to delta_radius). Everything else uses the stepper_x/stepper_y travel
// range; a range symmetric around zero means a centred origin. A
// printer without kinematics and without X/Y steppers gets the default
// bed.
func BedFromPrinterConfig(c *Config) (bed.Shape, error) {
	shape, err := bedFromPrinterConfig(c)
	if err == nil {
		reportUnused(c)
	}
	return shape, err
}

func bedFromPrinterConfig(c *Config) (bed.Shape, error) {
	printer, err := c.GetSection("printer")
	if err != nil {
		return bed.Shape{}, err
	}
	kin, err := printer.GetChoice("kinematics", kinematicsChoices)
	if err != nil {
		return bed.Shape{}, err
	}

	switch kin {
	case "delta", "rotary_delta":
		return circularBed(c, printer)
	case "polar":
		return polarBed(c)
	case "none":
		if !c.HasSection("stepper_x") || !c.HasSection("stepper_y") {
			return bed.Default(), nil
		}
	}

	x, err := c.GetSection("stepper_x")
	if err != nil {
		return bed.Shape{}, err
	}
	y, err := c.GetSection("stepper_y")
	if err != nil {
		return bed.Shape{}, err
	}
	xMin, xMax, err := travel(x)
	if err != nil {
		return bed.Shape{}, err
	}
	yMin, yMax, err := travel(y)
	if err != nil {
		return bed.Shape{}, err
	}

	shape := bed.Rectangular(xMax, yMax, false)
	if symmetric(xMin, xMax) && symmetric(yMin, yMax) {
		shape = bed.Rectangular(xMax-xMin, yMax-yMin, true)
	}
	if err := shape.Validate(); err != nil {
		return bed.Shape{}, NewConfigError("stepper_x", "position_max", err.Error())
	}
	return shape, nil
}

func circularBed(c *Config, printer *Section) (bed.Shape, error) {
	r, err := printer.GetFloat("print_radius", math.NaN())
	if err != nil {
		return bed.Shape{}, err
	}
	if math.IsNaN(r) {
		// delta_radius lives in [printer] for linear deltas
		r, err = printer.GetFloat("delta_radius")
		if err != nil {
			return bed.Shape{}, err
		}
	}
	shape := bed.Round(r)
	if err := shape.Validate(); err != nil {
		return bed.Shape{}, NewConfigError("printer", "print_radius", err.Error())
	}
	return shape, nil
}

// polarBed uses the radial travel of the bed arm (stepper_arm).
func polarBed(c *Config) (bed.Shape, error) {
	arm, err := c.GetSection("stepper_arm")
	if err != nil {
		return bed.Shape{}, err
	}
	_, max, err := travel(arm)
	if err != nil {
		return bed.Shape{}, err
	}
	return bed.Round(max), nil
}

func travel(s *Section) (float64, float64, error) {
	min, err := s.GetFloat("position_min", 0)
	if err != nil {
		return 0, 0, err
	}
	max, err := s.GetFloat("position_max")
	if err != nil {
		return 0, 0, err
	}
	if max <= min {
		return 0, 0, NewConfigError(s.GetName(), "position_max", "must be above position_min")
	}
	return min, max, nil
}

func symmetric(min, max float64) bool {
	return min < 0 && math.Abs(min+max) < 1e-9
}

// reportUnused logs the parts of printer.cfg the bed import skipped.
func reportUnused(c *Config) {
	logger := log.GetLogger("config")
	unused := c.GetUnusedSections()
	logger.WithFields(log.Fields{
		"sections": len(c.GetSectionNames()),
		"unused":   len(unused),
	}).Debug("printer config imported")
	for _, name := range c.GetSectionNames() {
		if slices.Contains(unused, name) {
			continue
		}
		if opts := c.GetSectionOptional(name).GetUnusedOptions(); len(opts) > 0 {
			logger.WithFields(log.Fields{"section": name, "options": opts}).Debug("options not used for bed geometry")
		}
	}
}
