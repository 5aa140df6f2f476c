// Print bed geometry
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package bed describes the printable area of a machine and answers
// containment queries used to clip the model bounding box.
package bed

import (
	"fmt"
	"math"
)

// Shape is the bed geometry as supplied by the printer profile.
// X and Y are the rectangular extents, R is the radius of a circular bed.
type Shape struct {
	X              float64 `json:"x" yaml:"x"`
	Y              float64 `json:"y" yaml:"y"`
	R              float64 `json:"r" yaml:"r"`
	Circular       bool    `json:"circular" yaml:"circular"`
	CenteredOrigin bool    `json:"centeredOrigin" yaml:"centered_origin"`
}

// Bounds is an axis-aligned rectangle in machine coordinates.
type Bounds struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// Default returns a 200x200 corner-origin bed.
func Default() Shape {
	return Shape{X: 200, Y: 200}
}

// Rectangular returns a rectangular bed of the given size.
func Rectangular(x, y float64, centered bool) Shape {
	return Shape{X: x, Y: y, CenteredOrigin: centered}
}

// Round returns a circular bed of radius r. Circular beds always have
// their origin at the centre.
func Round(r float64) Shape {
	return Shape{X: 2 * r, Y: 2 * r, R: r, Circular: true, CenteredOrigin: true}
}

// Validate reports a shape that cannot enclose any point.
func (s Shape) Validate() error {
	if s.Circular {
		if s.R <= 0 {
			return fmt.Errorf("circular bed needs a positive radius, got %v", s.R)
		}
		return nil
	}
	if s.X <= 0 || s.Y <= 0 {
		return fmt.Errorf("rectangular bed needs positive size, got %vx%v", s.X, s.Y)
	}
	return nil
}

// Bounds returns the enclosing rectangle of the bed.
func (s Shape) Bounds() Bounds {
	switch {
	case s.Circular:
		return Bounds{MinX: -s.R, MaxX: s.R, MinY: -s.R, MaxY: s.R}
	case s.CenteredOrigin:
		return Bounds{MinX: -s.X / 2, MaxX: s.X / 2, MinY: -s.Y / 2, MaxY: s.Y / 2}
	default:
		return Bounds{MaxX: s.X, MaxY: s.Y}
	}
}

// Contains reports whether the point lies on the bed. A nil coordinate
// is unconstrained, so a move that only sets X is tested on X alone.
func (s Shape) Contains(x, y *float64) bool {
	b := s.Bounds()
	if x != nil && (math.IsNaN(*x) || *x < b.MinX || *x > b.MaxX) {
		return false
	}
	if y != nil && (math.IsNaN(*y) || *y < b.MinY || *y > b.MaxY) {
		return false
	}
	if s.Circular && x != nil && y != nil {
		return math.Hypot(*x, *y) <= s.R
	}
	return true
}
