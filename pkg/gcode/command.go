// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package gcode interprets G-code text one line at a time, tracking the
// machine state needed to turn motion commands into drawable records.
package gcode

import (
	"encoding/json"
	"math"
)

// MoveType classifies a record for speed statistics.
type MoveType int

const (
	MoveTravel MoveType = iota
	MoveExtrude
	MoveRetract
	MoveUnknown
)

// String returns the name used on the wire.
func (m MoveType) String() string {
	switch m {
	case MoveTravel:
		return "move"
	case MoveExtrude:
		return "extrude"
	case MoveRetract:
		return "retract"
	default:
		return "unknown"
	}
}

// MarshalText lets MoveType key JSON maps.
func (m MoveType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MoveTypes lists the classifications that carry speed statistics.
var MoveTypes = []MoveType{MoveExtrude, MoveRetract, MoveTravel}

// Command is the record emitted for one interpreted line. X, Y and Z
// are nil when the line did not touch that axis. PrevX and PrevY hold
// the position before the move, PrevZ the working height after it.
type Command struct {
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Z         *float64 `json:"z,omitempty"`
	I         *float64 `json:"i,omitempty"`
	J         *float64 `json:"j,omitempty"`
	Direction int      `json:"direction,omitempty"`
	Extrude   bool     `json:"extrude"`
	Retract   int      `json:"retract"`
	NoMove    bool     `json:"noMove"`
	Extrusion float64  `json:"extrusion"`
	PrevX     float64  `json:"prevX"`
	PrevY     float64  `json:"prevY"`
	PrevZ     float64  `json:"prevZ"`
	Speed     float64  `json:"speed"`
	Line      int      `json:"gcodeLine"`
	// Percentage is the input progress when the line was read.
	Percentage float64 `json:"percentage"`
	Tool       int     `json:"tool"`
}

// Type classifies the record. A record that claims both extrusion and
// retraction, or a displacement record that moves no axis, is
// MoveUnknown.
func (c *Command) Type() MoveType {
	switch {
	case c.Extrude && c.Retract == 0:
		return MoveExtrude
	case c.Extrude:
		return MoveUnknown
	case c.Retract != 0:
		return MoveRetract
	case !c.NoMove && c.X == nil && c.Y == nil && c.Z == nil:
		return MoveUnknown
	default:
		return MoveTravel
	}
}

// HasDisplacement reports whether the record names any axis.
func (c *Command) HasDisplacement() bool {
	return c.X != nil || c.Y != nil || c.Z != nil
}

// EndX returns the X after the move.
func (c *Command) EndX() float64 {
	if c.X != nil {
		return *c.X
	}
	return c.PrevX
}

// EndY returns the Y after the move.
func (c *Command) EndY() float64 {
	if c.Y != nil {
		return *c.Y
	}
	return c.PrevY
}

// Distance is the XY length of the move.
func (c *Command) Distance() float64 {
	return math.Hypot(c.EndX()-c.PrevX, c.EndY()-c.PrevY)
}

// Clone returns a deep copy so that snapshots survive later edits.
func (c *Command) Clone() *Command {
	out := *c
	out.X = cloneFloat(c.X)
	out.Y = cloneFloat(c.Y)
	out.Z = cloneFloat(c.Z)
	out.I = cloneFloat(c.I)
	out.J = cloneFloat(c.J)
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// String renders the record as JSON, for logs.
func (c *Command) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "<command>"
	}
	return string(b)
}
