// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

// PositionMode is absolute or relative coordinate interpretation.
type PositionMode int

const (
	Absolute PositionMode = iota
	Relative
)

func (m PositionMode) String() string {
	if m == Relative {
		return "relative"
	}
	return "absolute"
}

// DefaultFeedrate is used until the first F word, in units per minute.
const DefaultFeedrate = 4000

// Offset is a tool nozzle offset applied to X and Y.
type Offset struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// extruder register letters: E and the alternates A, B, C.
var registerIndex = map[byte]int{'e': 0, 'a': 1, 'b': 2, 'c': 3}

// ToolState is the per-tool extrusion bookkeeping.
type ToolState struct {
	// Registers holds the last raw value of E, A, B and C.
	Registers [4]float64
	// Delta is the last computed extrusion delta.
	Delta float64
	// Retracted is set by a retraction and cleared by the next prime.
	Retracted bool
}

// MachineState is everything the interpreter carries between lines.
type MachineState struct {
	// X, Y, Z is the current position. Z is only meaningful once ZKnown.
	X, Y, Z float64
	ZKnown  bool

	Positioning         PositionMode
	ExtruderPositioning PositionMode

	Tool   int
	Offset Offset
	Tools  map[int]*ToolState

	LastFeedrate float64

	// DC extruder mode (M101/M103). Any explicit extrusion word turns
	// the synthesized extrusion off for the rest of the job.
	DCExtrude   bool
	AssumeNonDC bool
}

// NewMachineState returns the power-on state.
func NewMachineState() *MachineState {
	return &MachineState{
		Tools:        map[int]*ToolState{0: {}},
		LastFeedrate: DefaultFeedrate,
	}
}

// ActiveTool returns the state of the selected tool, creating it.
func (s *MachineState) ActiveTool() *ToolState {
	ts, ok := s.Tools[s.Tool]
	if !ok {
		ts = &ToolState{}
		s.Tools[s.Tool] = ts
	}
	return ts
}

// RelativeExtrusion reports whether E words are deltas.
func (s *MachineState) RelativeExtrusion() bool {
	return s.Positioning == Relative || s.ExtruderPositioning == Relative
}
