// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import "math"

// Options are the per-job interpreter settings.
type Options struct {
	// ToolOffsets is indexed by tool number; missing tools get {0,0}.
	ToolOffsets []Offset
	// G90InfluencesExtruder makes G90/G91 also switch the extruder mode.
	G90InfluencesExtruder bool
}

// Interpreter turns G-code lines into Command records.
type Interpreter struct {
	opts  Options
	state *MachineState
}

// NewInterpreter creates an interpreter in the power-on state.
func NewInterpreter(opts Options) *Interpreter {
	it := &Interpreter{opts: opts, state: NewMachineState()}
	it.state.Offset = it.toolOffset(0)
	return it
}

// State exposes the machine state, mostly for tests.
func (it *Interpreter) State() *MachineState {
	return it.state
}

func (it *Interpreter) toolOffset(tool int) Offset {
	if tool >= 0 && tool < len(it.opts.ToolOffsets) {
		return it.opts.ToolOffsets[tool]
	}
	return Offset{}
}

// Interpret consumes one line. It returns nil for comments, blank lines,
// state-only commands and anything it does not recognize. index is the
// 1-based source line number.
func (it *Interpreter) Interpret(text string, percentage float64, index int) *Command {
	l, ok := tokenize(text)
	if !ok {
		return nil
	}
	letter, num, ok := code(l.name)
	if !ok {
		return nil
	}

	var cmd *Command
	switch {
	case letter == 'G' && num >= 0 && num <= 3:
		cmd = it.move(l, num)
	case letter == 'G' && num == 90:
		it.setPositioning(Absolute)
	case letter == 'G' && num == 91:
		it.setPositioning(Relative)
	case letter == 'M' && num == 82:
		it.state.ExtruderPositioning = Absolute
	case letter == 'M' && num == 83:
		it.state.ExtruderPositioning = Relative
	case letter == 'M' && num == 101:
		it.state.DCExtrude = true
	case letter == 'M' && num == 103:
		it.state.DCExtrude = false
	case letter == 'G' && num == 92:
		cmd = it.setPosition(l)
	case letter == 'G' && num == 28:
		cmd = it.home(l)
	case letter == 'T':
		it.selectTool(num)
	}
	if cmd != nil {
		cmd.Line = index
		cmd.Percentage = percentage
	}
	return cmd
}

func (it *Interpreter) setPositioning(m PositionMode) {
	it.state.Positioning = m
	if it.opts.G90InfluencesExtruder {
		it.state.ExtruderPositioning = m
	}
}

func (it *Interpreter) selectTool(tool int) {
	it.state.Tool = tool
	it.state.ActiveTool()
	it.state.Offset = it.toolOffset(tool)
}

// move handles G0-G3.
func (it *Interpreter) move(l line, num int) *Command {
	s := it.state
	ts := s.ActiveTool()
	cmd := &Command{PrevX: s.X, PrevY: s.Y, Tool: s.Tool}
	switch num {
	case 2:
		cmd.Direction = -1
	case 3:
		cmd.Direction = 1
	}

	for _, w := range l.words {
		v, ok := w.value()
		if !ok {
			continue
		}
		switch w.letter {
		case 'x':
			x := v + s.Offset.X
			if s.Positioning == Relative {
				x += s.X
			}
			cmd.X = &x
		case 'y':
			y := v + s.Offset.Y
			if s.Positioning == Relative {
				y += s.Y
			}
			cmd.Y = &y
		case 'z':
			z := v
			if s.Positioning == Relative {
				z = s.Z + v
			}
			cmd.Z = &z
		case 'e', 'a', 'b', 'c':
			s.AssumeNonDC = true
			r := registerIndex[w.letter]
			if s.RelativeExtrusion() {
				ts.Delta = v
				ts.Registers[r] += v
			} else {
				ts.Delta = v - ts.Registers[r]
				ts.Registers[r] = v
			}
			cmd.Extrude, cmd.Retract = extrusionSign(ts)
		case 'f':
			s.LastFeedrate = v
		case 'i':
			i := v
			cmd.I = &i
		case 'j':
			j := v
			cmd.J = &j
		}
	}

	if s.DCExtrude && !s.AssumeNonDC {
		cmd.Extrude = true
		ts.Delta = math.Hypot(cmd.EndX()-s.X, cmd.EndY()-s.Y)
	}
	if cmd.Extrude || cmd.Retract != 0 {
		cmd.Extrusion = ts.Delta
	}
	cmd.Speed = s.LastFeedrate

	if !cmd.HasDisplacement() && cmd.Retract == 0 {
		return nil
	}
	it.advance(cmd)
	return cmd
}

// extrusionSign applies the retraction rule to the tool's last delta.
func extrusionSign(ts *ToolState) (extrude bool, retract int) {
	switch {
	case ts.Delta < 0:
		ts.Retracted = true
		return false, -1
	case ts.Delta == 0:
		return false, 0
	case ts.Retracted:
		ts.Retracted = false
		return false, 1
	default:
		return true, 0
	}
}

// advance moves the machine to the record's end point and stamps the
// working height.
func (it *Interpreter) advance(cmd *Command) {
	s := it.state
	if cmd.X != nil {
		s.X = *cmd.X
	}
	if cmd.Y != nil {
		s.Y = *cmd.Y
	}
	if cmd.Z != nil {
		s.Z = *cmd.Z
		s.ZKnown = true
	}
	cmd.PrevZ = s.Z
}

// setPosition handles G92. The record is flagged NoMove so that layer
// bucketing sees a changed Z without treating it as travel.
func (it *Interpreter) setPosition(l line) *Command {
	s := it.state
	ts := s.ActiveTool()
	cmd := &Command{PrevX: s.X, PrevY: s.Y, Tool: s.Tool, NoMove: true, Speed: s.LastFeedrate}

	if len(l.words) == 0 {
		zero := func() *float64 { v := 0.0; return &v }
		cmd.X, cmd.Y, cmd.Z = zero(), zero(), zero()
		ts.Registers = [4]float64{}
	}
	for _, w := range l.words {
		v, ok := w.value()
		if !ok {
			continue
		}
		switch w.letter {
		case 'x':
			x := v + s.Offset.X
			cmd.X = &x
		case 'y':
			y := v + s.Offset.Y
			cmd.Y = &y
		case 'z':
			z := v
			cmd.Z = &z
		case 'e', 'a', 'b', 'c':
			// firmware resets an absolute register to zero whatever the value
			if !s.RelativeExtrusion() {
				v = 0
			}
			ts.Registers[registerIndex[w.letter]] = v
		}
	}

	if !cmd.HasDisplacement() {
		return nil
	}
	it.advance(cmd)
	return cmd
}

// home handles G28: a bare G28 homes every axis, otherwise only the
// named axes go to zero. The first home establishes Z even when Z is not
// named so that a ground layer exists.
func (it *Interpreter) home(l line) *Command {
	s := it.state
	cmd := &Command{PrevX: s.X, PrevY: s.Y, Tool: s.Tool, Speed: s.LastFeedrate}
	zero := func() *float64 { v := 0.0; return &v }

	if len(l.words) == 0 {
		cmd.X, cmd.Y, cmd.Z = zero(), zero(), zero()
	}
	for _, w := range l.words {
		switch w.letter {
		case 'x':
			cmd.X = zero()
		case 'y':
			cmd.Y = zero()
		case 'z':
			cmd.Z = zero()
		}
	}
	if cmd.Z == nil && !s.ZKnown {
		cmd.Z = zero()
	}
	if !cmd.HasDisplacement() {
		return nil
	}
	it.advance(cmd)
	return cmd
}
