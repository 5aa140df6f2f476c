// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package model

import (
	"sort"

	"gcodeviewer-go/pkg/gcode"
)

// pendingMove is a record held back while a Z-lift is unresolved.
type pendingMove struct {
	cmd *gcode.Command
	z   float64
}

// lift tracks a non-extruding Z change that may be a travel hop rather
// than a new layer.
type lift struct {
	baseZ   float64
	maxZ    float64
	base    int
	pending []pendingMove
}

// Builder assigns records to layers. A height maps to one layer for
// the whole job (first seen wins), layers are never removed, and the
// order of records within a layer follows the input.
type Builder struct {
	layers  []*Layer
	zIndex  map[float64]int
	current int
	z       float64
	lift    *lift

	ready map[int]struct{}
}

// NewBuilder returns an empty model at Z=0.
func NewBuilder() *Builder {
	return &Builder{
		zIndex:  make(map[float64]int),
		current: -1,
		ready:   make(map[int]struct{}),
	}
}

// Add files one record.
func (b *Builder) Add(cmd *gcode.Command) error {
	z := cmd.PrevZ

	// G92 style records re-base the height without starting a layer
	if cmd.NoMove {
		b.z = z
		if b.lift != nil {
			b.lift.pending = append(b.lift.pending, pendingMove{cmd, z})
			return nil
		}
		return b.place(cmd, b.currentOr(z))
	}

	changed := z != b.z
	if changed {
		if !cmd.Extrude && b.lift == nil {
			b.lift = &lift{baseZ: b.z, maxZ: b.z, base: b.current}
		}
		if b.lift != nil && z > b.lift.maxZ {
			b.lift.maxZ = z
		}
		b.z = z
	}

	var target int
	switch {
	case b.lift != nil:
		if !cmd.Extrude {
			b.lift.pending = append(b.lift.pending, pendingMove{cmd, z})
			return nil
		}
		var err error
		if target, err = b.resolveLift(z); err != nil {
			return err
		}
	case changed:
		target = b.layerFor(z)
	default:
		target = b.currentOr(z)
	}
	return b.place(cmd, target)
}

// resolveLift is called when extrusion resumes at height z. Below the
// highest lifted point the hop is undone and everything buffered joins
// the layer the lift started from; otherwise the buffered records
// become layers of their own. It returns the layer for the extruding
// record.
func (b *Builder) resolveLift(z float64) (int, error) {
	l := b.lift
	b.lift = nil

	if z < l.maxZ {
		base := l.base
		if base < 0 {
			base = b.layerFor(l.baseZ)
		}
		for _, p := range l.pending {
			if err := b.place(p.cmd, base); err != nil {
				return 0, err
			}
		}
		if z == l.baseZ {
			return base, nil
		}
		return b.layerFor(z), nil
	}

	if err := b.materialize(l.pending); err != nil {
		return 0, err
	}
	return b.layerFor(z), nil
}

func (b *Builder) materialize(pending []pendingMove) error {
	for _, p := range pending {
		if err := b.place(p.cmd, b.layerFor(p.z)); err != nil {
			return err
		}
	}
	return nil
}

// Finish resolves an open lift as real layers and marks the active
// layer ready.
func (b *Builder) Finish() error {
	if b.lift != nil {
		pending := b.lift.pending
		b.lift = nil
		if err := b.materialize(pending); err != nil {
			return err
		}
	}
	if b.current >= 0 {
		b.ready[b.current] = struct{}{}
	}
	return nil
}

func (b *Builder) currentOr(z float64) int {
	if b.current >= 0 {
		return b.current
	}
	return b.layerFor(z)
}

// layerFor returns the layer for height z, creating it on first use.
func (b *Builder) layerFor(z float64) int {
	if idx, ok := b.zIndex[z]; ok {
		return idx
	}
	idx := len(b.layers)
	b.layers = append(b.layers, &Layer{Index: idx, Z: z})
	b.zIndex[z] = idx
	return idx
}

// place appends to layer idx. Leaving a layer marks it ready; a layer
// that is reopened later is marked again when left.
func (b *Builder) place(cmd *gcode.Command, idx int) error {
	if idx != b.current {
		if b.current >= 0 {
			b.ready[b.current] = struct{}{}
		}
		b.current = idx
	}
	return b.layers[idx].append(cmd)
}

// Drain returns, in ascending order, the layers that became ready since
// the last call.
func (b *Builder) Drain() []int {
	if len(b.ready) == 0 {
		return nil
	}
	out := make([]int, 0, len(b.ready))
	for idx := range b.ready {
		out = append(out, idx)
	}
	sort.Ints(out)
	clear(b.ready)
	return out
}

// Layers returns the model. The slice grows as records are added.
func (b *Builder) Layers() []*Layer {
	return b.layers
}

// Layer returns layer idx, or nil when out of range.
func (b *Builder) Layer(idx int) *Layer {
	if idx < 0 || idx >= len(b.layers) {
		return nil
	}
	return b.layers[idx]
}

// Len returns the number of layers.
func (b *Builder) Len() int {
	return len(b.layers)
}

// Current returns the layer receiving records, or -1 before the first.
func (b *Builder) Current() int {
	return b.current
}

// LayerIndex returns the layer mapped to z.
func (b *Builder) LayerIndex(z float64) (int, bool) {
	idx, ok := b.zIndex[z]
	return idx, ok
}

// Lifted reports whether records are currently held back.
func (b *Builder) Lifted() bool {
	return b.lift != nil
}
