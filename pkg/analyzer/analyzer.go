// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package analyzer computes model statistics over a finished layer list.
package analyzer

import (
	"context"
	"math"

	"github.com/influxdata/tdigest"

	"gcodeviewer-go/pkg/bed"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/gcode"
	"gcodeviewer-go/pkg/log"
	"gcodeviewer-go/pkg/model"
)

// Options controls bed clipping.
type Options struct {
	// Bed defaults to bed.Default() when nil.
	Bed              *bed.Shape
	IgnoreOutsideBed bool
}

// ProgressFunc receives the analysis percentage and the print time
// accumulated so far, in seconds.
type ProgressFunc func(percentage, printTimeSoFar float64)

// DiagnosticFunc receives recoverable classification problems.
type DiagnosticFunc func(err *errors.HostError)

// Analyzer runs the statistics pass. The zero value is usable.
type Analyzer struct {
	Options    Options
	Progress   ProgressFunc
	Diagnostic DiagnosticFunc

	log *log.Logger
}

// New returns an analyzer for opts.
func New(opts Options) *Analyzer {
	return &Analyzer{Options: opts, log: log.GetLogger("analyzer")}
}

// run holds the mutable state of one pass.
type run struct {
	a       *Analyzer
	shape   bed.Shape
	sum     *Summary
	digest  *tdigest.TDigest
	timeSum float64
}

// Analyze walks every layer in order and returns the summary. It
// checks ctx between layers.
func (a *Analyzer) Analyze(ctx context.Context, layers []*model.Layer) (*Summary, error) {
	r := &run{
		a:      a,
		shape:  bed.Default(),
		sum:    newSummary(),
		digest: tdigest.NewWithCompression(100),
	}
	if a.Options.Bed != nil {
		r.shape = *a.Options.Bed
	}
	r.sum.PercentageByLayer = make([]float64, len(layers))
	r.sum.VisitedLayerCount = len(layers)

	for i, layer := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmds, err := layer.Commands()
		if err != nil {
			return nil, err
		}
		r.layer(i, cmds)
		a.progress(float64(i+1)/float64(len(layers))*100, r.timeSum)
	}
	if len(layers) == 0 {
		a.progress(100, 0)
	}
	r.finish()
	return r.sum, nil
}

func (a *Analyzer) progress(pct, t float64) {
	if a.Progress != nil {
		a.Progress(pct, t)
	}
}

func (a *Analyzer) logger() *log.Logger {
	if a.log == nil {
		a.log = log.GetLogger("analyzer")
	}
	return a.log
}

func (r *run) layer(idx int, cmds []*gcode.Command) {
	if len(cmds) > 0 {
		r.sum.PercentageByLayer[idx] = cmds[0].Percentage
	}
	printed := false
	layerTime := 0.0
	for _, cmd := range cmds {
		typ := cmd.Type()
		if typ == gcode.MoveExtrude {
			printed = true
			r.extremes(cmd)
		}
		z := Height(cmd.PrevZ)
		if cmd.Extrusion != 0 {
			r.filament(cmd.Tool, z, cmd.Extrusion)
		}
		t := moveTime(cmd, typ)
		layerTime += t
		r.timeSum += t
		r.sum.PrintTimeByLayer[z] += t

		if typ == gcode.MoveUnknown {
			r.unknown(idx, cmd)
			continue
		}
		r.register(typ, z, cmd.Speed)
	}
	if printed {
		r.sum.PrintedLayerCount++
		r.digest.Add(layerTime, 1)
		r.sum.LayerTimes.Max = math.Max(r.sum.LayerTimes.Max, layerTime)
	} else {
		r.sum.EmptyLayerIndices = append(r.sum.EmptyLayerIndices, idx)
	}
}

// extremes records both ends of an extrusion move.
func (r *run) extremes(cmd *gcode.Command) {
	if !cmd.HasDisplacement() {
		return
	}
	r.point(cmd.PrevX, cmd.PrevY, cmd.PrevZ)
	r.point(cmd.EndX(), cmd.EndY(), cmd.PrevZ)
}

func (r *run) point(x, y, z float64) {
	raw := &r.sum.BoundingBoxRaw
	raw.X.add(x)
	raw.Y.add(y)
	raw.Z.add(z)
	if r.a.Options.IgnoreOutsideBed && !r.shape.Contains(&x, &y) {
		return
	}
	clip := &r.sum.BoundingBoxClipped
	clip.X.add(x)
	clip.Y.add(y)
	clip.Z.add(z)
}

func (r *run) filament(tool int, z Height, e float64) {
	r.sum.TotalFilamentByTool[tool] += e
	byTool, ok := r.sum.FilamentByLayer[z]
	if !ok {
		byTool = make(map[int]float64)
		r.sum.FilamentByLayer[z] = byTool
	}
	byTool[tool] += e
}

// register adds speed to the per-type registry and records its index
// for height z.
func (r *run) register(typ gcode.MoveType, z Height, speed float64) {
	reg := r.sum.FeedrateRegistryByType[typ]
	idx := -1
	for i, v := range reg {
		if v == speed {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(reg)
		r.sum.FeedrateRegistryByType[typ] = append(reg, speed)
	}
	used := r.sum.FeedrateRegistryByTypeAndLayer[typ][z]
	for _, i := range used {
		if i == idx {
			return
		}
	}
	r.sum.FeedrateRegistryByTypeAndLayer[typ][z] = append(used, idx)
}

func (r *run) unknown(layer int, cmd *gcode.Command) {
	r.sum.UnknownMoves++
	err := errors.UnknownMoveError(layer, cmd.Line)
	r.a.logger().WithFields(log.Fields{
		"layer": layer,
		"line":  cmd.Line,
	}).Warn("unknown move type")
	if r.a.Diagnostic != nil {
		r.a.Diagnostic(err)
	}
}

func (r *run) finish() {
	s := r.sum
	s.TotalPrintTime = r.timeSum
	s.ModelSize = s.BoundingBoxRaw.Size()
	if s.PrintedLayerCount > 1 {
		s.AverageLayerHeight = s.BoundingBoxRaw.Z.Size() / float64(s.PrintedLayerCount-1)
	}
	if s.PrintedLayerCount > 0 {
		// the digest interpolates, so keep it under the observed max
		q := func(p float64) float64 {
			return math.Min(r.digest.Quantile(p), s.LayerTimes.Max)
		}
		s.LayerTimes.P50 = q(0.5)
		s.LayerTimes.P90 = q(0.9)
		s.LayerTimes.P99 = q(0.99)
	}
}

// moveTime estimates the duration of one record in seconds. Feedrates
// are per minute.
func moveTime(cmd *gcode.Command, typ gcode.MoveType) float64 {
	if cmd.NoMove || cmd.Speed <= 0 {
		return 0
	}
	fs := cmd.Speed / 60
	dist := 0.0
	if cmd.HasDisplacement() {
		dist = cmd.Distance()
	}
	e := math.Abs(cmd.Extrusion)
	switch typ {
	case gcode.MoveTravel:
		return dist / fs
	default:
		return math.Max(dist, e) / fs
	}
}
