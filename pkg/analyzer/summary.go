// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package analyzer

import (
	"math"
	"strconv"

	"gcodeviewer-go/pkg/gcode"
)

// Height is a layer height used as a map key. It marshals as the
// shortest decimal so that 0.2 keys as "0.2".
type Height float64

// MarshalText implements encoding.TextMarshaler.
func (h Height) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(h), 'f', -1, 64)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Height) UnmarshalText(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*h = Height(v)
	return nil
}

// Range is a min/max pair that is only meaningful when Valid.
type Range struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Valid bool    `json:"valid"`
}

func (r *Range) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	if !r.Valid {
		r.Min, r.Max, r.Valid = v, v, true
		return
	}
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
}

// Size is Max-Min, or 0 when unset.
func (r Range) Size() float64 {
	if !r.Valid {
		return 0
	}
	return math.Abs(r.Max - r.Min)
}

// Box is an axis-aligned bounding box.
type Box struct {
	X Range `json:"x"`
	Y Range `json:"y"`
	Z Range `json:"z"`
}

// Size is the model extent per axis.
type Size struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Size returns the extent of the box.
func (b Box) Size() Size {
	return Size{X: b.X.Size(), Y: b.Y.Size(), Z: b.Z.Size()}
}

// LayerTimes describes the distribution of per-layer print time.
type LayerTimes struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// Summary is the result of analyzing a finished model.
type Summary struct {
	BoundingBoxClipped Box  `json:"boundingBoxClipped"`
	BoundingBoxRaw     Box  `json:"boundingBoxRaw"`
	ModelSize          Size `json:"modelSize"`

	TotalFilamentByTool map[int]float64            `json:"totalFilamentByTool"`
	FilamentByLayer     map[Height]map[int]float64 `json:"filamentByLayer"`

	TotalPrintTime   float64            `json:"totalPrintTime"`
	PrintTimeByLayer map[Height]float64 `json:"printTimeByLayer"`
	LayerTimes       LayerTimes         `json:"layerTimes"`

	AverageLayerHeight float64 `json:"averageLayerHeight"`
	PrintedLayerCount  int     `json:"printedLayerCount"`
	VisitedLayerCount  int     `json:"visitedLayerCount"`

	// FeedrateRegistryByType lists distinct feedrates per move type in
	// first-seen order. The per-layer map holds indices into it.
	FeedrateRegistryByType         map[gcode.MoveType][]float64      `json:"feedrateRegistryByType"`
	FeedrateRegistryByTypeAndLayer map[gcode.MoveType]map[Height][]int `json:"feedrateRegistryByTypeAndLayer"`

	EmptyLayerIndices []int `json:"emptyLayerIndices"`
	// PercentageByLayer is the input progress at each layer's first record.
	PercentageByLayer []float64 `json:"percentageByLayer"`

	UnknownMoves int               `json:"unknownMoves"`
	Slicer       *gcode.SlicerInfo `json:"slicer,omitempty"`
}

func newSummary() *Summary {
	s := &Summary{
		TotalFilamentByTool:            make(map[int]float64),
		FilamentByLayer:                make(map[Height]map[int]float64),
		PrintTimeByLayer:               make(map[Height]float64),
		FeedrateRegistryByType:         make(map[gcode.MoveType][]float64),
		FeedrateRegistryByTypeAndLayer: make(map[gcode.MoveType]map[Height][]int),
		EmptyLayerIndices:              []int{},
	}
	for _, t := range gcode.MoveTypes {
		s.FeedrateRegistryByType[t] = []float64{}
		s.FeedrateRegistryByTypeAndLayer[t] = make(map[Height][]int)
	}
	return s
}

// TotalFilament sums all tools.
func (s *Summary) TotalFilament() float64 {
	total := 0.0
	for _, v := range s.TotalFilamentByTool {
		total += v
	}
	return total
}
