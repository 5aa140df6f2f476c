// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package viewer runs parse jobs: it drives a line source through the
// interpreter and layer builder, streams finished layers to a sink and
// finally reports the analyzer summary.
package viewer

import (
	"encoding/json"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/bed"
	"gcodeviewer-go/pkg/config"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/gcode"
)

// DefaultProgressThreshold is the input progress, in percent, that
// must pass between two layer batches.
const DefaultProgressThreshold = 2.0

// Options is the read-only configuration of one job.
type Options struct {
	ToolOffsets           []gcode.Offset `json:"toolOffsets,omitempty"`
	Bed                   *bed.Shape     `json:"bed,omitempty"`
	IgnoreOutsideBed      bool           `json:"ignoreOutsideBed"`
	G90InfluencesExtruder bool           `json:"g90InfluencesExtruder"`
	Compress              bool           `json:"compress"`
	// SkipUntil keeps records out of the model until a line starting
	// with it is read. Ignored when the source cannot be searched or
	// does not contain such a line.
	SkipUntil         string  `json:"skipUntil,omitempty"`
	ProgressThreshold float64 `json:"progressThreshold,omitempty"`
}

// DefaultOptions returns the options used without any configuration.
func DefaultOptions() Options {
	b := bed.Default()
	return Options{Bed: &b, ProgressThreshold: DefaultProgressThreshold}
}

// FromSettings builds job options from the service defaults.
func FromSettings(d config.JobDefaults, shape bed.Shape) Options {
	return Options{
		ToolOffsets:           append([]gcode.Offset(nil), d.ToolOffsets...),
		Bed:                   &shape,
		IgnoreOutsideBed:      d.IgnoreOutsideBed,
		G90InfluencesExtruder: d.G90InfluencesExtruder,
		Compress:              d.Compress,
		SkipUntil:             d.SkipUntil,
		ProgressThreshold:     d.ProgressThreshold,
	}
}

// Apply returns a copy of o with the fields present in raw replaced.
// A bed in raw replaces the whole bed. o is not modified.
func (o Options) Apply(raw json.RawMessage) (Options, error) {
	out := o.clone()
	if len(raw) == 0 {
		return out, nil
	}
	keep := out.Bed
	out.Bed = nil
	if err := json.Unmarshal(raw, &out); err != nil {
		return o.clone(), errors.Wrap(err, errors.ErrConfigType, "invalid job options")
	}
	if out.Bed == nil {
		out.Bed = keep
	} else if err := out.Bed.Validate(); err != nil {
		return o.clone(), errors.Wrap(err, errors.ErrConfigValidation, "invalid job bed")
	}
	return out, nil
}

func (o Options) clone() Options {
	out := o
	out.ToolOffsets = append([]gcode.Offset(nil), o.ToolOffsets...)
	if o.Bed != nil {
		b := *o.Bed
		out.Bed = &b
	}
	return out
}

func (o Options) threshold() float64 {
	if o.ProgressThreshold <= 0 {
		return DefaultProgressThreshold
	}
	return o.ProgressThreshold
}

func (o Options) interpreter() gcode.Options {
	return gcode.Options{
		ToolOffsets:           o.ToolOffsets,
		G90InfluencesExtruder: o.G90InfluencesExtruder,
	}
}

func (o Options) analyzer() analyzer.Options {
	return analyzer.Options{Bed: o.Bed, IgnoreOutsideBed: o.IgnoreOutsideBed}
}
