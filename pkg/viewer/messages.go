// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/gcode"
)

// Kind names a message sent to the consumer.
type Kind string

const (
	KindLayersReady     Kind = "layersReady"
	KindParseProgress   Kind = "parseProgress"
	KindParseComplete   Kind = "parseComplete"
	KindAnalyzeProgress Kind = "analyzeProgress"
	KindAnalyzeComplete Kind = "analyzeComplete"
	KindDiagnostic      Kind = "diagnostic"
	KindJobFailed       Kind = "jobFailed"
)

// Message is the envelope of everything a job emits.
type Message struct {
	Kind    Kind   `json:"cmd"`
	Job     string `json:"job,omitempty"`
	Payload any    `json:"msg"`
}

// LayerData is one layer on the wire: either the records or, when
// compression is on, their packed bytes (base64 in JSON).
type LayerData struct {
	Commands []*gcode.Command
	Packed   []byte
}

// MarshalJSON implements json.Marshaler.
func (d LayerData) MarshalJSON() ([]byte, error) {
	if d.Packed != nil {
		return json.Marshal(d.Packed)
	}
	if d.Commands == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Commands)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LayerData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty layer")
	}
	if b[0] == '"' {
		d.Commands = nil
		return json.Unmarshal(b, &d.Packed)
	}
	d.Packed = nil
	return json.Unmarshal(b, &d.Commands)
}

// LayersReady carries a batch of finished layers.
type LayersReady struct {
	Layers     map[int]LayerData `json:"layers"`
	Indices    []int             `json:"indices"`
	Percentage float64           `json:"percentage"`
}

// ParseProgress is a coarse progress report between batches.
type ParseProgress struct {
	Percentage float64 `json:"percentage"`
}

// ParseComplete marks the end of the parse pass.
type ParseComplete struct {
	LayerCount int `json:"layerCount"`
	Lines      int `json:"lines"`
}

// AnalyzeProgress reports the statistics pass.
type AnalyzeProgress struct {
	Percentage     float64 `json:"percentage"`
	PrintTimeSoFar float64 `json:"printTimeSoFar"`
}

// Diagnostic reports a recoverable problem in the input.
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// JobFailed ends a job without a summary.
type JobFailed struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeComplete carries the summary.
type AnalyzeComplete = analyzer.Summary

// Sink receives the messages of a job in order. An error from Send
// aborts the job.
type Sink interface {
	Send(m Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(m Message) error

// Send calls f.
func (f SinkFunc) Send(m Message) error { return f(m) }

// Discard drops every message.
var Discard Sink = SinkFunc(func(Message) error { return nil })
