// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package model groups interpreted commands into layers.
package model

import (
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/gcode"
)

// Layer is the commands sharing one nominal height. Its storage is
// either the raw records or their packed (compressed) form; Commands
// is the only read path and hides which one is held.
type Layer struct {
	Index int
	// Z is the height the layer was created for.
	Z float64

	raw    []*gcode.Command
	packed []byte
	count  int
}

// Len returns the number of records.
func (l *Layer) Len() int {
	return l.count
}

// IsPacked reports whether the layer is held compressed.
func (l *Layer) IsPacked() bool {
	return l.packed != nil
}

// Commands returns the records, decoding packed storage. The returned
// slice must not be modified.
func (l *Layer) Commands() ([]*gcode.Command, error) {
	if l.packed == nil {
		return l.raw, nil
	}
	cmds, err := Decode(l.packed)
	if err != nil {
		return nil, errors.ModelCodecError(l.Index, err)
	}
	return cmds, nil
}

// Snapshot returns deep copies of the records, safe to hand to another
// goroutine while the layer keeps growing.
func (l *Layer) Snapshot() ([]*gcode.Command, error) {
	cmds, err := l.Commands()
	if err != nil || l.packed != nil {
		return cmds, err
	}
	out := make([]*gcode.Command, len(cmds))
	for i, c := range cmds {
		out[i] = c.Clone()
	}
	return out, nil
}

// Packed returns the compressed form, encoding raw storage without
// changing it.
func (l *Layer) Packed() ([]byte, error) {
	if l.packed != nil {
		return l.packed, nil
	}
	data, err := Encode(l.raw)
	if err != nil {
		return nil, errors.ModelCodecError(l.Index, err)
	}
	return data, nil
}

// Pack switches the layer to compressed storage.
func (l *Layer) Pack() error {
	if l.packed != nil {
		return nil
	}
	data, err := l.Packed()
	if err != nil {
		return err
	}
	l.packed, l.raw = data, nil
	return nil
}

// append adds records, unpacking first if needed.
func (l *Layer) append(cmds ...*gcode.Command) error {
	if l.packed != nil {
		raw, err := l.Commands()
		if err != nil {
			return err
		}
		l.raw, l.packed = raw, nil
	}
	l.raw = append(l.raw, cmds...)
	l.count = len(l.raw)
	return nil
}
