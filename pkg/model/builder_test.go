// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcodeviewer-go/pkg/gcode"
)

// build interprets text and feeds every record to a fresh builder.
func build(t *testing.T, text string) *Builder {
	t.Helper()
	it := gcode.NewInterpreter(gcode.Options{})
	b := NewBuilder()
	for i, l := range strings.Split(text, "\n") {
		if cmd := it.Interpret(l, 0, i+1); cmd != nil {
			require.NoError(t, b.Add(cmd))
		}
	}
	require.NoError(t, b.Finish())
	return b
}

func lines(t *testing.T, l *Layer) []int {
	t.Helper()
	cmds, err := l.Commands()
	require.NoError(t, err)
	out := make([]int, len(cmds))
	for i, c := range cmds {
		out[i] = c.Line
	}
	return out
}

func TestHomeThenTwoLayers(t *testing.T) {
	b := build(t, "G28\nG1 X10 Y10 E5 F1200\nG1 Z0.2\nG1 X20 Y10 E10 F1200\n")
	require.Equal(t, 2, b.Len())
	assert.Equal(t, []int{1, 2}, lines(t, b.Layer(0)))
	assert.Equal(t, []int{3, 4}, lines(t, b.Layer(1)))
	assert.Equal(t, 0.2, b.Layer(1).Z)

	cmds, _ := b.Layer(1).Commands()
	assert.Equal(t, 5.0, cmds[1].Extrusion)
}

func TestZLiftReturnsToOriginalLayer(t *testing.T) {
	b := build(t, "G1 X1 Y1 E1\nG1 Z5\nG1 X10 Y10\nG1 Z0 E2")
	require.Equal(t, 1, b.Len())
	assert.Equal(t, []int{1, 2, 3, 4}, lines(t, b.Layer(0)))
}

func TestZLiftWithoutPriorLayer(t *testing.T) {
	b := build(t, "G1 Z5\nG1 X10 Y10\nG1 Z0 E1")
	require.Equal(t, 1, b.Len())
	assert.Equal(t, 0.0, b.Layer(0).Z)
	assert.Equal(t, []int{1, 2, 3}, lines(t, b.Layer(0)))
}

func TestZLiftToLowerNewHeight(t *testing.T) {
	// hop to 1.0, settle at 0.4, print: the hop joins the base layer and
	// printing continues on a new 0.4 layer
	b := build(t, "G1 Z0.2\nG1 X1 E1\nG1 Z1.0\nG1 Z0.4\nG1 X2 E2")
	require.Equal(t, 2, b.Len())
	assert.Equal(t, []int{1, 2, 3, 4}, lines(t, b.Layer(0)))
	assert.Equal(t, []int{5}, lines(t, b.Layer(1)))
	assert.Equal(t, 0.4, b.Layer(1).Z)
}

func TestLiftMaterializesAtHigherExtrusion(t *testing.T) {
	b := build(t, "G1 X1 E1\nG1 Z0.2\nG1 X5\nG1 Z0.4\nG1 X2 E2")
	require.Equal(t, 3, b.Len())
	assert.Equal(t, []int{1}, lines(t, b.Layer(0)))
	assert.Equal(t, []int{2, 3}, lines(t, b.Layer(1)))
	assert.Equal(t, []int{4, 5}, lines(t, b.Layer(2)))
}

func TestOpenLiftMaterializedOnFinish(t *testing.T) {
	b := build(t, "G1 X1 E1\nG1 Z10\nG1 X0 Y0")
	require.Equal(t, 2, b.Len())
	assert.Equal(t, []int{2, 3}, lines(t, b.Layer(1)))
	assert.False(t, b.Lifted())
}

func TestRevisitedHeightUsesSameLayer(t *testing.T) {
	b := build(t, "G1 Z0.2 X1 E1\nG1 Z0.4 X2 E2\nG1 Z0.2 X3 E3\nG1 Z0.4 X4 E4")
	require.Equal(t, 2, b.Len())
	assert.Equal(t, []int{1, 3}, lines(t, b.Layer(0)))
	assert.Equal(t, []int{2, 4}, lines(t, b.Layer(1)))

	idx, ok := b.LayerIndex(0.4)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestSetPositionDoesNotChangeLayer(t *testing.T) {
	b := build(t, "G1 Z0.2 X1 E1\nG92 Z0\nG1 X2 E2")
	require.Equal(t, 1, b.Len())
	assert.Equal(t, []int{1, 2, 3}, lines(t, b.Layer(0)))
}

func TestLayerCountNeverDecreases(t *testing.T) {
	it := gcode.NewInterpreter(gcode.Options{})
	b := NewBuilder()
	input := "G28\nG1 X1 E1\nG1 Z0.3\nG1 X2\nG1 Z0.1 E2\nG1 Z0.5 E3\nG1 Z2\nG1 Z0.5 E4\nG1 Z0.7 E5"
	prev := 0
	for i, l := range strings.Split(input, "\n") {
		if cmd := it.Interpret(l, 0, i+1); cmd != nil {
			require.NoError(t, b.Add(cmd))
		}
		assert.GreaterOrEqual(t, b.Len(), prev)
		prev = b.Len()
	}
}

func TestDrainReportsLeftLayers(t *testing.T) {
	it := gcode.NewInterpreter(gcode.Options{})
	b := NewBuilder()
	add := func(l string) {
		require.NoError(t, b.Add(it.Interpret(l, 0, 1)))
	}

	add("G1 Z0.2 X1 E1")
	assert.Empty(t, b.Drain())
	add("G1 Z0.4 X1 E2")
	assert.Equal(t, []int{0}, b.Drain())
	add("G1 Z0.6 X1 E3")
	add("G1 Z0.2 X1 E4")
	assert.Equal(t, []int{1, 2}, b.Drain())
	require.NoError(t, b.Finish())
	assert.Equal(t, []int{0}, b.Drain())
	assert.Nil(t, b.Drain())
}

func TestLayerPackAndAppend(t *testing.T) {
	b := build(t, "G1 X1 E1\nG1 X2 E2")
	l := b.Layer(0)
	require.NoError(t, l.Pack())
	assert.True(t, l.IsPacked())
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []int{1, 2}, lines(t, l))

	require.NoError(t, l.append(&gcode.Command{Line: 3}))
	assert.False(t, l.IsPacked())
	assert.Equal(t, []int{1, 2, 3}, lines(t, l))
}

func TestSnapshotIsIndependent(t *testing.T) {
	b := build(t, "G1 X1 E1")
	snap, err := b.Layer(0).Snapshot()
	require.NoError(t, err)
	*snap[0].X = 99

	cmds, _ := b.Layer(0).Commands()
	assert.Equal(t, 1.0, *cmds[0].X)
}
