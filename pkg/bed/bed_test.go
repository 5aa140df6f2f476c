// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pt(v float64) *float64 { return &v }

func TestBounds(t *testing.T) {
	assert.Equal(t, Bounds{MaxX: 220, MaxY: 200}, Rectangular(220, 200, false).Bounds())
	assert.Equal(t, Bounds{MinX: -110, MaxX: 110, MinY: -100, MaxY: 100}, Rectangular(220, 200, true).Bounds())
	assert.Equal(t, Bounds{MinX: -90, MaxX: 90, MinY: -90, MaxY: 90}, Round(90).Bounds())
}

func TestContainsRectangle(t *testing.T) {
	s := Default()
	assert.True(t, s.Contains(pt(0), pt(0)))
	assert.True(t, s.Contains(pt(200), pt(200)))
	assert.False(t, s.Contains(pt(-0.1), pt(10)))
	assert.False(t, s.Contains(pt(10), pt(200.5)))
	assert.True(t, s.Contains(nil, pt(10)))
	assert.True(t, s.Contains(nil, nil))
}

func TestContainsCircle(t *testing.T) {
	s := Round(100)
	assert.True(t, s.Contains(pt(70), pt(70)))
	// inside the enclosing square but outside the disc
	assert.False(t, s.Contains(pt(80), pt(80)))
	assert.True(t, s.Contains(pt(95), nil))
	assert.False(t, s.Contains(pt(-101), nil))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())
	assert.Error(t, Shape{Circular: true}.Validate())
	assert.Error(t, Shape{X: 10}.Validate())
}
