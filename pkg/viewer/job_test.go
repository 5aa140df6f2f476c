// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/model"
	"gcodeviewer-go/pkg/source"
)

// recorder is a Sink that keeps every message.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Send(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) all() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func (r *recorder) kinds() []Kind {
	var out []Kind
	for _, m := range r.all() {
		out = append(out, m.Kind)
	}
	return out
}

func (r *recorder) last() Message {
	msgs := r.all()
	if len(msgs) == 0 {
		return Message{}
	}
	return msgs[len(msgs)-1]
}

// tower prints n layers of two extruding moves each, 0.2mm apart.
func tower(n int) []string {
	var lines []string
	for l := 1; l <= n; l++ {
		lines = append(lines,
			fmt.Sprintf("G1 Z%.1f F600", float64(l)*0.2),
			fmt.Sprintf("G1 X10 Y10 E%d F1200", 2*l-1),
			fmt.Sprintf("G1 X20 Y10 E%d", 2*l),
		)
	}
	return lines
}

func runJob(t *testing.T, opts Options, src source.Source) (*Job, *recorder, *analyzer.Summary) {
	t.Helper()
	rec := &recorder{}
	job := NewJob("job-1", opts)
	sum, err := job.Run(context.Background(), src, rec)
	require.NoError(t, err)
	require.NotNil(t, sum)
	return job, rec, sum
}

func TestJobMessageOrder(t *testing.T) {
	_, rec, _ := runJob(t, DefaultOptions(), source.NewLines(tower(20)))

	kinds := rec.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, KindAnalyzeComplete, kinds[len(kinds)-1])

	parseDone := -1
	for i, k := range kinds {
		if k == KindParseComplete {
			require.Equal(t, -1, parseDone, "parseComplete sent twice")
			parseDone = i
		}
	}
	require.True(t, parseDone > 0)
	for i, k := range kinds {
		switch k {
		case KindLayersReady, KindParseProgress:
			assert.Less(t, i, parseDone, "%s after parseComplete", k)
		case KindAnalyzeProgress, KindAnalyzeComplete:
			assert.Greater(t, i, parseDone, "%s before parseComplete", k)
		}
	}
	for _, m := range rec.all() {
		assert.Equal(t, "job-1", m.Job)
	}
}

func TestJobStreamsEveryLayerOnce(t *testing.T) {
	job, rec, _ := runJob(t, DefaultOptions(), source.NewLines(tower(20)))
	require.Equal(t, 20, job.Stats().Layers)

	seen := map[int]int{}
	batches := 0
	lastPct := -1.0
	var final LayersReady
	for _, m := range rec.all() {
		if m.Kind != KindLayersReady {
			continue
		}
		batches++
		lr := m.Payload.(LayersReady)
		assert.GreaterOrEqual(t, lr.Percentage, lastPct)
		lastPct = lr.Percentage
		assert.Len(t, lr.Layers, len(lr.Indices))
		for _, i := range lr.Indices {
			seen[i]++
			assert.Contains(t, lr.Layers, i)
		}
		final = lr
	}
	assert.Greater(t, batches, 1)
	assert.Equal(t, 100.0, final.Percentage)
	assert.Len(t, seen, 20)
	for i, n := range seen {
		assert.Equal(t, 1, n, "layer %d", i)
	}
}

func TestJobProgressMonotonic(t *testing.T) {
	// a single layer keeps the batch empty, so only parseProgress flows
	lines := []string{"G1 X0 Y0 F1200"}
	for i := 1; i < 100; i++ {
		lines = append(lines, fmt.Sprintf("G1 X%d Y0 E%d", i%50, i))
	}
	_, rec, _ := runJob(t, DefaultOptions(), source.NewLines(lines))

	last := -1.0
	progress := 0
	for _, m := range rec.all() {
		var pct float64
		switch p := m.Payload.(type) {
		case ParseProgress:
			pct = p.Percentage
			progress++
		case LayersReady:
			pct = p.Percentage
		default:
			continue
		}
		assert.GreaterOrEqual(t, pct, last)
		last = pct
	}
	assert.Equal(t, 100.0, last)
	assert.GreaterOrEqual(t, progress, 5)
}

func TestJobCompressedLayers(t *testing.T) {
	opts := DefaultOptions()
	opts.Compress = true
	job, rec, plain := runJob(t, opts, source.NewLines(tower(5)))

	for _, m := range rec.all() {
		if m.Kind != KindLayersReady {
			continue
		}
		for i, data := range m.Payload.(LayersReady).Layers {
			require.NotNil(t, data.Packed)
			assert.Nil(t, data.Commands)

			got, err := model.Decode(data.Packed)
			require.NoError(t, err)
			layer := job.Layers()[i]
			assert.True(t, layer.IsPacked())
			want, err := layer.Commands()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}

	_, _, unpacked := runJob(t, DefaultOptions(), source.NewLines(tower(5)))
	assert.Equal(t, unpacked, plain)
}

func TestJobSkipUntil(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipUntil = ";START"
	lines := []string{"G1 X5 Y5 E1 F1200", ";START", "G1 X10 Y10 E2"}

	job, _, _ := runJob(t, opts, source.NewLines(lines))
	require.Equal(t, 1, job.Stats().Layers)
	cmds, err := job.Layers()[0].Commands()
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, 3, cmds[0].Line)
	// state before the marker is still tracked
	assert.Equal(t, 1.0, cmds[0].Extrusion)
	assert.Equal(t, 5.0, cmds[0].PrevX)
}

func TestJobSkipUntilIgnoredWithoutSearch(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipUntil = ";START"
	text := "G1 X5 Y5 E1 F1200\n;START\nG1 X10 Y10 E2\n"

	job, _, _ := runJob(t, opts, source.NewReader(strings.NewReader(text), int64(len(text))))
	cmds, err := job.Layers()[0].Commands()
	require.NoError(t, err)
	assert.Len(t, cmds, 2)
}

func TestJobSkipUntilMissingMarker(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipUntil = ";NOPE"
	job, _, _ := runJob(t, opts, source.NewLines([]string{"G1 X5 Y5 E1 F1200"}))
	assert.Equal(t, 1, job.Stats().Layers)
}

// failing yields its lines and then a read error.
type failing struct {
	lines []string
	next  int
}

func (f *failing) Next() (source.Line, error) {
	if f.next >= len(f.lines) {
		return source.Line{}, errors.SourceIOError("failing", io.ErrUnexpectedEOF)
	}
	f.next++
	return source.Line{Text: f.lines[f.next-1], Percentage: float64(f.next), Index: f.next}, nil
}

func (f *failing) Close() error { return nil }

func TestJobSourceFailure(t *testing.T) {
	rec := &recorder{}
	job := NewJob("job-1", DefaultOptions())
	sum, err := job.Run(context.Background(), &failing{lines: tower(3)}, rec)
	require.Error(t, err)
	assert.Nil(t, sum)
	assert.True(t, errors.IsSource(err))
	assert.NotContains(t, rec.kinds(), KindParseComplete)
	assert.NotContains(t, rec.kinds(), KindAnalyzeComplete)
}

// endless repeats the same travel move forever.
type endless struct{ n int }

func (e *endless) Next() (source.Line, error) {
	e.n++
	return source.Line{Text: "G1 X1 Y1", Index: e.n}, nil
}

func (e *endless) Close() error { return nil }

func TestJobCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	_, err := NewJob("job-7", DefaultOptions()).Run(ctx, &endless{}, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrJobCancelled))
	assert.Empty(t, rec.all())
}

func TestJobPanicBecomesRuntimeError(t *testing.T) {
	sink := SinkFunc(func(m Message) error {
		if m.Kind == KindParseComplete {
			panic("sink exploded")
		}
		return nil
	})
	_, err := NewJob("job-1", DefaultOptions()).Run(context.Background(), source.NewLines(tower(2)), sink)
	require.Error(t, err)
	assert.Equal(t, errors.ErrRuntime, errors.CodeOf(err))
}

func TestJobSinkErrorStopsJob(t *testing.T) {
	sink := SinkFunc(func(Message) error { return io.ErrClosedPipe })
	_, err := NewJob("job-1", DefaultOptions()).Run(context.Background(), source.NewLines(tower(20)), sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrJobFailed))
}

func TestJobSlicerInfo(t *testing.T) {
	lines := append([]string{"; generated by PrusaSlicer 2.6.0", "; layer_height = 0.2"}, tower(2)...)
	_, _, sum := runJob(t, DefaultOptions(), source.NewLines(lines))
	require.NotNil(t, sum.Slicer)
	assert.Equal(t, "PrusaSlicer", sum.Slicer.Name)
}

func TestLayerDataJSON(t *testing.T) {
	b, err := json.Marshal(LayerData{Packed: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, `"AQID"`, string(b))

	var d LayerData
	require.NoError(t, json.Unmarshal(b, &d))
	assert.Equal(t, []byte{1, 2, 3}, d.Packed)

	b, err = json.Marshal(LayerData{})
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(b))

	require.NoError(t, json.Unmarshal([]byte(`[{"x":1,"extrude":true,"gcodeLine":4}]`), &d))
	assert.Nil(t, d.Packed)
	require.Len(t, d.Commands, 1)
	assert.Equal(t, 4, d.Commands[0].Line)
}

func TestMessageEnvelope(t *testing.T) {
	b, err := json.Marshal(Message{Kind: KindJobFailed, Job: "job-2", Payload: JobFailed{Code: "SOURCE_IO", Message: "boom"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"jobFailed","job":"job-2","msg":{"code":"SOURCE_IO","message":"boom"}}`, string(b))
}

func TestOptionsApply(t *testing.T) {
	base := DefaultOptions()

	got, err := base.Apply(json.RawMessage(`{"compress":true,"bed":{"r":100,"circular":true}}`))
	require.NoError(t, err)
	assert.True(t, got.Compress)
	require.NotNil(t, got.Bed)
	assert.True(t, got.Bed.Circular)
	assert.False(t, base.Compress)
	assert.False(t, base.Bed.Circular)

	got, err = base.Apply(json.RawMessage(`{"ignoreOutsideBed":true}`))
	require.NoError(t, err)
	assert.Equal(t, *base.Bed, *got.Bed)

	_, err = base.Apply(json.RawMessage(`{"compress":"yes"}`))
	assert.True(t, errors.Is(err, errors.ErrConfigType))

	_, err = base.Apply(json.RawMessage(`{"bed":{"x":-5,"y":10}}`))
	assert.True(t, errors.Is(err, errors.ErrConfigValidation))
}

func TestJobNonFiniteWordsDoNotFailJob(t *testing.T) {
	lines := []string{"G28", "G1 Z0.2 F600", "G1 X10 Y10 E1", "G1 Xinf Y10 E2"}
	for i := 0; i < 4; i++ {
		lines = append(lines, "G1 Znan X1 Y1 E"+fmt.Sprint(3+i))
	}
	lines = append(lines, "G1 Z0.4", "G1 X10 Y10 E8")

	var encoded int
	sink := SinkFunc(func(m Message) error {
		_, err := json.Marshal(m)
		encoded++
		return err
	})
	job := NewJob("job-1", DefaultOptions())
	sum, err := job.Run(context.Background(), source.NewLines(lines), sink)
	require.NoError(t, err)
	assert.Greater(t, encoded, 0)
	assert.Len(t, job.Layers(), 3)
	assert.Equal(t, 2, sum.PrintedLayerCount)
}
