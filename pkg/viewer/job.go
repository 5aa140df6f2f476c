// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package viewer

import (
	"context"
	"io"
	"strings"
	"time"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/gcode"
	"gcodeviewer-go/pkg/log"
	"gcodeviewer-go/pkg/model"
	"gcodeviewer-go/pkg/source"
)

// parseProgressStep is how far input progress moves between two
// parseProgress messages.
const parseProgressStep = 10.0

// Stats describes a finished job.
type Stats struct {
	Lines       int
	Layers      int
	ParseTime   time.Duration
	AnalyzeTime time.Duration
}

// Job owns all mutable state of one parse. A Job runs once.
type Job struct {
	ID   string
	opts Options
	log  *log.Logger

	interp  *gcode.Interpreter
	builder *model.Builder
	header  gcode.HeaderScanner
	sink    Sink

	batch        []int
	lastSend     float64
	lastProgress float64
	stats        Stats
}

// NewJob prepares a job. opts is copied.
func NewJob(id string, opts Options) *Job {
	opts = opts.clone()
	return &Job{
		ID:      id,
		opts:    opts,
		log:     log.GetLogger("viewer"),
		interp:  gcode.NewInterpreter(opts.interpreter()),
		builder: model.NewBuilder(),
	}
}

// Stats returns timings and sizes; valid after Run returns.
func (j *Job) Stats() Stats {
	return j.stats
}

// Layers returns the model built so far.
func (j *Job) Layers() []*model.Layer {
	return j.builder.Layers()
}

// Run parses src to the end, streaming layers to sink, then analyzes
// the model. Errors from the source, the sink or ctx end the job; a
// panic is returned as a RUNTIME error.
func (j *Job) Run(ctx context.Context, src source.Source, sink Sink) (sum *analyzer.Summary, err error) {
	defer func() {
		if herr := errors.RecoverPanic(recover()); herr != nil {
			sum, err = nil, herr.SetContext("job", j.ID)
		}
	}()
	j.sink = sink

	start := time.Now()
	if err := j.parse(ctx, src); err != nil {
		return nil, err
	}
	j.stats.ParseTime = time.Since(start)
	j.stats.Layers = j.builder.Len()
	if err := j.send(KindParseComplete, ParseComplete{LayerCount: j.builder.Len(), Lines: j.stats.Lines}); err != nil {
		return nil, err
	}

	start = time.Now()
	sum, err = j.analyze(ctx)
	if err != nil {
		return nil, err
	}
	j.stats.AnalyzeTime = time.Since(start)
	if err := j.send(KindAnalyzeComplete, sum); err != nil {
		return nil, err
	}
	j.log.WithFields(log.Fields{
		"job":    j.ID,
		"lines":  j.stats.Lines,
		"layers": j.stats.Layers,
		"parse":  j.stats.ParseTime.String(),
	}).Debug("job finished")
	return sum, nil
}

func (j *Job) parse(ctx context.Context, src source.Source) error {
	skipping := false
	if j.opts.SkipUntil != "" {
		if s, ok := src.(source.Searcher); ok {
			skipping = s.HasLinePrefix(j.opts.SkipUntil)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return errors.JobCancelledError(j.ID, err)
		}
		line, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		j.stats.Lines++
		j.header.Feed(line.Text)

		// the marker line itself is parsed normally
		if skipping && strings.HasPrefix(line.Text, j.opts.SkipUntil) {
			skipping = false
		}
		cmd := j.interp.Interpret(line.Text, line.Percentage, line.Index)
		if cmd == nil || skipping {
			continue
		}
		if err := j.builder.Add(cmd); err != nil {
			return err
		}
		if err := j.progress(line.Percentage); err != nil {
			return err
		}
	}

	if err := j.builder.Finish(); err != nil {
		return err
	}
	j.queue(j.builder.Drain())
	return j.flush(100)
}

// progress queues layers the builder has left and flushes the batch
// once the input has advanced far enough since the last one.
func (j *Job) progress(pct float64) error {
	ready := j.builder.Drain()
	if len(ready) > 0 {
		if pct-j.lastSend > j.opts.threshold() && len(j.batch) > 0 {
			if err := j.flush(pct); err != nil {
				return err
			}
		}
		j.queue(ready)
		return nil
	}
	if pct-j.lastProgress >= parseProgressStep && pct < 100 {
		j.lastProgress = pct
		return j.send(KindParseProgress, ParseProgress{Percentage: pct})
	}
	return nil
}

func (j *Job) queue(idx []int) {
outer:
	for _, i := range idx {
		for _, have := range j.batch {
			if have == i {
				continue outer
			}
		}
		j.batch = append(j.batch, i)
	}
}

// flush sends the batch. With compression on, sent layers are kept
// packed from then on.
func (j *Job) flush(pct float64) error {
	msg := LayersReady{
		Layers:     make(map[int]LayerData, len(j.batch)),
		Indices:    j.batch,
		Percentage: pct,
	}
	if msg.Indices == nil {
		msg.Indices = []int{}
	}
	for _, i := range j.batch {
		layer := j.builder.Layer(i)
		if layer == nil {
			continue
		}
		var data LayerData
		var err error
		if j.opts.Compress {
			if data.Packed, err = layer.Packed(); err == nil {
				err = layer.Pack()
			}
		} else {
			data.Commands, err = layer.Snapshot()
		}
		if err != nil {
			return err
		}
		msg.Layers[i] = data
	}
	j.batch = nil
	j.lastSend = pct
	if pct > j.lastProgress {
		j.lastProgress = pct
	}
	return j.send(KindLayersReady, msg)
}

func (j *Job) analyze(ctx context.Context) (*analyzer.Summary, error) {
	a := analyzer.New(j.opts.analyzer())
	var sendErr error
	a.Progress = func(pct, soFar float64) {
		if sendErr == nil {
			sendErr = j.send(KindAnalyzeProgress, AnalyzeProgress{Percentage: pct, PrintTimeSoFar: soFar})
		}
	}
	a.Diagnostic = func(herr *errors.HostError) {
		if sendErr == nil {
			sendErr = j.send(KindDiagnostic, Diagnostic{
				Code:    string(herr.Code),
				Message: herr.Message,
				Line:    herr.Line,
			})
		}
	}

	sum, err := a.Analyze(ctx, j.builder.Layers())
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.JobCancelledError(j.ID, err)
		}
		return nil, err
	}
	if sendErr != nil {
		return nil, sendErr
	}
	if info := j.header.Info(); info != (gcode.SlicerInfo{}) {
		sum.Slicer = &info
	}
	return sum, nil
}

func (j *Job) send(kind Kind, payload any) error {
	if err := j.sink.Send(Message{Kind: kind, Job: j.ID, Payload: payload}); err != nil {
		return errors.Wrap(err, errors.ErrJobFailed, "cannot deliver "+string(kind)).SetContext("job", j.ID)
	}
	return nil
}
