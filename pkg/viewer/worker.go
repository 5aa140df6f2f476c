// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package viewer

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/log"
	"gcodeviewer-go/pkg/metrics"
)

// Hooks observe the job lifecycle. Started runs inside Submit with the
// worker locked; Finished runs on the job goroutine.
type Hooks struct {
	Started  func(id, kind string, req Request)
	Finished func(id string, sum *analyzer.Summary, stats Stats, err error)
}

// Worker runs at most one job at a time for one client. Submitting a
// new job cancels the running one and waits for it to stop, so a client
// never sees messages from two jobs interleaved.
type Worker struct {
	Hooks Hooks

	sink    Sink
	opener  *Opener
	metrics *metrics.ViewerMetrics
	log     *log.Logger

	mu     sync.Mutex
	opts   Options
	cancel context.CancelFunc
	done   chan struct{}
	seq    int
	closed bool
}

// NewWorker creates a worker sending to sink. A nil opener only accepts
// inline and http sources; nil m uses the global metrics.
func NewWorker(sink Sink, opener *Opener, defaults Options, m *metrics.ViewerMetrics) *Worker {
	if opener == nil {
		opener = &Opener{}
	}
	if m == nil {
		m = metrics.Global()
	}
	return &Worker{
		sink:    sink,
		opener:  opener,
		metrics: m,
		log:     log.GetLogger("worker"),
		opts:    defaults.clone(),
	}
}

// Options returns the options new jobs start from.
func (w *Worker) Options() Options {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts.clone()
}

// SetOption merges raw into the worker options. A running job keeps the
// options it started with.
func (w *Worker) SetOption(raw json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	opts, err := w.opts.Apply(raw)
	if err != nil {
		return err
	}
	w.opts = opts
	return nil
}

// Submit cancels any running job and starts req. The request options
// apply to this job only. The returned id tags every message of the
// job; failures after this point arrive as a jobFailed message.
func (w *Worker) Submit(ctx context.Context, req Request) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return "", errors.New(errors.ErrJobFailed, "worker closed")
	}
	opts, err := w.opts.Apply(req.Options)
	if err != nil {
		return "", err
	}
	w.stopLocked()

	w.seq++
	id := "job-" + strconv.Itoa(w.seq)
	kind := w.opener.Kind(req)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done

	job := NewJob(id, opts)
	w.metrics.JobStarted(kind)
	w.log.WithFields(log.Fields{"job": id, "source": kind}).Info("job started")
	if w.Hooks.Started != nil {
		w.Hooks.Started(id, kind, req)
	}

	go func() {
		defer close(done)
		defer cancel()
		sum, err := w.run(ctx, job, req)
		w.finish(ctx, job, sum, err)
	}()
	return id, nil
}

func (w *Worker) run(ctx context.Context, job *Job, req Request) (*analyzer.Summary, error) {
	src, err := w.opener.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return job.Run(ctx, src, w.sink)
}

func (w *Worker) finish(ctx context.Context, job *Job, sum *analyzer.Summary, err error) {
	stats := job.Stats()
	entry := w.log.WithFields(log.Fields{"job": job.ID, "lines": stats.Lines, "layers": stats.Layers})

	switch {
	case err == nil:
		w.metrics.JobCompleted(stats.ParseTime, stats.AnalyzeTime, stats.Lines, stats.Layers)
		w.metrics.UnknownMoves.Add(nil, uint64(sum.UnknownMoves))
		entry.Info("job completed")
	case ctx.Err() != nil || errors.Is(err, errors.ErrJobCancelled):
		if !errors.Is(err, errors.ErrJobCancelled) {
			err = errors.JobCancelledError(job.ID, err)
		}
		w.metrics.JobCancelled()
		entry.Info("job cancelled")
	default:
		w.metrics.JobFailed(string(errors.CodeOf(err)))
		entry.Warnf("job failed: %v", err)
	}

	if err != nil {
		msg := JobFailed{Code: string(errors.CodeOf(err)), Message: err.Error()}
		if serr := w.sink.Send(Message{Kind: KindJobFailed, Job: job.ID, Payload: msg}); serr != nil {
			entry.Debug("jobFailed not delivered: " + serr.Error())
		}
	}
	if w.Hooks.Finished != nil {
		w.Hooks.Finished(job.ID, sum, stats, err)
	}
}

// stopLocked cancels the running job and waits for it. w.mu is held;
// the job goroutine never takes it.
func (w *Worker) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel, w.done = nil, nil
}

// Cancel stops the running job, if any, and waits until its jobFailed
// message has been sent.
func (w *Worker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// Wait blocks until the running job, if any, has finished.
func (w *Worker) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels the running job and rejects further submissions.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.stopLocked()
}
