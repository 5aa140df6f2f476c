// Parse job history endpoints
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/viewer"
)

// Job states in the history.
const (
	StatusRunning   = "in_progress"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// DefaultHistorySize bounds the number of kept records.
const DefaultHistorySize = 200

// JobRecord is one parse job as seen by the history.
type JobRecord struct {
	UID          string   `json:"uid"`
	JobID        string   `json:"job_id"`
	Source       string   `json:"source"`
	Kind         string   `json:"kind"`
	Status       string   `json:"status"`
	StartTime    float64  `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
	Duration     float64  `json:"duration"`
	Lines        int      `json:"lines"`
	Layers       int      `json:"layers"`
	PrintTime    float64  `json:"print_time"`
	FilamentUsed float64  `json:"filament_used"`
	Error        string   `json:"error,omitempty"`
}

// JobTotals aggregates finished jobs.
type JobTotals struct {
	TotalJobs      int     `json:"total_jobs"`
	TotalLines     int     `json:"total_lines"`
	TotalDuration  float64 `json:"total_duration"`
	TotalPrintTime float64 `json:"total_print_time"`
	TotalFilament  float64 `json:"total_filament_used"`
	LongestJob     float64 `json:"longest_job"`
	LongestPrint   float64 `json:"longest_print"`
}

// History keeps the most recent jobs of all clients, newest first.
// Totals accumulate separately and outlive trimmed or deleted records.
type History struct {
	mu     sync.RWMutex
	jobs   map[string]*JobRecord
	order  []string
	limit  int
	totals JobTotals
	now    func() time.Time
}

// NewHistory keeps up to limit records; limit <= 0 uses
// DefaultHistorySize.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{
		jobs:  make(map[string]*JobRecord),
		limit: limit,
		now:   time.Now,
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Start records a running job.
func (h *History) Start(uid, jobID, kind, src string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.jobs[uid] = &JobRecord{
		UID:       uid,
		JobID:     jobID,
		Source:    src,
		Kind:      kind,
		Status:    StatusRunning,
		StartTime: unixSeconds(h.now()),
	}
	h.order = append([]string{uid}, h.order...)
	for len(h.order) > h.limit {
		drop := h.order[len(h.order)-1]
		h.order = h.order[:len(h.order)-1]
		delete(h.jobs, drop)
	}
}

// Finish closes the record of uid. Unknown uids are ignored.
func (h *History) Finish(uid string, sum *analyzer.Summary, stats viewer.Stats, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.jobs[uid]
	if !ok || rec.EndTime != nil {
		return
	}
	end := unixSeconds(h.now())
	rec.EndTime = &end
	rec.Duration = end - rec.StartTime
	rec.Lines = stats.Lines
	rec.Layers = stats.Layers

	switch {
	case err == nil:
		rec.Status = StatusCompleted
		if sum != nil {
			rec.PrintTime = sum.TotalPrintTime
			rec.FilamentUsed = sum.TotalFilament()
		}
	case errors.Is(err, errors.ErrJobCancelled):
		rec.Status = StatusCancelled
	default:
		rec.Status = StatusError
		rec.Error = err.Error()
	}
	h.totals.add(rec)
}

func (t *JobTotals) add(rec *JobRecord) {
	t.TotalJobs++
	t.TotalLines += rec.Lines
	t.TotalDuration += rec.Duration
	t.TotalPrintTime += rec.PrintTime
	t.TotalFilament += rec.FilamentUsed
	t.LongestJob = max(t.LongestJob, rec.Duration)
	t.LongestPrint = max(t.LongestPrint, rec.PrintTime)
}

// Get returns a copy of the record of uid.
func (h *History) Get(uid string) (JobRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.jobs[uid]
	if !ok {
		return JobRecord{}, fmt.Errorf("job not found: %s", uid)
	}
	return *rec, nil
}

// List returns records newest first, or oldest first when order is
// "asc", skipping start and returning at most limit (0 means all).
func (h *History) List(limit, start int, order string) []JobRecord {
	h.mu.RLock()
	out := make([]JobRecord, 0, len(h.order))
	for _, uid := range h.order {
		out = append(out, *h.jobs[uid])
	}
	h.mu.RUnlock()

	if order == "asc" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	}
	if start >= len(out) {
		return []JobRecord{}
	}
	if start > 0 {
		out = out[start:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Len returns the number of records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

// Totals aggregates every job finished since the last reset.
func (h *History) Totals() JobTotals {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totals
}

// Delete removes the record of uid.
func (h *History) Delete(uid string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.jobs[uid]; !ok {
		return fmt.Errorf("job not found: %s", uid)
	}
	delete(h.jobs, uid)
	for i, id := range h.order {
		if id == uid {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return nil
}

// ResetTotals zeroes the totals and returns their last value. The job
// list is kept.
func (h *History) ResetTotals() JobTotals {
	h.mu.Lock()
	defer h.mu.Unlock()
	last := h.totals
	h.totals = JobTotals{}
	return last
}

// Register adds the history endpoints to mux.
func (h *History) Register(mux *http.ServeMux) {
	mux.HandleFunc("/server/history/list", h.handleList)
	mux.HandleFunc("/server/history/totals", h.handleTotals)
	mux.HandleFunc("/server/history/job", h.handleJob)
	mux.HandleFunc("/server/history/reset_totals", h.handleReset)
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func (h *History) handleList(w http.ResponseWriter, r *http.Request) {
	jobs := h.List(queryInt(r, "limit", 50), queryInt(r, "start", 0), r.URL.Query().Get("order"))
	writeJSON(w, map[string]any{
		"result": map[string]any{
			"count": h.Len(),
			"jobs":  jobs,
		},
	})
}

func (h *History) handleTotals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"result": map[string]any{"job_totals": h.Totals()},
	})
}

func (h *History) handleJob(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeJSONError(w, fmt.Errorf("missing uid parameter"), http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := h.Get(uid)
		if err != nil {
			writeJSONError(w, err, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"job": rec}})
	case http.MethodDelete:
		if err := h.Delete(uid); err != nil {
			writeJSONError(w, err, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"deleted_jobs": []string{uid}}})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *History) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	last := h.ResetTotals()
	writeJSON(w, map[string]any{"result": map[string]any{"last_totals": last}})
}
