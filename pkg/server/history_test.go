// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/viewer"
)

// fakeClock advances one second per reading.
func fakeClock() func() time.Time {
	t := time.Unix(1000, 0)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestHistoryLifecycle(t *testing.T) {
	h := NewHistory(0)
	h.now = fakeClock()

	h.Start("a", "job-1", viewer.SourceFile, "cube.gcode")
	h.Start("b", "job-2", viewer.SourceInline, "inline")
	h.Start("c", "job-3", viewer.SourceHTTP, "http://x/y.gcode")

	h.Finish("a", &analyzer.Summary{TotalPrintTime: 120}, viewer.Stats{Lines: 10, Layers: 2}, nil)
	h.Finish("b", nil, viewer.Stats{Lines: 3}, errors.JobCancelledError("job-2", nil))
	h.Finish("c", nil, viewer.Stats{}, errors.SourceStatusError("http://x/y.gcode", 404))
	h.Finish("unknown", nil, viewer.Stats{}, nil)

	tests := []struct {
		uid    string
		status string
	}{
		{"a", StatusCompleted},
		{"b", StatusCancelled},
		{"c", StatusError},
	}
	for _, tt := range tests {
		rec, err := h.Get(tt.uid)
		if err != nil {
			t.Fatalf("Get(%s): %v", tt.uid, err)
		}
		if rec.Status != tt.status {
			t.Errorf("%s status = %s, want %s", tt.uid, rec.Status, tt.status)
		}
		if rec.EndTime == nil {
			t.Errorf("%s has no end time", tt.uid)
		}
	}

	rec, _ := h.Get("a")
	if rec.PrintTime != 120 || rec.Lines != 10 || rec.Layers != 2 {
		t.Errorf("record a = %+v", rec)
	}
	if rec, _ := h.Get("c"); rec.Error == "" {
		t.Error("failed record has no error text")
	}

	totals := h.Totals()
	if totals.TotalJobs != 3 {
		t.Errorf("TotalJobs = %d, want 3", totals.TotalJobs)
	}
	if totals.TotalLines != 13 {
		t.Errorf("TotalLines = %d, want 13", totals.TotalLines)
	}
	if totals.LongestPrint != 120 {
		t.Errorf("LongestPrint = %v, want 120", totals.LongestPrint)
	}
}

func TestHistoryListOrderAndPaging(t *testing.T) {
	h := NewHistory(0)
	h.now = fakeClock()
	for _, uid := range []string{"a", "b", "c", "d"} {
		h.Start(uid, uid, viewer.SourceInline, "")
	}

	uids := func(recs []JobRecord) string {
		s := ""
		for _, r := range recs {
			s += r.UID
		}
		return s
	}
	if got := uids(h.List(0, 0, "")); got != "dcba" {
		t.Errorf("desc = %q", got)
	}
	if got := uids(h.List(0, 0, "asc")); got != "abcd" {
		t.Errorf("asc = %q", got)
	}
	if got := uids(h.List(2, 1, "")); got != "cb" {
		t.Errorf("paged = %q", got)
	}
	if got := h.List(10, 10, ""); len(got) != 0 {
		t.Errorf("past end = %v", got)
	}
}

func TestHistoryLimitDropsOldest(t *testing.T) {
	h := NewHistory(2)
	h.Start("a", "a", viewer.SourceInline, "")
	h.Start("b", "b", viewer.SourceInline, "")
	h.Start("c", "c", viewer.SourceInline, "")

	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}
	if _, err := h.Get("a"); err == nil {
		t.Error("oldest record still present")
	}
}

func TestHistoryEndpoints(t *testing.T) {
	h := NewHistory(0)
	h.Start("a", "job-1", viewer.SourceInline, "")
	h.Finish("a", nil, viewer.Stats{Lines: 4}, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/server/history/list")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Result struct {
			Count int         `json:"count"`
			Jobs  []JobRecord `json:"jobs"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if list.Result.Count != 1 || len(list.Result.Jobs) != 1 || list.Result.Jobs[0].Lines != 4 {
		t.Errorf("list = %+v", list.Result)
	}

	resp, _ = http.Get(ts.URL + "/server/history/job")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing uid status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/server/history/job?uid=a", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || h.Len() != 0 {
		t.Errorf("delete status = %d, len = %d", resp.StatusCode, h.Len())
	}

	resp, _ = http.Get(ts.URL + "/server/history/job?uid=a")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted job status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + "/server/history/reset_totals")
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET reset status = %d", resp.StatusCode)
	}
}

func TestFilesListAndMetadata(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "cube.gcode"), []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "part.gcode"), []byte("G1 X1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewFiles(root)

	files, dirs, err := f.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "cube.gcode" || files[0].Size != int64(len(sample)) {
		t.Errorf("files = %+v", files)
	}
	if len(dirs) != 1 || dirs[0].Dirname != "sub" {
		t.Errorf("dirs = %+v", dirs)
	}

	files, _, err = f.List("sub")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "sub/part.gcode" {
		t.Errorf("sub files = %+v", files)
	}

	if _, _, err := f.List("../"); !errors.IsSource(err) {
		t.Errorf("List(../) err = %v, want source error", err)
	}

	meta, err := f.Metadata("cube.gcode")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Slicer != "PrusaSlicer" || meta.SlicerVersion != "2.6.0" {
		t.Errorf("slicer = %q %q", meta.Slicer, meta.SlicerVersion)
	}
	if meta.LayerHeight == nil || *meta.LayerHeight != 0.2 {
		t.Errorf("layer height = %v", meta.LayerHeight)
	}
	again, _ := f.Metadata("cube.gcode")
	if again != meta {
		t.Error("metadata not cached")
	}

	if _, err := f.Metadata("sub"); err == nil {
		t.Error("metadata of a directory succeeded")
	}
}

func TestFilesEndpoints(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cube.gcode"), []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewFiles(root).Register(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/server/files/metadata?filename=cube.gcode")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Result FileMetadata `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Result.Filename != "cube.gcode" {
		t.Errorf("filename = %q", out.Result.Filename)
	}

	resp, _ = http.Get(ts.URL + "/server/files/metadata")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing filename status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + "/server/files/list?path=../../etc")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("traversal status = %d", resp.StatusCode)
	}
}

func TestHistoryResetTotalsKeepsJobs(t *testing.T) {
	h := NewHistory(0)
	h.Start("a", "job-1", viewer.SourceInline, "")
	h.Finish("a", &analyzer.Summary{TotalPrintTime: 30}, viewer.Stats{Lines: 4}, nil)
	h.Finish("a", nil, viewer.Stats{Lines: 99}, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/server/history/reset_totals", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Result struct {
			LastTotals JobTotals `json:"last_totals"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if out.Result.LastTotals.TotalJobs != 1 || out.Result.LastTotals.TotalLines != 4 {
		t.Errorf("last totals = %+v", out.Result.LastTotals)
	}
	if got := h.Totals(); got != (JobTotals{}) {
		t.Errorf("totals after reset = %+v", got)
	}
	if h.Len() != 1 {
		t.Errorf("Len after reset = %d, want 1", h.Len())
	}

	if err := h.Delete("a"); err != nil {
		t.Fatal(err)
	}
	h.Start("b", "job-2", viewer.SourceInline, "")
	h.Finish("b", nil, viewer.Stats{Lines: 2}, nil)
	if got := h.Totals().TotalLines; got != 2 {
		t.Errorf("TotalLines = %d, want 2", got)
	}
}
