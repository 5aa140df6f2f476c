// G-code file listing and metadata endpoints
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/gcode"
	"gcodeviewer-go/pkg/source"
)

// FileItem is a file in a listing. Path is relative to the root.
type FileItem struct {
	Path     string  `json:"path"`
	Modified float64 `json:"modified"`
	Size     int64   `json:"size"`
}

// DirItem is a directory in a listing.
type DirItem struct {
	Dirname  string  `json:"dirname"`
	Modified float64 `json:"modified"`
}

// FileMetadata is what the header of a G-code file tells about it.
type FileMetadata struct {
	Path     string  `json:"path"`
	Filename string  `json:"filename"`
	Modified float64 `json:"modified"`
	Size     int64   `json:"size"`

	Slicer           string   `json:"slicer,omitempty"`
	SlicerVersion    string   `json:"slicer_version,omitempty"`
	Flavor           string   `json:"flavor,omitempty"`
	LayerHeight      *float64 `json:"layer_height,omitempty"`
	FirstLayerHeight *float64 `json:"first_layer_height,omitempty"`
}

type cachedMetadata struct {
	modTime time.Time
	size    int64
	meta    *FileMetadata
}

// Files serves the gcode root that `path` sources read from.
type Files struct {
	root string

	mu    sync.Mutex
	cache map[string]cachedMetadata
}

// NewFiles serves root. An empty root disables the endpoints.
func NewFiles(root string) *Files {
	return &Files{root: root, cache: make(map[string]cachedMetadata)}
}

func (f *Files) resolve(rel string) (string, error) {
	if rel == "" || rel == "." || rel == "/" {
		if f.root == "" {
			return "", errors.New(errors.ErrSourceIO, "no gcode root configured")
		}
		return f.root, nil
	}
	return source.ResolvePath(f.root, strings.TrimPrefix(rel, "/"))
}

// List returns the files and directories directly under rel, sorted by
// name.
func (f *Files) List(rel string) ([]FileItem, []DirItem, error) {
	dir, err := f.resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.SourceIOError(rel, err)
	}

	files := []FileItem{}
	dirs := []DirItem{}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, DirItem{Dirname: entry.Name(), Modified: unixSeconds(info.ModTime())})
			continue
		}
		files = append(files, FileItem{
			Path:     filepath.ToSlash(filepath.Join(strings.TrimPrefix(rel, "/"), entry.Name())),
			Modified: unixSeconds(info.ModTime()),
			Size:     info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Dirname < dirs[j].Dirname })
	return files, dirs, nil
}

// Metadata scans the header of rel. Results are cached until the file
// changes.
func (f *Files) Metadata(rel string) (*FileMetadata, error) {
	path, err := source.ResolvePath(f.root, strings.TrimPrefix(rel, "/"))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.SourceIOError(rel, err)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrSourceIO, fmt.Sprintf("%s is a directory", rel)).SetSource(rel)
	}

	f.mu.Lock()
	c, ok := f.cache[path]
	f.mu.Unlock()
	if ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.meta, nil
	}

	meta := &FileMetadata{
		Path:     filepath.ToSlash(strings.TrimPrefix(rel, "/")),
		Filename: filepath.Base(path),
		Modified: unixSeconds(info.ModTime()),
		Size:     info.Size(),
	}
	sliced, err := scanHeader(path)
	if err != nil {
		return nil, err
	}
	meta.Slicer = sliced.Name
	meta.SlicerVersion = sliced.Version
	meta.Flavor = sliced.Flavor
	if sliced.LayerHeight > 0 {
		meta.LayerHeight = &sliced.LayerHeight
	}
	if sliced.FirstLayerHeight > 0 {
		meta.FirstLayerHeight = &sliced.FirstLayerHeight
	}

	f.mu.Lock()
	f.cache[path] = cachedMetadata{modTime: info.ModTime(), size: info.Size(), meta: meta}
	f.mu.Unlock()
	return meta, nil
}

func scanHeader(path string) (gcode.SlicerInfo, error) {
	src, err := source.OpenFile(path)
	if err != nil {
		return gcode.SlicerInfo{}, err
	}
	defer src.Close()

	var h gcode.HeaderScanner
	for !h.Done() {
		line, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return gcode.SlicerInfo{}, err
		}
		h.Feed(line.Text)
	}
	return h.Info(), nil
}

// Register adds the file endpoints to mux.
func (f *Files) Register(mux *http.ServeMux) {
	mux.HandleFunc("/server/files/list", f.handleList)
	mux.HandleFunc("/server/files/metadata", f.handleMetadata)
}

func (f *Files) handleList(w http.ResponseWriter, r *http.Request) {
	files, dirs, err := f.List(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"result": map[string]any{
			"files": files,
			"dirs":  dirs,
		},
	})
}

func (f *Files) handleMetadata(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		writeJSONError(w, fmt.Errorf("missing filename parameter"), http.StatusBadRequest)
		return
	}
	meta, err := f.Metadata(name)
	if err != nil {
		writeJSONError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"result": meta})
}
