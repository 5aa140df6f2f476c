// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"regexp"
	"strconv"
	"strings"
)

// HeaderScanLimit bounds how many bytes of leading text are searched
// for slicer metadata.
const HeaderScanLimit = 64 << 10

// SlicerInfo is metadata found in the comment header of a file.
type SlicerInfo struct {
	Name             string  `json:"name,omitempty"`
	Version          string  `json:"version,omitempty"`
	Flavor           string  `json:"flavor,omitempty"`
	LayerHeight      float64 `json:"layerHeight,omitempty"`
	FirstLayerHeight float64 `json:"firstLayerHeight,omitempty"`
}

var (
	reGenerated   = regexp.MustCompile(`(?i)generated (?:by|with) ([A-Za-z][\w\-]*(?:\(R\))?)(?:\s+(?:version\s+)?([0-9][\w.\-+]*))?`)
	reFlavor      = regexp.MustCompile(`(?i)^flavor:\s*(\S+)`)
	reLayerHeight = regexp.MustCompile(`(?i)^(first_layer_height|layer_height|layer height)\s*[=:]\s*([0-9.]+)`)
)

// HeaderScanner collects SlicerInfo from the first HeaderScanLimit
// bytes of a file. Feed it raw lines, comments included.
type HeaderScanner struct {
	info    SlicerInfo
	scanned int
}

// Done reports whether the scan window is exhausted.
func (h *HeaderScanner) Done() bool {
	return h.scanned >= HeaderScanLimit
}

// Feed inspects one raw line.
func (h *HeaderScanner) Feed(raw string) {
	if h.Done() {
		return
	}
	h.scanned += len(raw) + 1

	idx := strings.IndexByte(raw, ';')
	if idx < 0 {
		return
	}
	comment := strings.TrimSpace(raw[idx+1:])

	if h.info.Name == "" {
		if m := reGenerated.FindStringSubmatch(comment); m != nil {
			h.info.Name = strings.TrimSuffix(m[1], "(R)")
			h.info.Version = m[2]
			return
		}
	}
	if m := reFlavor.FindStringSubmatch(comment); m != nil {
		h.info.Flavor = m[1]
		return
	}
	if m := reLayerHeight.FindStringSubmatch(comment); m != nil {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return
		}
		if strings.EqualFold(m[1], "first_layer_height") {
			h.info.FirstLayerHeight = v
		} else if h.info.LayerHeight == 0 {
			h.info.LayerHeight = v
		}
	}
}

// Info returns what has been found so far.
func (h *HeaderScanner) Info() SlicerInfo {
	return h.info
}
