// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gcodeviewer-go/pkg/source"
)

// Source kinds, used as metric labels.
const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceInline = "inline"
)

// Request asks for one parse. Path names a file under the gcode root;
// otherwise Source is either an http(s) URL or the G-code text itself.
type Request struct {
	Source  string          `json:"source,omitempty"`
	Path    string          `json:"path,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
}

// Opener turns requests into line sources.
type Opener struct {
	Client *http.Client
	Root   string
}

// Kind classifies req without opening anything.
func (o *Opener) Kind(req Request) string {
	switch {
	case req.Path != "":
		return SourceFile
	case isURL(req.Source):
		return SourceHTTP
	default:
		return SourceInline
	}
}

// Open starts reading req. HTTP downloads are bound to ctx.
func (o *Opener) Open(ctx context.Context, req Request) (source.Source, error) {
	switch o.Kind(req) {
	case SourceFile:
		path, err := source.ResolvePath(o.Root, req.Path)
		if err != nil {
			return nil, err
		}
		f, err := source.OpenFile(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case SourceHTTP:
		r, err := source.OpenHTTP(ctx, o.Client, req.Source)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return source.NewBuffer(req.Source), nil
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
