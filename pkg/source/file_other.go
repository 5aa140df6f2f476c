// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build !linux && !darwin

package source

import (
	"os"

	"gcodeviewer-go/pkg/errors"
)

// FileSource is a G-code file read into memory.
type FileSource struct {
	*BufferSource
}

// OpenFile reads path completely.
func OpenFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.SourceIOError(path, err)
	}
	return &FileSource{BufferSource: newBytes(data, path)}, nil
}

// Close is a no-op.
func (f *FileSource) Close() error { return nil }
