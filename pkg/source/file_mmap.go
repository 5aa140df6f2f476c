// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build linux || darwin

package source

import (
	"os"

	"golang.org/x/sys/unix"

	"gcodeviewer-go/pkg/errors"
)

// FileSource is a memory-mapped G-code file.
type FileSource struct {
	*BufferSource
	mapped []byte
}

// OpenFile maps path read-only. Empty files are not mapped.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.SourceIOError(path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.SourceIOError(path, err)
	}
	if info.Size() == 0 {
		return &FileSource{BufferSource: newBytes(nil, path)}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.SourceIOError(path, err)
	}
	// sequential scan; the hint is advisory
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return &FileSource{BufferSource: newBytes(data, path), mapped: data}, nil
}

// Close unmaps the file. The source must not be used afterwards.
func (f *FileSource) Close() error {
	if f.mapped == nil {
		return nil
	}
	data := f.mapped
	f.mapped = nil
	if err := unix.Munmap(data); err != nil {
		return errors.SourceIOError(f.Name(), err)
	}
	return nil
}
