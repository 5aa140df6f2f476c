// Line sources for the G-code interpreter
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package source turns buffers, files and HTTP bodies into a pull-based
// sequence of text lines paired with the input progress.
package source

import (
	"bytes"
	"io"

	"gcodeviewer-go/pkg/errors"
)

// Line is one line of input without its terminator.
type Line struct {
	Text string
	// Percentage of the input consumed once this line was read, 0-100.
	Percentage float64
	// Index is the 1-based line number.
	Index int
}

// Source yields lines until io.EOF. Any other error means the input
// could not be read completely and the job must fail.
type Source interface {
	Next() (Line, error)
	Close() error
}

// Searcher is implemented by sources whose whole content is available
// up front.
type Searcher interface {
	// HasLinePrefix reports whether any line starts with prefix.
	HasLinePrefix(prefix string) bool
}

// Name is implemented by sources that know where they read from.
type Name interface {
	Name() string
}

const chunkSize = 64 << 10

// ReaderSource splits an io.Reader into lines on \n, \r or \r\n. A line
// split across reads is buffered until its terminator arrives, and a
// final line without terminator is still returned.
type ReaderSource struct {
	r      io.Reader
	closer io.Closer
	name   string

	total    int64
	consumed int64
	index    int

	buf   []byte
	start int
	eof   bool
}

// NewReader wraps r. total is the expected byte length, or <= 0 when
// unknown, in which case percentages stay at 0 until the end.
func NewReader(r io.Reader, total int64) *ReaderSource {
	s := &ReaderSource{r: r, total: total, name: "reader"}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Name returns a description of the input for logs and errors.
func (s *ReaderSource) Name() string {
	return s.name
}

// Next returns the next line.
func (s *ReaderSource) Next() (Line, error) {
	for {
		rest := s.buf[s.start:]
		if i := bytes.IndexAny(rest, "\r\n"); i >= 0 {
			width := 1
			if rest[i] == '\r' {
				if i+1 == len(rest) && !s.eof {
					// need one more byte to tell \r from \r\n
					if err := s.fill(); err != nil {
						return Line{}, err
					}
					continue
				}
				if i+1 < len(rest) && rest[i+1] == '\n' {
					width = 2
				}
			}
			return s.emit(string(rest[:i]), i+width), nil
		}
		if s.eof {
			if len(rest) > 0 {
				return s.emit(string(rest), len(rest)), nil
			}
			return Line{}, io.EOF
		}
		if err := s.fill(); err != nil {
			return Line{}, err
		}
	}
}

func (s *ReaderSource) emit(text string, n int) Line {
	s.start += n
	s.consumed += int64(n)
	s.index++
	return Line{Text: text, Percentage: s.percentage(), Index: s.index}
}

func (s *ReaderSource) percentage() float64 {
	if s.total <= 0 {
		if s.eof && s.start == len(s.buf) {
			return 100
		}
		return 0
	}
	p := float64(s.consumed) * 100 / float64(s.total)
	if p > 100 {
		p = 100
	}
	return p
}

// fill compacts the buffer and reads one more chunk.
func (s *ReaderSource) fill() error {
	if s.start > 0 {
		n := copy(s.buf, s.buf[s.start:])
		s.buf = s.buf[:n]
		s.start = 0
	}
	if cap(s.buf)-len(s.buf) < chunkSize {
		grown := make([]byte, len(s.buf), len(s.buf)+chunkSize)
		copy(grown, s.buf)
		s.buf = grown
	}
	n, err := s.r.Read(s.buf[len(s.buf):cap(s.buf)])
	s.buf = s.buf[:len(s.buf)+n]
	switch {
	case err == io.EOF:
		s.eof = true
	case err != nil:
		return errors.SourceIOError(s.name, err)
	}
	return nil
}

// Close releases the underlying reader if it is closable.
func (s *ReaderSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// BufferSource reads from an in-memory byte slice and supports
// searching ahead.
type BufferSource struct {
	*ReaderSource
	data []byte
}

// NewBuffer returns a source over text.
func NewBuffer(text string) *BufferSource {
	return newBytes([]byte(text), "buffer")
}

func newBytes(data []byte, name string) *BufferSource {
	rs := NewReader(bytes.NewReader(data), int64(len(data)))
	rs.name = name
	return &BufferSource{ReaderSource: rs, data: data}
}

// HasLinePrefix reports whether any line starts with prefix.
func (b *BufferSource) HasLinePrefix(prefix string) bool {
	return hasLinePrefix(b.data, []byte(prefix))
}

func hasLinePrefix(data, prefix []byte) bool {
	if len(prefix) == 0 {
		return false
	}
	for off := 0; off < len(data); {
		i := bytes.Index(data[off:], prefix)
		if i < 0 {
			return false
		}
		at := off + i
		if at == 0 || data[at-1] == '\n' || data[at-1] == '\r' {
			return true
		}
		off = at + 1
	}
	return false
}

// LinesSource yields an already split slice of lines. Percentage is the
// share of lines consumed.
type LinesSource struct {
	lines []string
	next  int
}

// NewLines returns a source over lines.
func NewLines(lines []string) *LinesSource {
	return &LinesSource{lines: lines}
}

// Next returns the next line.
func (l *LinesSource) Next() (Line, error) {
	if l.next >= len(l.lines) {
		return Line{}, io.EOF
	}
	text := l.lines[l.next]
	l.next++
	return Line{
		Text:       text,
		Percentage: float64(l.next) * 100 / float64(len(l.lines)),
		Index:      l.next,
	}, nil
}

// HasLinePrefix reports whether any line starts with prefix.
func (l *LinesSource) HasLinePrefix(prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, line := range l.lines {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// Close is a no-op.
func (l *LinesSource) Close() error { return nil }
