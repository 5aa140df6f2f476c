// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"math"
	"strconv"
	"strings"
)

// word is one letter-prefixed token, e.g. X10.5.
type word struct {
	letter byte // lower case
	raw    string
}

// value parses the numeric part; ok is false for an empty, malformed
// or non-finite number.
func (w word) value() (float64, bool) {
	if w.raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(w.raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// line is a tokenized G-code line.
type line struct {
	name  string // upper case command word, e.g. G1, G1.0, T2
	words []word
}

// StripComment removes everything from the first ';' or '(' and the
// surrounding whitespace. It is idempotent.
func StripComment(s string) string {
	if idx := strings.IndexAny(s, ";("); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// tokenize splits a stripped line into the command word and its
// arguments. A leading N line number and a trailing *checksum are
// dropped. Returns false for lines that hold no command.
func tokenize(s string) (line, bool) {
	s = StripComment(s)
	if idx := strings.LastIndexByte(s, '*'); idx >= 0 && isDigits(strings.TrimSpace(s[idx+1:])) {
		s = strings.TrimSpace(s[:idx])
	}
	fields := strings.Fields(s)
	if len(fields) > 0 && (fields[0][0] == 'N' || fields[0][0] == 'n') && isDigits(fields[0][1:]) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return line{}, false
	}

	l := line{name: strings.ToUpper(fields[0])}
	for _, f := range fields[1:] {
		c := f[0]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		l.words = append(l.words, word{letter: c, raw: f[1:]})
	}
	return l, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// code splits a command word like "G01.5" into its letter and number,
// ignoring the subcode: ('G', 1, true).
func code(name string) (byte, int, bool) {
	if len(name) < 2 {
		return 0, 0, false
	}
	num := name[1:]
	if dot := strings.IndexByte(num, '.'); dot >= 0 {
		if !isDigits(num[dot+1:]) {
			return 0, 0, false
		}
		num = num[:dot]
	}
	if !isDigits(num) {
		return 0, 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, 0, false
	}
	return name[0], n, true
}
