// Klipper-style printer.cfg reader
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config is a parsed printer.cfg. Only the sections the viewer reads
// (bed geometry) are consumed, but the whole file is retained so that
// unused-section reporting works.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string
	accessed map[string]struct{}
}

// New creates an empty Config.
func New() *Config {
	return &Config{
		sections: make(map[string]*Section),
		accessed: make(map[string]struct{}),
	}
}

// Load reads a printer.cfg, following [include glob] directives
// relative to the including file.
func Load(path string) (*Config, error) {
	c := New()
	if err := c.loadFile(path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses configuration text. Include directives are
// rejected since there is no base directory.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parse(strings.NewReader(data), "<string>", nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return WrapError("", "", fmt.Errorf("invalid path %s: %w", path, err))
	}
	if visited[abs] {
		return NewConfigError("", "", "recursive include: "+path)
	}
	visited[abs] = true
	defer delete(visited, abs)

	f, err := os.Open(abs)
	if err != nil {
		return WrapError("", "", fmt.Errorf("unable to open %s: %w", path, err))
	}
	defer f.Close()

	include := func(spec string) error {
		pattern := filepath.Join(filepath.Dir(abs), spec)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return NewConfigError("", "", fmt.Sprintf("invalid include pattern %q", spec))
		}
		if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
			return NewConfigError("", "", "include file does not exist: "+pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := c.loadFile(m, visited); err != nil {
				return err
			}
		}
		return nil
	}
	return c.parse(f, path, include)
}

// parse handles one file. Lines prefixed "#*#" are the SAVE_CONFIG
// block and are read as ordinary options.
func (c *Config) parse(r io.Reader, name string, include func(string) error) error {
	var section string
	var options map[string]string
	flush := func() {
		if section != "" {
			c.addSection(section, options)
		}
		section, options = "", nil
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#*#") {
			line = strings.TrimSpace(line[3:])
		} else if idx := strings.IndexAny(line, "#;"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return NewConfigError("", "", fmt.Sprintf("empty section header at line %d in %s", lineNum, name))
			}
			if spec, ok := strings.CutPrefix(header, "include "); ok {
				if include == nil {
					return NewConfigError("", "", fmt.Sprintf("include not supported at line %d in %s", lineNum, name))
				}
				if err := include(strings.TrimSpace(spec)); err != nil {
					return err
				}
				continue
			}
			section = header
			options = make(map[string]string)
			continue
		}
		if section == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			key, value, ok = strings.Cut(line, "=")
		}
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		options[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return WrapError("", "", fmt.Errorf("error reading %s: %w", name, err))
	}
	return nil
}

// addSection merges options into an existing section of the same name.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

// GetSection returns a Section by name, or error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	if sec := c.GetSectionOptional(name); sec != nil {
		return sec, nil
	}
	return nil, ErrMissingSection(name)
}

// GetSectionOptional returns a Section if it exists, or nil if not.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, ok := c.sections[name]
	if ok {
		c.accessed[name] = struct{}{}
	}
	return sec
}

// HasSection checks if a section exists without marking it accessed.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[name]
	return ok
}

// GetSectionNames returns section names in file order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// GetUnusedSections returns sections never fetched, in file order.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, name := range c.order {
		if _, ok := c.accessed[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
