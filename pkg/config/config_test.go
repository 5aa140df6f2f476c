// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gcodeviewer-go/pkg/errors"
)

func TestLoadString(t *testing.T) {
	data := `
[printer]
kinematics: cartesian
max_velocity = 300   # mm/s

[stepper_x]
dir_pin: !PA4 ; inverted
position_min: -5
position_max: 200
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	if !cfg.HasSection("printer") || !cfg.HasSection("stepper_x") {
		t.Fatal("expected [printer] and [stepper_x] sections")
	}
	if cfg.HasSection("nonexistent") {
		t.Error("expected [nonexistent] section to not exist")
	}

	printer, err := cfg.GetSection("printer")
	if err != nil {
		t.Fatalf("GetSection(printer) failed: %v", err)
	}
	if printer.GetName() != "printer" {
		t.Errorf("expected name 'printer', got '%s'", printer.GetName())
	}
	kin, err := printer.Get("kinematics")
	if err != nil || kin != "cartesian" {
		t.Errorf("Get(kinematics) = %q, %v", kin, err)
	}
	vel, err := printer.GetFloat("max_velocity")
	if err != nil || vel != 300 {
		t.Errorf("GetFloat(max_velocity) = %v, %v", vel, err)
	}

	x, _ := cfg.GetSection("stepper_x")
	pin, _ := x.Get("dir_pin")
	if pin != "!PA4" {
		t.Errorf("expected comment stripped, got %q", pin)
	}
	min, _ := x.GetFloat("position_min")
	if min != -5 {
		t.Errorf("position_min = %v, want -5", min)
	}
}

func TestGetters(t *testing.T) {
	cfg, err := LoadString(`
[probe]
enabled: yes
speeds: 1.5, 2.5,,3
bad_float: abc
bad_bool: maybe
Mode: Fast
`)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	s, _ := cfg.GetSection("probe")

	if v, err := s.GetBool("enabled"); err != nil || !v {
		t.Errorf("GetBool(enabled) = %v, %v", v, err)
	}
	if v, err := s.GetBool("missing", true); err != nil || !v {
		t.Errorf("GetBool fallback = %v, %v", v, err)
	}
	if _, err := s.GetBool("bad_bool"); !errors.Is(err, errors.ErrConfigType) {
		t.Errorf("expected CONFIG_TYPE for bad bool, got %v", err)
	}
	if _, err := s.GetFloat("bad_float"); !errors.Is(err, errors.ErrConfigType) {
		t.Errorf("expected CONFIG_TYPE for bad float, got %v", err)
	}
	if _, err := s.GetFloat("missing"); !errors.Is(err, errors.ErrConfigOption) {
		t.Errorf("expected CONFIG_OPTION for missing option, got %v", err)
	}

	mode, err := s.GetChoice("mode", []string{"slow", "fast"})
	if err != nil || mode != "fast" {
		t.Errorf("GetChoice(mode) = %q, %v", mode, err)
	}
	if _, err := s.GetChoice("mode", []string{"slow"}); err == nil {
		t.Error("expected error for invalid choice")
	}

	unused := s.GetUnusedOptions()
	if !reflect.DeepEqual(unused, []string{"speeds"}) {
		t.Errorf("GetUnusedOptions() = %v, want [speeds]", unused)
	}
}

func TestSectionsMergeAndTracking(t *testing.T) {
	cfg, err := LoadString(`
[printer]
kinematics: corexy
[extruder]
nozzle_diameter: 0.4
[printer]
max_velocity: 200
#*# <---------------------- SAVE_CONFIG ---------------------->
#*# [bed_mesh default]
#*# version = 1
`)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	want := []string{"printer", "extruder", "bed_mesh default"}
	if got := cfg.GetSectionNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("GetSectionNames() = %v, want %v", got, want)
	}

	printer, _ := cfg.GetSection("printer")
	if !printer.HasOption("kinematics") || !printer.HasOption("MAX_VELOCITY") {
		t.Error("expected merged [printer] options")
	}
	mesh := cfg.GetSectionOptional("bed_mesh default")
	if mesh == nil {
		t.Fatal("expected SAVE_CONFIG section")
	}
	if v, _ := mesh.Get("version"); v != "1" {
		t.Errorf("version = %q, want 1", v)
	}

	if got := cfg.GetUnusedSections(); !reflect.DeepEqual(got, []string{"extruder"}) {
		t.Errorf("GetUnusedSections() = %v", got)
	}
	if _, err := cfg.GetSection("nope"); !errors.Is(err, errors.ErrConfigSection) {
		t.Errorf("expected CONFIG_SECTION error, got %v", err)
	}
}

func TestLoadStringRejectsInclude(t *testing.T) {
	if _, err := LoadString("[include other.cfg]\n"); err == nil {
		t.Error("expected include to be rejected")
	}
	if _, err := LoadString("[]\n"); err == nil {
		t.Error("expected empty header to be rejected")
	}
}

func TestLoadWithInclude(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("printer.cfg", "[include parts/*.cfg]\n[printer]\nkinematics: cartesian\n")
	write("parts/a.cfg", "[stepper_x]\nposition_max: 220\n")
	write("parts/b.cfg", "[stepper_y]\nposition_max: 230\n")

	cfg, err := Load(filepath.Join(dir, "printer.cfg"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"stepper_x", "stepper_y", "printer"}
	if got := cfg.GetSectionNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("GetSectionNames() = %v, want %v", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.cfg")); !errors.IsConfig(err) {
		t.Errorf("expected config error for missing file, got %v", err)
	}

	loop := filepath.Join(dir, "loop.cfg")
	if err := os.WriteFile(loop, []byte("[include loop.cfg]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(loop); err == nil {
		t.Error("expected recursive include error")
	}

	missing := filepath.Join(dir, "inc.cfg")
	if err := os.WriteFile(missing, []byte("[include nothere.cfg]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(missing); err == nil {
		t.Error("expected error for missing include")
	}
}
