// Error handling tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"io"
	"strings"
	"testing"
)

func TestHostErrorMessage(t *testing.T) {
	err := SourceIOError("benchy.gcode", io.ErrUnexpectedEOF).SetLine(42)
	msg := err.Error()
	if !strings.Contains(msg, "SOURCE_IO") {
		t.Errorf("expected code in message, got: %s", msg)
	}
	if !strings.Contains(msg, "benchy.gcode") {
		t.Errorf("expected source in message, got: %s", msg)
	}
	if !strings.Contains(msg, "line 42") {
		t.Errorf("expected line in message, got: %s", msg)
	}
	if !stderrors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected wrapped cause to be reachable")
	}
}

func TestIsWalksChain(t *testing.T) {
	inner := SourceStatusError("http://host/file.gcode", 404)
	outer := JobCancelledError("job-1", inner)

	if !Is(outer, ErrJobCancelled) {
		t.Error("expected outer code to match")
	}
	if !Is(outer, ErrSourceStatus) {
		t.Error("expected inner code to match through Unwrap")
	}
	if Is(outer, ErrModelCodec) {
		t.Error("unexpected match for unrelated code")
	}
	if !IsSource(inner) {
		t.Error("expected IsSource for status error")
	}
	if CodeOf(outer) != ErrJobCancelled {
		t.Errorf("CodeOf = %s, want %s", CodeOf(outer), ErrJobCancelled)
	}
	if CodeOf(io.EOF) != ErrRuntime {
		t.Errorf("CodeOf(plain) = %s, want %s", CodeOf(io.EOF), ErrRuntime)
	}
}

func TestRecoverPanic(t *testing.T) {
	if RecoverPanic(nil) != nil {
		t.Error("expected nil for nil panic value")
	}

	err := func() (err error) {
		defer func() {
			if e := RecoverPanic(recover()); e != nil {
				err = e
			}
		}()
		var layers []int
		_ = layers[3]
		return nil
	}()
	if !Is(err, ErrRuntime) {
		t.Fatalf("expected runtime error, got %v", err)
	}

	if e := RecoverPanic("boom"); !strings.Contains(e.Error(), "boom") {
		t.Errorf("expected panic text, got %v", e)
	}
}

func TestConfigErrors(t *testing.T) {
	err := ConfigValidationError("stepper_x", "position_max", "must be positive")
	if !IsConfig(err) {
		t.Error("expected config error")
	}
	if err.Section != "stepper_x" || err.Option != "position_max" {
		t.Errorf("unexpected context: %+v", err)
	}
	if !IsConfig(ConfigSectionError("printer")) {
		t.Error("expected section error to be a config error")
	}
}
