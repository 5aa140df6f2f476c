// Unified error handling for the G-code viewer
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// G-code errors
	ErrGCodeParse ErrorCode = "GCODE_PARSE"

	// Line source errors
	ErrSourceIO     ErrorCode = "SOURCE_IO"
	ErrSourceStatus ErrorCode = "SOURCE_STATUS"

	// Job lifecycle errors
	ErrJobCancelled ErrorCode = "JOB_CANCELLED"
	ErrJobFailed    ErrorCode = "JOB_FAILED"

	// Client message errors
	ErrProtocol ErrorCode = "PROTOCOL"

	// Layer model errors
	ErrModelCodec    ErrorCode = "MODEL_CODEC"
	ErrModelClassify ErrorCode = "MODEL_CLASSIFY"

	// Runtime errors
	ErrRuntime ErrorCode = "RUNTIME"
)

// HostError is the unified error type for the viewer
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Source names the G-code source (file, URL) if known
	Source string

	// Line is the G-code line index (if available)
	Line int

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	ctx := e.Section
	if e.Option != "" {
		ctx = e.Option
	}
	if ctx == "" {
		ctx = e.Source
	}
	msg := fmt.Sprintf("[%s:%s] %s", e.Code, ctx, e.Message)
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSource sets the G-code source name
func (e *HostError) SetSource(source string) *HostError {
	e.Source = source
	return e
}

// SetLine sets the line number
func (e *HostError) SetLine(line int) *HostError {
	e.Line = line
	return e
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
	}
}

// Config errors

// ConfigSectionError creates an error for missing config section
func ConfigSectionError(section string) *HostError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option string, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// Source errors

// SourceIOError wraps a read failure of a line source.
func SourceIOError(source string, err error) *HostError {
	return Wrap(err, ErrSourceIO, "reading G-code failed").SetSource(source)
}

// SourceStatusError reports a non-success response when fetching a source.
func SourceStatusError(source string, status int) *HostError {
	return New(ErrSourceStatus, fmt.Sprintf("unexpected HTTP status %d", status)).
		SetSource(source).
		SetContext("status", status)
}

// Job errors

// JobCancelledError reports a job superseded or stopped before completion.
func JobCancelledError(job string, err error) *HostError {
	return Wrap(err, ErrJobCancelled, "job cancelled").SetContext("job", job)
}

// ModelCodecError wraps a layer encode/decode failure.
func ModelCodecError(layer int, err error) *HostError {
	return Wrap(err, ErrModelCodec, fmt.Sprintf("layer %d codec failure", layer)).
		SetContext("layer", layer)
}

// UnknownMoveError describes a command record that fits none of the move types.
func UnknownMoveError(layer, line int) *HostError {
	return New(ErrModelClassify, fmt.Sprintf("unknown type of move in layer %d", layer)).
		SetLine(line).
		SetContext("layer", layer)
}

// RuntimeError creates a general runtime error
func RuntimeError(message string) *HostError {
	return New(ErrRuntime, message)
}

// RecoverPanic converts a recovered panic value into a HostError.
// It returns nil when r is nil, so callers must check before assigning
// the result to an error variable.
func RecoverPanic(r interface{}) *HostError {
	if r == nil {
		return nil
	}
	switch x := r.(type) {
	case runtime.Error:
		return Wrap(x, ErrRuntime, "panic")
	case error:
		return Wrap(x, ErrRuntime, "panic")
	case string:
		return RuntimeError(fmt.Sprintf("panic: %s", x))
	default:
		return RuntimeError(fmt.Sprintf("panic: %v", x))
	}
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if hostErr, ok := err.(*HostError); ok && hostErr.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CodeOf returns the code of the outermost HostError in err's chain.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if hostErr, ok := err.(*HostError); ok {
			return hostErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrRuntime
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// IsSource checks if error originates from a line source
func IsSource(err error) bool {
	return Is(err, ErrSourceIO) || Is(err, ErrSourceStatus)
}
