// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcodeviewer-go/pkg/config"
	"gcodeviewer-go/pkg/log"
)

func TestSetupLoggingWritesFile(t *testing.T) {
	prev := log.Default()
	defer log.SetDefaultLogger(prev)
	t.Setenv("GCODEVIEW_LOG_LEVEL", "debug")
	t.Setenv("GCODEVIEW_LOG_FORMAT", "text")

	path := filepath.Join(t.TempDir(), "viewer.log")
	logger, closeLog, err := setupLogging(config.LogSettings{File: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	logger.Info("ready")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "log file opened")
	assert.Contains(t, string(data), "size=0")
	assert.Contains(t, string(data), "main: ready")
}

func TestSetupLoggingConsoleOnly(t *testing.T) {
	prev := log.Default()
	defer log.SetDefaultLogger(prev)

	logger, closeLog, err := setupLogging(config.LogSettings{Level: "warn"})
	require.NoError(t, err)
	defer closeLog()
	assert.Equal(t, "main", logger.Prefix())
}
