// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// gcodeview-server streams parsed G-code layers and print statistics to
// viewer clients over WebSocket.
//
// Usage:
//
//	gcodeview-server [-config settings.yaml] [options]
//
// Options:
//
//	-config string    YAML service settings (default: built-in defaults)
//	-listen string    Override the listen address
//	-gcodes string    Override the directory `path` sources read from
//	-logfile string   Override the log file (rotated)
//	-debug            Log at DEBUG level
//
// Examples:
//
//	# Serve ~/gcodes on the default port
//	gcodeview-server -gcodes ~/gcodes
//
//	# Start from a settings file
//	gcodeview-server -config /etc/gcodeview.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gcodeviewer-go/pkg/config"
	"gcodeviewer-go/pkg/log"
	"gcodeviewer-go/pkg/metrics"
	"gcodeviewer-go/pkg/server"
	"gcodeviewer-go/pkg/viewer"
)

func main() {
	configFile := flag.String("config", "", "YAML service settings")
	listen := flag.String("listen", "", "Listen address (overrides settings)")
	gcodes := flag.String("gcodes", "", "G-code root directory (overrides settings)")
	logFile := flag.String("logfile", "", "Log file path (overrides settings)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	settings, err := config.LoadSettings(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		settings.Server.Listen = *listen
	}
	if *gcodes != "" {
		settings.Server.GCodeRoot = *gcodes
	}
	if *logFile != "" {
		settings.Log.File = *logFile
	}
	if *debug {
		settings.Log.Level = "debug"
	}

	logger, closeLog, err := setupLogging(settings.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	shape, err := settings.JobBed()
	if err != nil {
		logger.WithError(err).Error("cannot determine bed geometry")
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Addr:          settings.Server.Listen,
		WebsocketPath: settings.Server.WebsocketPath,
		Opener: &viewer.Opener{
			Client: &http.Client{Timeout: settings.Server.FetchTimeout},
			Root:   settings.Server.GCodeRoot,
		},
		Defaults:        viewer.FromSettings(settings.Job, shape),
		Metrics:         metrics.Global(),
		MetricsUser:     settings.Server.MetricsUser,
		MetricsPassword: settings.Server.MetricsPassword,
	})

	logger.WithFields(log.Fields{
		"listen":    settings.Server.Listen,
		"websocket": settings.Server.WebsocketPath,
		"gcodes":    settings.Server.GCodeRoot,
		"bed":       fmt.Sprintf("%+v", shape),
	}).Info("gcodeview-server starting")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("server stopped")
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("shutdown incomplete")
		}
		<-errCh
	}
	logger.Info("gcodeview-server stopped")
}

// setupLogging configures the default logger from settings. The
// environment still overrides level and format.
func setupLogging(s config.LogSettings) (*log.Logger, func(), error) {
	root := log.New("gcodeview")
	closeFn := func() {}
	var fw *log.RotatingFileWriter
	if s.File != "" {
		l, w, err := log.NewConsoleAndFileLogger("gcodeview", log.RotationConfig{
			Filename:   s.File,
			MaxSizeMB:  s.MaxSizeMB,
			MaxBackups: s.MaxBackups,
			Compress:   s.Compress,
		})
		if err != nil {
			return nil, nil, err
		}
		root, fw = l, w
		closeFn = func() { _ = w.Close() }
	}
	root.SetLevel(log.ParseLevel(s.Level))
	root.SetFormat(log.ParseFormat(s.Format))
	log.ConfigureFromEnv(root)
	log.SetDefaultLogger(root)
	logger := log.GetLogger("main")
	if fw != nil {
		logger.WithFields(log.Fields{"file": s.File, "size": fw.CurrentSize()}).Debug("log file opened")
	}
	return logger, closeFn, nil
}
