// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// gcodeview parses one G-code file or URL and prints its statistics.
//
// Usage:
//
//	gcodeview [options] <file|url|->
//
// Options:
//
//	-config string    YAML settings providing the job defaults and bed
//	-options string   Job options as JSON, applied over the defaults
//	-json             Print the summary as JSON
//	-progress         Report parse progress on stderr
//	-timeout duration Abort after this long (default: no limit)
//
// Exit status is 2 for invalid settings or options, 3 when the input
// cannot be read and 1 for other failures.
//
// Examples:
//
//	gcodeview benchy.gcode
//	gcodeview -options '{"bed":{"r":100,"circular":true}}' delta.gcode
//	curl -s http://printer/benchy.gcode | gcodeview -
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/config"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/source"
	"gcodeviewer-go/pkg/viewer"
)

func main() {
	configFile := flag.String("config", "", "YAML settings providing job defaults")
	options := flag.String("options", "", "Job options as JSON")
	asJSON := flag.Bool("json", false, "Print the summary as JSON")
	progress := flag.Bool("progress", false, "Report progress on stderr")
	timeout := flag.Duration("timeout", 0, "Abort after this long")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one input is required\n")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *configFile, *options, *asJSON, *progress, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errorStyle.Render(fmt.Sprintf("%s: %v", errors.CodeOf(err), err)))
		os.Exit(exitCode(err))
	}
}

// exitCode maps bad settings or options to 2, unreadable input to 3
// and anything else to 1.
func exitCode(err error) int {
	switch {
	case errors.IsConfig(err):
		return 2
	case errors.IsSource(err):
		return 3
	default:
		return 1
	}
}

func run(input, configFile, rawOptions string, asJSON, progress bool, timeout time.Duration) error {
	settings, err := config.LoadSettings(configFile)
	if err != nil {
		return err
	}
	shape, err := settings.JobBed()
	if err != nil {
		return err
	}
	opts, err := viewer.FromSettings(settings.Job, shape).Apply(json.RawMessage(rawOptions))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	src, err := open(ctx, input, settings.Server.FetchTimeout)
	if err != nil {
		return err
	}
	defer src.Close()

	sink := viewer.Discard
	if progress {
		sink = progressSink(os.Stderr)
	}
	job := viewer.NewJob("cli", opts)
	sum, err := job.Run(ctx, src, sink)
	if progress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	fmt.Println(render(input, sum, job.Stats()))
	return nil
}

func open(ctx context.Context, input string, fetchTimeout time.Duration) (source.Source, error) {
	switch {
	case input == "-":
		return source.NewReader(os.Stdin, -1), nil
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		s, err := source.OpenHTTP(ctx, &http.Client{Timeout: fetchTimeout}, input)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := source.OpenFile(input)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// progressSink redraws one status line per progress message.
func progressSink(w io.Writer) viewer.Sink {
	layers := 0
	return viewer.SinkFunc(func(m viewer.Message) error {
		switch p := m.Payload.(type) {
		case viewer.LayersReady:
			layers += len(p.Indices)
			fmt.Fprintf(w, "\rparsing %5.1f%%  %d layers", p.Percentage, layers)
		case viewer.ParseProgress:
			fmt.Fprintf(w, "\rparsing %5.1f%%  %d layers", p.Percentage, layers)
		case viewer.AnalyzeProgress:
			fmt.Fprintf(w, "\ranalyzing %5.1f%%            ", p.Percentage)
		case viewer.Diagnostic:
			fmt.Fprintf(w, "\nline %d: %s\n", p.Line, p.Message)
		case *analyzer.Summary:
			fmt.Fprintf(w, "\rdone                         ")
		}
		return nil
	})
}
