// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/gcode"
	"gcodeviewer-go/pkg/viewer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EAF3FF")).
			Background(lipgloss.Color("#1E3A8A")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8C7FF")).
			Width(16)
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86B"))
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FB7185"))
	bodyStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1D4ED8")).
			Padding(0, 1)
)

// render formats a summary as a boxed report.
func render(name string, sum *analyzer.Summary, stats viewer.Stats) string {
	var rows []string
	row := func(label, value string) {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
	}

	if sum.Slicer != nil && sum.Slicer.Name != "" {
		row("Slicer", strings.TrimSpace(sum.Slicer.Name+" "+sum.Slicer.Version))
	}
	row("Lines", fmt.Sprintf("%d", stats.Lines))
	row("Layers", fmt.Sprintf("%d printed, %d visited", sum.PrintedLayerCount, sum.VisitedLayerCount))
	row("Layer height", fmt.Sprintf("%.3f mm avg", sum.AverageLayerHeight))
	row("Model size", fmt.Sprintf("%.2f x %.2f x %.2f mm", sum.ModelSize.X, sum.ModelSize.Y, sum.ModelSize.Z))
	row("Bounds", formatBox(sum.BoundingBoxClipped))
	row("Print time", formatDuration(sum.TotalPrintTime))
	row("Layer time", fmt.Sprintf("p50 %s  p90 %s  p99 %s  max %s",
		formatDuration(sum.LayerTimes.P50), formatDuration(sum.LayerTimes.P90),
		formatDuration(sum.LayerTimes.P99), formatDuration(sum.LayerTimes.Max)))
	for _, tool := range sortedTools(sum.TotalFilamentByTool) {
		row(fmt.Sprintf("Filament T%d", tool), fmt.Sprintf("%.1f mm", sum.TotalFilamentByTool[tool]))
	}
	if len(sum.TotalFilamentByTool) > 1 {
		row("Filament total", fmt.Sprintf("%.1f mm", sum.TotalFilament()))
	}
	for _, mt := range []gcode.MoveType{gcode.MoveExtrude, gcode.MoveTravel, gcode.MoveRetract} {
		if speeds := sum.FeedrateRegistryByType[mt]; len(speeds) > 0 {
			row("Speeds "+mt.String(), formatSpeeds(speeds))
		}
	}
	if sum.UnknownMoves > 0 {
		rows = append(rows, warnStyle.Render(fmt.Sprintf("%d moves could not be classified", sum.UnknownMoves)))
	}
	row("Parse", fmt.Sprintf("%s + %s analyze", stats.ParseTime.Round(1e6), stats.AnalyzeTime.Round(1e6)))

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(name),
		bodyStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func formatBox(b analyzer.Box) string {
	if !b.X.Valid {
		return "empty"
	}
	return fmt.Sprintf("X %.1f..%.1f  Y %.1f..%.1f  Z %.2f..%.2f",
		b.X.Min, b.X.Max, b.Y.Min, b.Y.Max, b.Z.Min, b.Z.Max)
}

// formatDuration renders seconds as h/m/s.
func formatDuration(sec float64) string {
	total := int(sec + 0.5)
	h, m, s := total/3600, total/60%60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// formatSpeeds lists distinct feedrates in mm/min.
func formatSpeeds(speeds []float64) string {
	parts := make([]string, 0, len(speeds))
	for _, v := range speeds {
		parts = append(parts, fmt.Sprintf("%g", v))
	}
	if len(parts) > 8 {
		parts = append(parts[:8], fmt.Sprintf("... (%d)", len(speeds)))
	}
	return strings.Join(parts, " ") + " mm/min"
}

func sortedTools(m map[int]float64) []int {
	tools := make([]int, 0, len(m))
	for t := range m {
		tools = append(tools, t)
	}
	sort.Ints(tools)
	return tools
}
