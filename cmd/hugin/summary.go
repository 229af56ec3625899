package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"hugin/internal/dispatch"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	canceledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(s dispatch.Status) lipgloss.Style {
	switch s {
	case dispatch.StatusOK:
		return okStyle
	case dispatch.StatusFailed:
		return failedStyle
	default:
		return canceledStyle
	}
}

// printSummary writes one line per outcome followed by the totals.
func printSummary(w io.Writer, outcomes []dispatch.Outcome, s dispatch.Summary) {
	width := len("JOB")
	for _, o := range outcomes {
		width = max(width, len(o.Entry.Name))
	}
	name := lipgloss.NewStyle().Width(width + 2)
	status := lipgloss.NewStyle().Width(10)
	pairs := lipgloss.NewStyle().Width(7).Align(lipgloss.Right)

	fmt.Fprintln(w, headerStyle.Render(
		name.Render("JOB")+status.Render("STATUS")+pairs.Render("PAIRS")+"  TIME"))
	for _, o := range outcomes {
		line := name.Render(o.Entry.Name) +
			status.Render(statusStyle(o.Status).Render(string(o.Status))) +
			pairs.Render(fmt.Sprint(len(o.Pairs))) +
			"  " + o.Duration.Round(time.Millisecond).String()
		if o.Err != nil {
			line += "  " + mutedStyle.Render(firstLine(o.Err.Error()))
		}
		fmt.Fprintln(w, line)
	}

	totals := fmt.Sprintf("%d jobs: %d ok, %d failed", s.Total, s.OK, s.Failed)
	if s.Canceled > 0 {
		totals += fmt.Sprintf(", %d canceled", s.Canceled)
	}
	totals += fmt.Sprintf("; %d clone pairs", s.Pairs)
	fmt.Fprintln(w, lipgloss.NewStyle().MarginTop(1).Render(totals))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
