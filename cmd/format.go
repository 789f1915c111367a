package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rubiojr/aurorax/pkg/progress"
	"github.com/rubiojr/aurorax/pkg/search"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Width(16)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	stateStyles = map[search.State]lipgloss.Style{
		search.Submitted: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		search.Completed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("32")),
		search.Errored:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		search.Cancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}

	printer = message.NewPrinter(language.English)
	titler  = cases.Title(language.English)
)

// formatNumber formats n with thousands separators.
func formatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// formatBytes formats a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatMillis formats a server-side query duration.
func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return d.String()
	}
	return d.Round(10 * time.Millisecond).String()
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	now := time.Now()
	diff := now.Sub(t)

	if diff < 24*time.Hour && diff >= 0 {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}

	if diff < 7*24*time.Hour && diff >= 0 {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

func renderState(s search.State) string {
	style, ok := stateStyles[s]
	if !ok {
		return titler.String(s.String())
	}
	return style.Render(titler.String(s.String()))
}

// renderStateName renders a state stored by name in the journal.
func renderStateName(name string) string {
	for s := range stateStyles {
		if s.String() == name {
			return renderState(s)
		}
	}
	return titler.String(name)
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

// renderStatus is the summary printed by status, wait and search.
func renderStatus(h handle) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Request " + h.ID()))
	b.WriteString("\n")
	b.WriteString(field("State", renderState(h.State())) + "\n")
	b.WriteString(field("URL", urlStyle.Render(h.RequestURL())) + "\n")

	if st := h.LastStatus(); st != nil {
		sum := h.Summary()
		if !st.SearchRequest.Requested.IsZero() {
			b.WriteString(field("Requested", formatTime(st.SearchRequest.Requested.Time)) + "\n")
		}
		if st.SearchResult.ResultCount != nil {
			b.WriteString(field("Results", formatNumber(sum.ResultCount)) + "\n")
		}
		if st.SearchResult.FileSize != nil {
			b.WriteString(field("File size", formatBytes(sum.FileSizeBytes)) + "\n")
		}
		if st.SearchResult.QueryDuration != nil {
			b.WriteString(field("Query time", formatMillis(sum.QueryDurationMs)) + "\n")
		}
		if last := st.LastLog(); last != "" {
			b.WriteString(field("Last log", last) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLogs(entries []search.LogEntry) string {
	if len(entries) == 0 {
		return metaStyle.Render("no log entries")
	}
	var b strings.Builder
	for _, e := range entries {
		ts := "-"
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(&b, "%s %-7s %s\n", metaStyle.Render(ts), strings.ToUpper(e.Level), e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEvent(ev progress.Event) string {
	var b strings.Builder
	b.WriteString(ev.Time.Format("15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(ev.Domain)
	if ev.RequestID != "" {
		b.WriteString(" ")
		b.WriteString(ev.RequestID)
	}
	b.WriteString("] ")
	b.WriteString(string(ev.Phase))
	if ev.Attempt > 0 {
		fmt.Fprintf(&b, " #%d", ev.Attempt)
	}
	if ev.Message != "" {
		b.WriteString(": ")
		b.WriteString(ev.Message)
	}
	return b.String()
}

// renderTable lays out rows under headers with lipgloss-measured widths.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style func(string) string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = lipgloss.NewStyle().Width(widths[i]).Render(style(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	var b strings.Builder
	b.WriteString(line(headers, func(s string) string { return header.Render(s) }))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(line(row, func(s string) string { return s }))
	}
	return b.String()
}
