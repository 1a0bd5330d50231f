package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// RunSummary is what a finished harvest reports to the terminal
type RunSummary struct {
	Group    string
	Stop     string
	Accepted int
	Stored   int
	Max      int
	Scrolls  int
	Failed   int
	Duration time.Duration
}

// Bar renders n out of max as a fixed width bar
func Bar(n, max int) string {
	if max <= 0 {
		max = 1
	}
	if n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	filled := n * barWidth / max
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, barWidth-filled),
		n, max)
}

// PrintRunSummary prints one harvest's outcome
func PrintRunSummary(s RunSummary) {
	status := Green("✓")
	if s.Stored == 0 {
		status = Dim("·")
	}

	lines := []string{
		fmt.Sprintf("%s %s", status, Cyan(s.Group)),
		fmt.Sprintf("  accepted %s", Bar(s.Accepted, s.Max)),
		fmt.Sprintf("  stored   %d new", s.Stored),
		fmt.Sprintf("  stopped  %s after %d scrolls in %s", Yellow(s.Stop), s.Scrolls, FormatDuration(s.Duration)),
	}
	if s.Failed > 0 {
		lines = append(lines, "  "+Red(fmt.Sprintf("%d extractions failed", s.Failed)))
	}
	fmt.Fprintln(Output, Panel(lines...))
}

// PrintPostLine prints a one-line preview of a stored post
func PrintPostLine(id int64, harvested time.Time, text string) {
	fmt.Fprintf(Output, "  %s %s %s\n",
		Dim(fmt.Sprintf("#%d", id)),
		Dim(harvested.Local().Format("2006-01-02 15:04")),
		Truncate(strings.Join(strings.Fields(text), " "), 72))
}

// Truncate shortens text to at most n runes
func Truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}

// FormatDuration renders a duration for humans
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatAge renders how long ago t was
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return FormatDuration(time.Since(t).Round(time.Second)) + " ago"
}
