package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Banner printed by interactive commands
const Banner = `
  ┌─┐┌┐ ┬ ┬┌─┐┬─┐┬  ┬┌─┐┌─┐┌┬┐
  ├┤ ├┴┐├─┤├─┤├┬┘└┐┌┘├┤ └─┐ │
  └  └─┘┴ ┴┴ ┴┴└─ └┘ └─┘└─┘ ┴  group feed harvester
`

var (
	cyan    = lipgloss.Color("#00D7FF")
	yellow  = lipgloss.Color("#FFD75F")
	red     = lipgloss.Color("#FF5F5F")
	green   = lipgloss.Color("#5FFF87")
	magenta = lipgloss.Color("#D787FF")
	dim     = lipgloss.Color("#8A8A8A")

	cyanStyle    = lipgloss.NewStyle().Foreground(cyan)
	yellowStyle  = lipgloss.NewStyle().Foreground(yellow)
	redStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	greenStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	magentaStyle = lipgloss.NewStyle().Foreground(magenta)
	dimStyle     = lipgloss.NewStyle().Foreground(dim).Faint(true)
	labelStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true).Width(14)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)
)

// Output receives everything the print helpers write
var Output io.Writer = os.Stdout

var colorEnabled = detectColor()

func detectColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SetColor forces colour on or off
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func render(style lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return style.Render(text)
}

// Color functions for terminal output
func Cyan(s string) string    { return render(cyanStyle, s) }
func Yellow(s string) string  { return render(yellowStyle, s) }
func Red(s string) string     { return render(redStyle, s) }
func Green(s string) string   { return render(greenStyle, s) }
func Magenta(s string) string { return render(magentaStyle, s) }
func Dim(s string) string     { return render(dimStyle, s) }

// Panel draws a bordered box around lines
func Panel(lines ...string) string {
	body := strings.Join(lines, "\n")
	if !colorEnabled {
		return body
	}
	return panelStyle.Render(body)
}

// PrintBanner prints the banner with color
func PrintBanner() {
	fmt.Fprint(Output, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	if !colorEnabled {
		fmt.Fprintf(Output, "%s: %s\n", label, value)
		return
	}
	fmt.Fprintf(Output, "%s %s\n", labelStyle.Render(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}
