// Package cli provides the btcintel command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/scoring"
	"btc-intel/internal/models"
	"btc-intel/internal/store"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !noColor && isTerminal(),
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.colored(ColorGreen, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(ColorRed, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.colored(ColorYellow, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(ColorCyan, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.colored(ColorBold, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colored(ColorDim, format, args...)
}

func (o *Output) colored(color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if o.colorEnabled {
		fmt.Fprintf(o.writer, "%s%s%s\n", color, msg, ColorReset)
	} else {
		fmt.Fprintln(o.writer, msg)
	}
}

// ColoredString returns a colored string without newline.
func (o *Output) ColoredString(color, text string) string {
	if o.colorEnabled {
		return color + text + ColorReset
	}
	return text
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	return o.ColoredString(ColorGreen, text)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	return o.ColoredString(ColorRed, text)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	return o.ColoredString(ColorYellow, text)
}

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string {
	return o.ColoredString(ColorCyan, text)
}

// DimText returns dimmed text.
func (o *Output) DimText(text string) string {
	return o.ColoredString(ColorDim, text)
}

// Direction colors a signal side.
func (o *Output) Direction(d models.Direction) string {
	switch d {
	case models.Long:
		return o.Green("▲ LONG")
	case models.Short:
		return o.Red("▼ SHORT")
	case models.Neutral:
		return o.Yellow("→ NEUTRAL")
	}
	return o.DimText("-")
}

// LevelType colors a support or resistance tag.
func (o *Output) LevelType(t analysis.LevelType) string {
	if t == analysis.LevelSupport {
		return o.Green(string(t))
	}
	return o.Red(string(t))
}

// Classification colors a score tier.
func (o *Output) Classification(c scoring.Classification) string {
	switch c {
	case scoring.ClassPremium, scoring.ClassStrong:
		return o.ColoredString(ColorBold+ColorGreen, string(c))
	case scoring.ClassValid:
		return o.Green(string(c))
	case scoring.ClassWeak:
		return o.Yellow(string(c))
	}
	return o.Red(string(c))
}

// Outcome colors an evaluated signal outcome.
func (o *Output) Outcome(oc store.Outcome) string {
	switch {
	case oc.IsWin():
		return o.Green(string(oc))
	case oc.IsLoss():
		return o.Red(string(oc))
	case oc == "":
		return o.DimText("-")
	}
	return o.Yellow(string(oc))
}

// Table buffers rows and renders them with aligned columns. Cells may
// carry color codes; widths are measured on the visible text.
type Table struct {
	output  *Output
	headers []string
	right   []bool
	rows    [][]string
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		output:  output,
		headers: headers,
		right:   make([]bool, len(headers)),
	}
}

// AlignRight right-aligns the given zero-based columns, for prices and counts.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		if c >= 0 && c < len(t.right) {
			t.right[c] = true
		}
	}
	return t
}

// AddRow adds a row. Cells beyond the header count are dropped.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the header, a rule and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], visibleLen(row[i]))
		}
	}

	header := t.line(t.headers, widths)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w)
	}

	t.output.Println(t.output.ColoredString(ColorBold, header))
	t.output.Println(t.output.ColoredString(ColorDim, strings.Join(rule, "──")))
	for _, row := range t.rows {
		t.output.Println(t.line(row, widths))
	}
}

func (t *Table) line(cells []string, widths []int) string {
	parts := make([]string, 0, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := strings.Repeat(" ", max(w-visibleLen(cell), 0))
		if t.right[i] {
			parts = append(parts, pad+cell)
		} else {
			parts = append(parts, cell+pad)
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// Box draws a box around content.
func (o *Output) Box(title string, content []string) {
	inner := visibleLen(title)
	for _, line := range content {
		inner = max(inner, visibleLen(line))
	}

	h, v := "-", "|"
	tl, tr, ml, mr, bl, br := "+", "+", "+", "+", "+", "+"
	if o.colorEnabled {
		h, v = "─", "│"
		tl, tr, ml, mr, bl, br = "┌", "┐", "├", "┤", "└", "┘"
	}
	border := strings.Repeat(h, inner+2)
	edge := func(s string) string { return o.ColoredString(ColorDim, s) }
	row := func(text string) {
		pad := strings.Repeat(" ", inner-visibleLen(text))
		o.Printf("%s %s%s %s\n", edge(v), text, pad, edge(v))
	}

	o.Println(edge(tl + border + tr))
	row(o.ColoredString(ColorBold, title))
	o.Println(edge(ml + border + mr))
	for _, line := range content {
		row(line)
	}
	o.Println(edge(bl + border + br))
}

// stripANSI removes SGR escape sequences from s.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// visibleLen counts the runes a terminal shows for s.
func visibleLen(s string) int {
	return len([]rune(stripANSI(s)))
}
