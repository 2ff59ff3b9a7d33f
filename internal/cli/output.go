package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"optscore/internal/models"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer   io.Writer
	jsonMode bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
}

// NewOutput creates a new Output instance. Color follows fatih/color's
// terminal detection and is always off in JSON mode.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return newOutput(cmd.OutOrStdout(), jsonMode, !jsonMode && !color.NoColor)
}

func newOutput(w io.Writer, jsonMode, colorEnabled bool) *Output {
	o := &Output{
		writer:   w,
		jsonMode: jsonMode,
		green:    color.New(color.FgGreen),
		red:      color.New(color.FgRed),
		yellow:   color.New(color.FgYellow),
		cyan:     color.New(color.FgCyan),
		bold:     color.New(color.Bold),
		dim:      color.New(color.Faint),
	}
	for _, c := range []*color.Color{o.green, o.red, o.yellow, o.cyan, o.bold, o.dim} {
		if colorEnabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return o
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

func (o *Output) line(c *color.Color, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, c.Sprintf(format, args...))
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) { o.line(o.green, format, args...) }

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) { o.line(o.red, format, args...) }

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) { o.line(o.yellow, format, args...) }

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) { o.line(o.cyan, format, args...) }

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) { o.line(o.bold, format, args...) }

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) { o.line(o.dim, format, args...) }

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.green.Sprint(text) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.red.Sprint(text) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.yellow.Sprint(text) }

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string { return o.cyan.Sprint(text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.dim.Sprint(text) }

// Score colors a 0-100 score by quality band.
func (o *Output) Score(score float64) string {
	s := FormatScore(score)
	switch {
	case score >= 80:
		return o.Green(s)
	case score >= 60:
		return o.Yellow(s)
	default:
		return o.DimText(s)
	}
}

// Action colors an overall recommendation.
func (o *Output) Action(a models.Action) string {
	label := strings.ToUpper(strings.ReplaceAll(string(a), "_", " "))
	switch a {
	case models.ActionStrongBuy, models.ActionBuy:
		return o.Green(label)
	case models.ActionCautious:
		return o.Yellow(label)
	default:
		return o.DimText(label)
	}
}

// RiskLevel colors a risk label; anything "high" or worse is red.
func (o *Output) RiskLevel(level string) string {
	switch level {
	case string(models.RiskLow):
		return o.Green(level)
	case string(models.RiskMedium), string(models.PortfolioModerate):
		return o.Yellow(level)
	default:
		return o.Red(level)
	}
}

// VRPTier colors a volatility premium tier from the seller's point of view.
func (o *Output) VRPTier(t models.VRPTier) string {
	switch t {
	case models.VRPHighPremium, models.VRPModeratePremium:
		return o.Green(string(t))
	case models.VRPLowPremium, models.VRPNegativePremium:
		return o.Red(string(t))
	default:
		return string(t)
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	var sep []string
	for _, w := range widths {
		sep = append(sep, strings.Repeat("-", w))
	}
	t.output.Println(t.output.DimText(strings.Join(sep, "  ")))
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, header bool) {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", max(widths[i]-visibleLen(cell), 0))
		if header {
			padded = t.output.bold.Sprint(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

// visibleLen is the printed width of s without ANSI escape sequences.
func visibleLen(s string) int {
	n, esc := 0, false
	for _, r := range s {
		switch {
		case esc:
			if r == 'm' {
				esc = false
			}
		case r == '\x1b':
			esc = true
		default:
			n++
		}
	}
	return n
}
