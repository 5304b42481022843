package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer renders operator-facing CLI output with optional color
type Printer struct {
	out       io.Writer
	colorized bool
	width     int

	success *color.Color
	warning *color.Color
	failure *color.Color
	muted   *color.Color
	heading *color.Color
}

// NewPrinter creates a printer writing to out. Color is applied only when
// out is a real terminal and the environment does not disable it.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	colorized := !noColor && detectColorSupport()

	p := &Printer{
		out:       out,
		colorized: colorized,
		width:     detectWidth(),
		success:   color.New(color.FgGreen),
		warning:   color.New(color.FgYellow),
		failure:   color.New(color.FgRed, color.Bold),
		muted:     color.New(color.FgHiBlack),
		heading:   color.New(color.FgCyan, color.Bold),
	}

	if !colorized {
		for _, c := range []*color.Color{p.success, p.warning, p.failure, p.muted, p.heading} {
			c.DisableColor()
		}
	}

	return p
}

// NewStdoutPrinter creates a printer for os.Stdout
func NewStdoutPrinter(noColor bool) *Printer {
	return NewPrinter(os.Stdout, noColor)
}

func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if termenv.ColorProfile() == termenv.Ascii && os.Getenv("FORCE_COLOR") == "" {
		return false
	}
	return true
}

func detectWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 40 {
		return width
	}
	return 100
}

// Success prints a green success line
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.success.Sprintf("✓ "+format, args...))
}

// Warning prints a yellow warning line
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.warning.Sprintf("! "+format, args...))
}

// Failure prints a red failure line
func (p *Printer) Failure(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.failure.Sprintf("✗ "+format, args...))
}

// Heading prints a section heading
func (p *Printer) Heading(text string) {
	fmt.Fprintln(p.out, p.heading.Sprint(text))
}

// Line prints a plain line
func (p *Printer) Line(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Muted prints a de-emphasized line
func (p *Printer) Muted(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.muted.Sprintf(format, args...))
}
