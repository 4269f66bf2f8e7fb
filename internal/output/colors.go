package output

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme defines the colors used for different elements in report
// output.
type ColorScheme struct {
	Title    *color.Color
	StepName *color.Color
	Value    *color.Color
	Dim      *color.Color
	Success  *color.Color
	Error    *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:    color.New(color.FgCyan, color.Bold),
		StepName: color.New(color.FgBlue),
		Value:    color.New(color.FgWhite),
		Dim:      color.New(color.FgHiBlack),
		Success:  color.New(color.FgGreen),
		Error:    color.New(color.FgRed, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.Title.DisableColor()
	scheme.StepName.DisableColor()
	scheme.Value.DisableColor()
	scheme.Dim.DisableColor()
	scheme.Success.DisableColor()
	scheme.Error.DisableColor()
	return scheme
}

// SchemeFor picks a scheme based on the noColor flag and whether stdout
// is a terminal.
func SchemeFor(noColor bool) *ColorScheme {
	if noColor || !isTerminal(os.Stdout) {
		return NoColorScheme()
	}
	return DefaultColorScheme()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
