package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

type styles struct {
	title   lipgloss.Style
	key     lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	command lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
}

// newStyles binds the palette to w's color profile, so output written to a
// file or buffer carries no escape codes.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorCyan),
		key:     r.NewStyle().Foreground(colorGray),
		value:   r.NewStyle().Foreground(colorWhite),
		dim:     r.NewStyle().Foreground(colorDim),
		command: r.NewStyle().Foreground(colorBlue),
		success: r.NewStyle().Foreground(colorGreen),
		warning: r.NewStyle().Foreground(colorYellow),
	}
}
