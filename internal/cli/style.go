package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	clrBrand = lipgloss.Color("203") // kimchi red
	clrGreen = lipgloss.Color("114")
	clrDim   = lipgloss.Color("245")
)

// styles wraps lipgloss renderers that respect TTY detection. When output is
// piped or redirected, styling is disabled and raw text is emitted.
type styles struct {
	enabled bool

	Brand   lipgloss.Style
	Success lipgloss.Style
	Dim     lipgloss.Style
	Key     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	enabled := false
	if f, ok := w.(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd()))
	}

	s := styles{enabled: enabled}
	if !enabled {
		noop := lipgloss.NewStyle()
		s.Brand = noop
		s.Success = noop
		s.Dim = noop
		s.Key = noop
		return s
	}

	s.Brand = lipgloss.NewStyle().Foreground(clrBrand).Bold(true)
	s.Success = lipgloss.NewStyle().Foreground(clrGreen)
	s.Dim = lipgloss.NewStyle().Foreground(clrDim)
	s.Key = lipgloss.NewStyle().Bold(true)
	return s
}
