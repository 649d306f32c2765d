package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

// Colour palette.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorError   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	colorCTE     = lipgloss.AdaptiveColor{Light: "#8250DF", Dark: "#BC8CFF"}
)

// Styles holds the styles of one renderer.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	Table      lipgloss.Style
	Expression lipgloss.Style
	Enumerator lipgloss.Style

	kinds map[lineage.NodeKind]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	s := &Styles{
		Header1:    r.NewStyle().Bold(true).Foreground(colorPrimary).Underline(true),
		Header2:    r.NewStyle().Bold(true).Foreground(colorPrimary),
		Bold:       r.NewStyle().Bold(true),
		Muted:      r.NewStyle().Foreground(colorMuted),
		Success:    r.NewStyle().Foreground(colorSuccess),
		Warning:    r.NewStyle().Foreground(colorWarning),
		Error:      r.NewStyle().Foreground(colorError).Bold(true),
		Info:       r.NewStyle().Foreground(colorInfo),
		Table:      r.NewStyle().Bold(true),
		Expression: r.NewStyle().Foreground(colorMuted).Italic(true),
		Enumerator: r.NewStyle().Foreground(colorMuted).PaddingRight(1),
	}
	s.kinds = map[lineage.NodeKind]lipgloss.Style{
		lineage.NodeSource:          r.NewStyle().Foreground(colorSuccess),
		lineage.NodeInternal:        r.NewStyle().Foreground(colorInfo),
		lineage.NodeCTE:             r.NewStyle().Foreground(colorCTE),
		lineage.NodeConsolidatedCTE: r.NewStyle().Foreground(colorCTE),
		lineage.NodeSnapshot:        r.NewStyle().Foreground(colorWarning),
		lineage.NodeError:           r.NewStyle().Foreground(colorError).Bold(true),
	}
	return s
}

// Kind returns the style for a node kind label.
func (s *Styles) Kind(kind lineage.NodeKind) lipgloss.Style {
	if st, ok := s.kinds[kind]; ok {
		return st
	}
	return s.Bold
}
