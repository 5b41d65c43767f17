package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
)

var (
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	purple = lipgloss.Color("99")
	dim    = lipgloss.Color("243")
)

type styles struct {
	success lipgloss.Style
	failure lipgloss.Style
	unknown lipgloss.Style
	marker  lipgloss.Style
	method  lipgloss.Style
	muted   lipgloss.Style
	banner  lipgloss.Style
	state   map[services.ConnState]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, color bool) styles {
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	status := r.NewStyle().Width(7)
	return styles{
		success: status.Foreground(green),
		failure: status.Foreground(red).Bold(true),
		unknown: status.Foreground(dim),
		marker:  r.NewStyle().Foreground(yellow).Bold(true),
		method:  r.NewStyle().Foreground(purple),
		muted:   r.NewStyle().Foreground(dim),
		banner:  r.NewStyle().Bold(true),
		state: map[services.ConnState]lipgloss.Style{
			services.StateConnected:    r.NewStyle().Foreground(green),
			services.StateConnecting:   r.NewStyle().Foreground(yellow),
			services.StateDisconnected: r.NewStyle().Foreground(red),
		},
	}
}

func (s styles) status(st group.Status) string {
	switch st {
	case group.StatusSuccess:
		return s.success.Render(string(st))
	case group.StatusFailure:
		return s.failure.Render(string(st))
	default:
		return s.unknown.Render(string(group.StatusUnknown))
	}
}

func (s styles) newMarker(isNew bool) string {
	if !isNew {
		return "   "
	}
	return s.marker.Render("NEW")
}

func (s styles) connState(st services.ConnState) string {
	return s.state[st].Render(st.String())
}
