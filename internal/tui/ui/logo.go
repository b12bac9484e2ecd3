package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

const logoArt = " ╔═╗╦╔═╗╦╔═╦╔╗╔\n" +
	" ╚═╗║╚═╗╠╩╗║║║║\n" +
	" ╚═╝╩╚═╝╩ ╩╩╝╚╝"

// Logo is the header logo. It takes the color of the app state, so an idle
// or suspended client is visibly dimmed.
type Logo struct {
	*tview.TextView
	theme *Theme
	state string
}

// NewLogo creates the logo in the launching state.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{
		TextView: tv,
		theme:    theme,
		state:    "LAUNCHING",
	}
	l.render()
	return l
}

// SetState recolors the logo for an app state.
func (l *Logo) SetState(state string) {
	if state == l.state {
		return
	}
	l.state = state
	l.render()
}

func (l *Logo) render() {
	l.Clear()
	tagline := "XMPP in the terminal"
	if l.state != "ACTIVE" {
		tagline = l.state
	}
	_, _ = fmt.Fprintf(l, "%s%s[-:-:-]\n%s%s[-]",
		BoldTag(l.theme.StateColor(l.state)), logoArt,
		Tag(l.theme.FgColor), tagline)
}
