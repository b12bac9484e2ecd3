package views

import (
	"fmt"

	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/tui/ui"
	"github.com/rivo/tview"
)

// EntryDetail shows everything known about one entry. Invitations also get
// a scannable QR code of their join URI.
type EntryDetail struct {
	*tview.TextView
	theme *ui.Theme
}

// NewEntryDetail creates a new entry detail view.
func NewEntryDetail(theme *ui.Theme) *EntryDetail {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Entry ")
	tv.SetTitleColor(theme.TitleColor)

	return &EntryDetail{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ed *EntryDetail) Name() string { return "Entry" }

// Init implements Component.
func (ed *EntryDetail) Init() {}

// Start implements Component.
func (ed *EntryDetail) Start() {}

// Stop implements Component.
func (ed *EntryDetail) Stop() {}

// Hints implements Component.
func (ed *EntryDetail) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the entry.
func (ed *EntryDetail) Update(e conversation.Entry, senderName string) {
	ed.Clear()
	ed.ScrollToBeginning()

	fg := ui.BoldTag(ed.theme.FgColor)
	ct := ui.Tag(ed.theme.CounterColor)
	field := func(label, value string) {
		_, _ = fmt.Fprintf(ed, " %s%-12s[-:-:-] %s%s[-]\n", fg, label+":", ct, tview.Escape(sanitizeForTerminal(value)))
	}

	if senderName == "" {
		senderName = e.Sender.Nick()
	}
	_, _ = fmt.Fprintln(ed)
	field("Sender", senderName)
	field("JID", e.Sender.JID)
	field("Time", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
	field("Kind", conversation.CellFor(e).String())
	field("Direction", e.State.Direction.String())
	field("Status", e.State.Status.String())
	if e.State.IsError() {
		field("Error", e.State.Error)
	}
	field("Stanza ID", e.StanzaID)
	if body := conversation.Body(e.Payload); body != "" {
		_, _ = fmt.Fprintf(ed, "\n %s\n", tview.Escape(sanitizeForTerminal(body)))
	}

	if inv, ok := e.Payload.(conversation.Invitation); ok {
		uri := inv.URI()
		_, _ = fmt.Fprintf(ed, "\n Scan to join %s:\n\n", tview.Escape(inv.Room))
		code, err := renderQR(uri)
		if err != nil {
			_, _ = fmt.Fprintf(ed, " %s(QR generation failed: %s)[-]\n", ui.Tag(ed.theme.ErrorColor), tview.Escape(err.Error()))
		} else {
			_, _ = fmt.Fprint(ed, code)
		}
		_, _ = fmt.Fprintf(ed, "\n %s\n", tview.Escape(uri))
	}

	ed.SetTitle(fmt.Sprintf(" %s ", tview.Escape(senderName)))
}
