package views

import (
	"fmt"

	"github.com/matheus3301/siskin/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Init implements Component.
func (hv *HelpView) Init() {}

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)

	sections := []struct {
		title string
		keys  [][2]string
	}{
		{"Global", [][2]string{
			{":", "Command mode"}, {"/", "Filter conversations"},
			{"?", "Help"}, {"Esc", "Back"},
			{"q", "Quit (on the conversation list)"}, {"Ctrl-Z", "Suspend"},
		}},
		{"Conversations", [][2]string{
			{"Enter", "Open conversation"}, {"1-9", "Open Nth conversation"},
			{"0", "Clear filter"}, {"j/k", "Move down/up"},
		}},
		{"Conversation log", [][2]string{
			{"i", "Focus composer"}, {"Enter", "Entry details (QR for invitations)"},
			{"x", "Retract own entry"}, {"d", "Delete entry locally"},
			{"G", "Jump to newest"},
		}},
		{"Commands", [][2]string{
			{":open <name|jid>", "Open a conversation"},
			{":search <query>", "Search history"},
			{":read, :r", "Mark the open conversation read"},
			{":purge", "Delete the open conversation's history"},
			{":conversations, :c", "Close the log and list conversations"},
			{":help, :h", "Show this help"},
			{":quit, :q", "Quit"},
		}},
	}

	for _, sec := range sections {
		_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n\n", sec.title)
		for _, k := range sec.keys {
			_, _ = fmt.Fprintf(hv, "  %s%-18s[-:-:-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
}
