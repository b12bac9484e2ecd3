package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/rpc"
	"github.com/matheus3301/siskin/internal/tui/ui"
	"github.com/rivo/tview"
)

// SearchView runs full-text searches over the local history.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	onOpen  func(key conversation.Key, id int64)
	data    []rpc.SearchResult
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Results ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	sv := &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil && input.GetText() != "" {
			sv.onQuery(input.GetText())
		}
	})
	results.SetSelectedFunc(func(row, _ int) {
		if key, id, ok := sv.SelectedResult(); ok && sv.onOpen != nil {
			sv.onOpen(key, id)
		}
	})

	return sv
}

// Name implements Component.
func (sv *SearchView) Name() string { return "Search" }

// Init implements Component.
func (sv *SearchView) Init() {}

// Start implements Component.
func (sv *SearchView) Start() {}

// Stop implements Component.
func (sv *SearchView) Stop() {}

// Hints implements Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// SetOnOpen sets the callback when a result is chosen.
func (sv *SearchView) SetOnOpen(fn func(key conversation.Key, id int64)) {
	sv.onOpen = fn
}

// SetQuery fills the input, e.g. from the :search command.
func (sv *SearchView) SetQuery(q string) {
	sv.input.SetText(q)
}

// Update refreshes search results. Snippets mark matches with << and >>.
func (sv *SearchView) Update(results []rpc.SearchResult) {
	sv.data = results
	sv.results.Clear()

	headers := []string{" CONVERSATION", " FROM", " SNIPPET", " TIME"}
	for col, h := range headers {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	for i, r := range results {
		row := i + 1
		var jid, from, ts string
		if r.Entry != nil {
			jid = r.Entry.Key.JID
			from = r.Entry.Sender.Nick()
			ts = formatTimestamp(r.Entry.TimestampMs)
		}
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(jid)).SetMaxWidth(25).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(from)).SetMaxWidth(16).SetTextColor(sv.theme.NickColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+highlightSnippet(r.Snippet, sv.theme)).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 3, tview.NewTableCell(" "+ts).SetMaxWidth(12).SetTextColor(sv.theme.FgColor))
	}
	if len(results) > 0 {
		sv.results.Select(1, 0)
	}
}

// SelectedResult returns the conversation and entry id of the selected result.
func (sv *SearchView) SelectedResult() (conversation.Key, int64, bool) {
	row, _ := sv.results.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(sv.data) && sv.data[idx].Entry != nil {
		e := sv.data[idx].Entry
		return e.Key, e.ID, true
	}
	return conversation.Key{}, 0, false
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}

func highlightSnippet(s string, theme *ui.Theme) string {
	s = tview.Escape(sanitizeForTerminal(s))
	s = strings.ReplaceAll(s, "<<", ui.BoldTag(theme.UnreadColor))
	return strings.ReplaceAll(s, ">>", "[-::-]")
}
