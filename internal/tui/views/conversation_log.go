package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/tui/ui"
	"github.com/rivo/tview"
)

// LogSource is what the log reads its rows from. Row 0 is the newest entry.
type LogSource interface {
	Count() int
	Item(row int) (conversation.Entry, bool)
	IsContinuation(row int) bool
}

// ConversationLog shows one conversation, newest entry at the bottom, with a
// composer underneath. It is the delegate of the conversation's data source:
// deltas are collected between BeginUpdates and EndUpdates and drawn once.
type ConversationLog struct {
	*tview.Flex
	theme    *ui.Theme
	table    *tview.Table
	composer *tview.InputField
	title    string

	source LogSource
	names  func(conversation.Sender) string

	depth   int
	dirty   bool
	updated map[int]bool

	// Selection is tracked by entry so it survives inserts above and below.
	follow     bool
	selectedID int64
	onMarker   bool
	rendering  bool

	visibleFirst, visibleLast int

	onSend    func(text string)
	onOpen    func(e conversation.Entry)
	onVisible func(first, last int)
}

// NewConversationLog creates an empty log view.
func NewConversationLog(theme *ui.Theme) *ConversationLog {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(composer, 3, 0, false)

	cl := &ConversationLog{
		Flex:         flex,
		theme:        theme,
		table:        table,
		composer:     composer,
		updated:      make(map[int]bool),
		follow:       true,
		visibleFirst: -1,
		visibleLast:  -1,
	}

	table.SetSelectionChangedFunc(cl.selectionChanged)
	table.SetSelectedFunc(func(v, _ int) {
		if e, ok := cl.entryAt(v); ok && cl.onOpen != nil && !e.IsUnreadMarker() {
			cl.onOpen(e)
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && cl.onSend != nil {
			text := composer.GetText()
			if text != "" {
				cl.onSend(text)
				composer.SetText("")
			}
		}
	})
	return cl
}

// Name implements Component.
func (cl *ConversationLog) Name() string {
	if cl.title != "" {
		return cl.title
	}
	return "Log"
}

// Init implements Component.
func (cl *ConversationLog) Init() {}

// Start implements Component.
func (cl *ConversationLog) Start() {}

// Stop implements Component.
func (cl *ConversationLog) Stop() {}

// Hints implements Component.
func (cl *ConversationLog) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "Enter", Description: "Details"},
		{Key: "x", Description: "Retract"},
		{Key: "d", Description: "Delete"},
		{Key: "G", Description: "Newest"},
		{Key: "Esc", Description: "Back"},
	}
}

// Attach binds the log to a data source and a sender name resolver.
func (cl *ConversationLog) Attach(title string, source LogSource, names func(conversation.Sender) string) {
	cl.title = title
	cl.source = source
	cl.names = names
	cl.follow = true
	cl.selectedID = 0
	cl.onMarker = false
	cl.table.SetTitle(fmt.Sprintf(" %s ", tview.Escape(title)))
	cl.Render()
}

// SetOnSend sets the callback for composed text.
func (cl *ConversationLog) SetOnSend(fn func(text string)) { cl.onSend = fn }

// SetOnOpen sets the callback for Enter on an entry.
func (cl *ConversationLog) SetOnOpen(fn func(e conversation.Entry)) { cl.onOpen = fn }

// SetOnVisible sets the callback for changes of the visible row range.
func (cl *ConversationLog) SetOnVisible(fn func(first, last int)) { cl.onVisible = fn }

// Table returns the log table (for focus management).
func (cl *ConversationLog) Table() *tview.Table { return cl.table }

// Composer returns the composer input field (for focus management).
func (cl *ConversationLog) Composer() *tview.InputField { return cl.composer }

func (cl *ConversationLog) BeginUpdates() {
	cl.depth++
}

func (cl *ConversationLog) EndUpdates() {
	if cl.depth > 0 {
		cl.depth--
	}
	if cl.depth > 0 {
		return
	}
	switch {
	case cl.dirty:
		cl.Render()
	case len(cl.updated) > 0:
		for row := range cl.updated {
			cl.renderRow(row)
		}
	}
	cl.dirty = false
	clear(cl.updated)
}

func (cl *ConversationLog) ItemsAdded(_ []int, initial bool) {
	if initial {
		cl.follow = true
		cl.selectedID = 0
		cl.onMarker = false
	}
	cl.dirty = true
}

func (cl *ConversationLog) ItemsUpdated(rows []int) {
	for _, r := range rows {
		cl.ItemUpdated(r)
	}
}

// ItemUpdated redraws the row and its newer neighbour, whose continuation
// state depends on it.
func (cl *ConversationLog) ItemUpdated(row int) {
	cl.updated[row] = true
	if row > 0 {
		cl.updated[row-1] = true
	}
}

func (cl *ConversationLog) ItemsRemoved(_ []int) {
	cl.dirty = true
}

func (cl *ConversationLog) ItemsReloaded() {
	cl.dirty = true
}

// Render redraws every row and restores the selection.
func (cl *ConversationLog) Render() {
	cl.rendering = true
	defer func() { cl.rendering = false }()
	cl.ResetVisible()

	cl.table.Clear()
	if cl.source == nil {
		return
	}
	n := cl.source.Count()
	for row := 0; row < n; row++ {
		cl.table.SetCell(n-1-row, 0, cl.cell(row))
	}
	if n == 0 {
		return
	}

	target := n - 1
	if !cl.follow {
		if row, ok := cl.findSelected(); ok {
			target = n - 1 - row
		}
	}
	cl.table.Select(target, 0)
	if target == n-1 {
		cl.table.ScrollToEnd()
	}
}

func (cl *ConversationLog) renderRow(row int) {
	if cl.source == nil {
		return
	}
	n := cl.source.Count()
	if row < 0 || row >= n {
		return
	}
	cl.table.SetCell(n-1-row, 0, cl.cell(row))
}

func (cl *ConversationLog) cell(row int) *tview.TableCell {
	e, _ := cl.source.Item(row)
	name := ""
	if cl.names != nil && !e.IsUnreadMarker() {
		name = cl.names(e.Sender)
	}
	line := FormatEntry(EntryLine{
		Entry:        e,
		Continuation: cl.source.IsContinuation(row),
		Name:         name,
	}, cl.theme)
	cell := tview.NewTableCell(" " + line).
		SetExpansion(1).
		SetTextColor(cl.theme.FgColor)
	if e.IsUnreadMarker() {
		cell.SetAlign(tview.AlignCenter)
	}
	return cell
}

func (cl *ConversationLog) findSelected() (int, bool) {
	n := cl.source.Count()
	for row := 0; row < n; row++ {
		e, _ := cl.source.Item(row)
		if cl.onMarker && e.IsUnreadMarker() {
			return row, true
		}
		if !cl.onMarker && e.ID == cl.selectedID && !e.IsUnreadMarker() {
			return row, true
		}
	}
	return 0, false
}

func (cl *ConversationLog) selectionChanged(v, _ int) {
	if cl.rendering || cl.source == nil {
		return
	}
	n := cl.source.Count()
	row := n - 1 - v
	e, ok := cl.source.Item(row)
	if !ok {
		return
	}
	cl.follow = row == 0
	cl.onMarker = e.IsUnreadMarker()
	cl.selectedID = e.ID
}

func (cl *ConversationLog) entryAt(v int) (conversation.Entry, bool) {
	if cl.source == nil {
		return conversation.Entry{}, false
	}
	return cl.source.Item(cl.source.Count() - 1 - v)
}

// SelectedRow returns the data row under the cursor.
func (cl *ConversationLog) SelectedRow() (int, bool) {
	if cl.source == nil || cl.source.Count() == 0 {
		return 0, false
	}
	v, _ := cl.table.GetSelection()
	row := cl.source.Count() - 1 - v
	if row < 0 {
		return 0, false
	}
	return row, true
}

// SelectedEntry returns the entry under the cursor.
func (cl *ConversationLog) SelectedEntry() (conversation.Entry, bool) {
	row, ok := cl.SelectedRow()
	if !ok {
		return conversation.Entry{}, false
	}
	return cl.source.Item(row)
}

// ScrollToNewest moves the cursor to the newest entry and follows new ones.
func (cl *ConversationLog) ScrollToNewest() {
	cl.follow = true
	cl.Render()
}

// VisibleRows returns the data rows currently on screen: first is the
// newest visible row, last the oldest. ok is false before the first draw.
func (cl *ConversationLog) VisibleRows() (first, last int, ok bool) {
	if cl.source == nil {
		return 0, 0, false
	}
	n := cl.source.Count()
	_, _, _, height := cl.table.GetInnerRect()
	if n == 0 || height <= 0 {
		return 0, 0, false
	}
	offset, _ := cl.table.GetOffset()
	top := offset
	bottom := min(offset+height-1, n-1)
	return n - 1 - bottom, n - 1 - top, true
}

// ResetVisible forgets the last reported range, so the next ReportVisible
// reports even if nothing moved.
func (cl *ConversationLog) ResetVisible() {
	cl.visibleFirst, cl.visibleLast = -1, -1
}

// ReportVisible calls the visible callback when the on-screen range moved.
// It is meant to run after every draw.
func (cl *ConversationLog) ReportVisible() {
	first, last, ok := cl.VisibleRows()
	if !ok || (first == cl.visibleFirst && last == cl.visibleLast) {
		return
	}
	cl.visibleFirst, cl.visibleLast = first, last
	if cl.onVisible != nil {
		cl.onVisible(first, last)
	}
}
