package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	"github.com/rivo/uniseg"
)

// menuRows is the number of hints per column; it matches the header height
// minus its padding.
const menuRows = 6

// MenuHint is one key shortcut shown in the header menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 0-9 shortcuts use their own color
}

// ParseHint splits a "key:description" hint as produced by the key registry.
func ParseHint(s string) MenuHint {
	key, desc, _ := strings.Cut(s, ":")
	return MenuHint{Key: key, Description: desc}
}

// Menu lays out key hints in columns of menuRows entries.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates an empty menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update replaces the hints. Duplicate keys keep their first description.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	seen := make(map[string]bool, len(hints))
	unique := hints[:0:0]
	for _, h := range hints {
		if h.Key == "" || seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		unique = append(unique, h)
	}

	cols := (len(unique) + menuRows - 1) / menuRows
	widths := make([]int, cols)
	for i, h := range unique {
		widths[i/menuRows] = max(widths[i/menuRows], hintWidth(h))
	}

	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)
	for r := 0; r < menuRows && r < len(unique); r++ {
		var line strings.Builder
		for c := 0; c < cols; c++ {
			i := c*menuRows + r
			if i >= len(unique) {
				break
			}
			h := unique[i]
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			fmt.Fprintf(&line, "[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), tview.Escape(h.Description))
			if c < cols-1 {
				line.WriteString(strings.Repeat(" ", widths[c]-hintWidth(h)+3))
			}
		}
		_, _ = fmt.Fprintln(m, line.String())
	}
}

func hintWidth(h MenuHint) int {
	return uniseg.StringWidth("<"+h.Key+"> "+h.Description)
}
