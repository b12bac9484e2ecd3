package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumbs is the navigation trail under the pages. The root label, usually
// the account, is shown dimmed before the trail.
type Crumbs struct {
	*tview.TextView
	theme *Theme
	root  string
	trail []string
}

// NewCrumbs creates an empty trail.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// SetRoot sets the label shown before the trail.
func (c *Crumbs) SetRoot(label string) {
	c.root = label
	c.render()
}

// Update renders a new trail; the last element is the active page.
func (c *Crumbs) Update(trail []string) {
	c.trail = trail
	c.render()
}

func (c *Crumbs) render() {
	c.Clear()
	var parts []string
	if c.root != "" {
		parts = append(parts, fmt.Sprintf("[%s::d] %s [-:-:-]", colorName(c.theme.DimColor), tview.Escape(c.root)))
	}
	for i, name := range c.trail {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(c.trail)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]",
			colorName(fg), colorName(bg), attr, tview.Escape(name)))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " "))
}

// colorName returns the tview tag name of a color.
func colorName(col tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == col {
			return name
		}
	}
	return fmt.Sprintf("#%06x", col.Hex())
}
