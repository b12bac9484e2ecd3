package tui

import "github.com/rivo/tview"

// drawQueue runs data source work on the tview event loop and redraws
// afterwards. It must not be used from the event loop itself.
type drawQueue struct {
	app *tview.Application
}

func (q drawQueue) Enqueue(fn func()) {
	q.app.QueueUpdateDraw(fn)
}
