package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashDurations = map[FlashLevel]time.Duration{
	FlashInfo: 5 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is a transient notification. Repeat counts how many times the
// same message was flashed while it was still showing.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Repeat  int
	Expires time.Time
}

// FlashModel holds the current notification and publishes every change on
// Watch. Safe for concurrent use.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	watchCh chan FlashMessage
	now     func() time.Time
}

// NewFlashModel creates an empty flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{
		watchCh: make(chan FlashMessage, 8),
		now:     time.Now,
	}
}

func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo) }

func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn) }

func (f *FlashModel) Err(err error) { f.set(err.Error(), FlashErr) }

// Clear removes the current message.
func (f *FlashModel) Clear() {
	f.mu.Lock()
	f.current = FlashMessage{}
	f.mu.Unlock()
	f.publish(FlashMessage{})
}

func (f *FlashModel) set(msg string, level FlashLevel) {
	now := f.now()
	f.mu.Lock()
	fm := FlashMessage{Text: msg, Level: level, Repeat: 1}
	if f.current.Text == msg && f.current.Level == level && now.Before(f.current.Expires) {
		fm.Repeat = f.current.Repeat + 1
	}
	fm.Expires = now.Add(flashDurations[level])
	f.current = fm
	f.mu.Unlock()
	f.publish(fm)
}

func (f *FlashModel) publish(fm FlashMessage) {
	select {
	case f.watchCh <- fm:
	default:
	}
}

// GetMessage returns the current message, or nil if there is none or it
// has expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch returns the channel of flash changes. A message with empty Text
// means the flash was cleared.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar is the one-line notification bar at the bottom of the screen.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates an empty bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update shows msg; nil or an empty message clears the bar.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil || msg.Text == "" {
		return
	}

	color, icon := fb.theme.FlashInfoColor, "i"
	switch msg.Level {
	case FlashWarn:
		color, icon = fb.theme.FlashWarnColor, "!"
	case FlashErr:
		color, icon = fb.theme.FlashErrColor, "x"
	}
	text := tview.Escape(msg.Text)
	if msg.Repeat > 1 {
		text += fmt.Sprintf(" (x%d)", msg.Repeat)
	}
	_, _ = fmt.Fprintf(fb, " %s%s[-:-:-] %s%s[-]", BoldTag(color), icon, Tag(color), text)
}
