package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	UnreadColor       tcell.Color
	DimColor          tcell.Color
	ErrorColor        tcell.Color
	OutgoingColor     tcell.Color
	NickColor         tcell.Color
}

// DefaultTheme returns the dark theme: magenta titles, orange unread
// markers, green outgoing entries.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
		UnreadColor:       tcell.ColorOrange,
		DimColor:          tcell.ColorGray,
		ErrorColor:        tcell.ColorOrangeRed,
		OutgoingColor:     tcell.ColorLightGreen,
		NickColor:         tcell.ColorLightSkyBlue,
	}
}

// StateColor returns the color for an app lifecycle state.
func (t *Theme) StateColor(state string) tcell.Color {
	switch state {
	case "ACTIVE":
		return t.TitleColor
	case "LAUNCHING":
		return t.FlashWarnColor
	case "TERMINATED":
		return t.ErrorColor
	default:
		return t.DimColor
	}
}

// Tag returns the tview color tag for c, e.g. "[orange]".
func Tag(c tcell.Color) string {
	return "[" + colorName(c) + "]"
}

// BoldTag is Tag with the bold attribute; close it with "[-:-:-]".
func BoldTag(c tcell.Color) string {
	return "[" + colorName(c) + "::b]"
}
