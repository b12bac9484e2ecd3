package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal strips runes a peer could use to garble the log: C0
// and C1 controls (tabs become spaces, newlines are left to the caller),
// bidi overrides and isolates, and the emoji modifiers and joiners tcell
// measures wrongly.
func sanitizeForTerminal(s string) string {
	if strings.IndexFunc(s, dropped) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t':
			b.WriteByte(' ')
		case dropped(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dropped(r rune) bool {
	switch {
	case r == '\n':
		return false
	case unicode.IsControl(r):
		return true
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069, r == 0x200E, r == 0x200F:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
