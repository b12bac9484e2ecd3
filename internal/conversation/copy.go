package conversation

import (
	"fmt"
	"slices"
	"strings"
)

const copyTimeLayout = "2006-01-02 15:04"

// CopyText renders entries as plain text, oldest first, one line per entry.
// The unread separator and other system rows are left out.
func CopyText(entries []Entry) string {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		switch {
		case a.Position().Less(b.Position()):
			return -1
		case b.Position().Less(a.Position()):
			return 1
		default:
			return 0
		}
	})

	var sb strings.Builder
	for _, e := range sorted {
		text, ok := copyLine(e)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", e.Timestamp.Format(copyTimeLayout), e.Sender.Nick(), text)
	}
	return sb.String()
}

func copyLine(e Entry) (string, bool) {
	switch p := e.Payload.(type) {
	case Message:
		return p.Body, true
	case Attachment:
		return p.URL, true
	case Location:
		return fmt.Sprintf("geo:%.6f,%.6f", p.Latitude, p.Longitude), true
	case Invitation:
		return p.URI(), true
	case Retraction:
		return "(message retracted)", true
	default:
		return "", false
	}
}
