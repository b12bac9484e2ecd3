package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/tui/ui"
	"github.com/rivo/tview"
)

// EntryLine is the input of one rendered log row.
type EntryLine struct {
	Entry        conversation.Entry
	Continuation bool
	Name         string // resolved sender name; empty falls back to the nick
}

type cellFormatter func(e conversation.Entry, theme *ui.Theme) string

var formatters = map[conversation.Cell]cellFormatter{
	conversation.CellMessage:       formatMessage,
	conversation.CellAttachment:    formatAttachment,
	conversation.CellLinkPreview:   formatLinkPreview,
	conversation.CellLocation:      formatLocation,
	conversation.CellRetraction:    formatRetraction,
	conversation.CellReceiptMarker: formatReceiptMarker,
	conversation.CellInvitation:    formatInvitation,
}

// FormatEntry renders an entry as a single line with tview color tags.
func FormatEntry(l EntryLine, theme *ui.Theme) string {
	e := l.Entry
	cell := conversation.CellFor(e)
	if cell == conversation.CellUnreadSeparator {
		return formatUnreadSeparator(e, theme)
	}

	body := formatBody(cell, e, theme)

	var sb strings.Builder
	if l.Continuation {
		sb.WriteString("        ")
	} else {
		fmt.Fprintf(&sb, "%s%s[-] ", ui.Tag(theme.DimColor), e.Timestamp.Local().Format("15:04"))
		name := l.Name
		if name == "" {
			name = e.Sender.Nick()
		}
		color := theme.NickColor
		if e.State.Direction == conversation.Outgoing {
			color = theme.OutgoingColor
		}
		fmt.Fprintf(&sb, "%s%s[-:-:-] ", ui.BoldTag(color), tview.Escape(sanitizeForTerminal(name)))
	}
	if e.Options.Recipient.Private {
		fmt.Fprintf(&sb, "%s(private to %s)[-] ", ui.Tag(theme.DimColor), tview.Escape(e.Options.Recipient.Nickname))
	}
	sb.WriteString(body)
	sb.WriteString(formatState(e, theme))
	return sb.String()
}

// formatBody dispatches to the cell's formatter, falling back to the
// unsupported rendering.
func formatBody(cell conversation.Cell, e conversation.Entry, theme *ui.Theme) string {
	if e.Options.Encryption == conversation.EncryptionFailed || e.Options.Encryption == conversation.EncryptionNotForThisDevice {
		return ui.Tag(theme.ErrorColor) + "unable to decrypt this message[-]"
	}
	if f, ok := formatters[cell]; ok {
		return f(e, theme)
	}
	kind := "unknown"
	if e.Payload != nil {
		kind = string(e.Payload.Kind())
	}
	return fmt.Sprintf("%sunsupported entry (%s)[-]", ui.Tag(theme.DimColor), tview.Escape(kind))
}

func text(s string) string {
	return tview.Escape(sanitizeForTerminal(strings.ReplaceAll(s, "\n", " ")))
}

func formatMessage(e conversation.Entry, theme *ui.Theme) string {
	m := e.Payload.(conversation.Message)
	out := text(m.Body)
	if m.Corrected {
		out += " " + ui.Tag(theme.DimColor) + "(edited)[-]"
	}
	return out
}

func formatAttachment(e conversation.Entry, theme *ui.Theme) string {
	a := e.Payload.(conversation.Attachment)
	name := a.Filename
	if name == "" {
		name = a.URL
	}
	var meta []string
	if a.MimeType != "" {
		meta = append(meta, a.MimeType)
	}
	if a.Size > 0 {
		meta = append(meta, formatSize(a.Size))
	}
	out := ui.Tag(theme.MenuKeyColor) + tview.Escape("[file]") + "[-] " + text(name)
	if len(meta) > 0 {
		out += " " + ui.Tag(theme.DimColor) + "(" + text(strings.Join(meta, ", ")) + ")[-]"
	}
	return out
}

func formatLinkPreview(e conversation.Entry, theme *ui.Theme) string {
	p := e.Payload.(conversation.LinkPreview)
	return ui.Tag(theme.DimColor) + "  -> " + text(p.URL) + "[-]"
}

func formatLocation(e conversation.Entry, theme *ui.Theme) string {
	l := e.Payload.(conversation.Location)
	return fmt.Sprintf("%s%s[-] geo:%.5f,%.5f", ui.Tag(theme.MenuKeyColor), tview.Escape("[location]"), l.Latitude, l.Longitude)
}

func formatRetraction(_ conversation.Entry, theme *ui.Theme) string {
	return ui.Tag(theme.DimColor) + "this message was retracted[-]"
}

func formatReceiptMarker(e conversation.Entry, theme *ui.Theme) string {
	r := e.Payload.(conversation.ReceiptMarker)
	names := make([]string, 0, len(r.Senders))
	for _, s := range r.Senders {
		names = append(names, s.Nick())
	}
	verb := "seen by"
	if r.Type == conversation.ReceiptReceived {
		verb = "received by"
	}
	return fmt.Sprintf("%s%s %s[-]", ui.Tag(theme.DimColor), verb, text(strings.Join(names, ", ")))
}

func formatInvitation(e conversation.Entry, theme *ui.Theme) string {
	inv := e.Payload.(conversation.Invitation)
	out := ui.Tag(theme.MenuKeyColor) + tview.Escape("[invite]") + "[-] " + text(inv.Room)
	if inv.Reason != "" {
		out += ": " + text(inv.Reason)
	}
	return out + " " + ui.Tag(theme.DimColor) + "(Enter for QR)[-]"
}

func formatUnreadSeparator(e conversation.Entry, theme *ui.Theme) string {
	n := 0
	if u, ok := e.Payload.(conversation.UnreadMessages); ok {
		n = u.Count
	}
	label := "unread messages"
	if n == 1 {
		label = "unread message"
	}
	return fmt.Sprintf("%s──────── %d %s ────────[-]", ui.Tag(theme.UnreadColor), n, label)
}

func formatState(e conversation.Entry, theme *ui.Theme) string {
	if e.State.IsError() {
		return " " + ui.Tag(theme.ErrorColor) + "! " + text(e.State.Error) + "[-]"
	}
	if e.State.Direction != conversation.Outgoing {
		return ""
	}
	var glyph string
	switch e.State.Status {
	case conversation.Unsent:
		glyph = "..."
	case conversation.Sent:
		glyph = "✓"
	case conversation.Delivered:
		glyph = "✓✓"
	case conversation.Displayed:
		glyph = "✓✓ seen"
	default:
		return ""
	}
	return " " + ui.Tag(theme.DimColor) + glyph + "[-]"
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
