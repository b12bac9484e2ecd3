package main

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
)

func TestFormatLine(t *testing.T) {
	e := conversation.Entry{
		ID:        7,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		State:     conversation.State{Direction: conversation.Incoming, Status: conversation.Unread},
		Sender:    conversation.Sender{Kind: conversation.SenderBuddy, JID: "juliet@capulet.lit"},
		Payload:   conversation.Message{Body: "wherefore art thou"},
	}
	line := formatLine(e)
	if !strings.HasPrefix(line, "*") {
		t.Errorf("unread entry not flagged: %q", line)
	}
	for _, want := range []string{"#7", "juliet", "wherefore art thou"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	marker := conversation.NewUnreadMarker(conversation.Key{}, time.Now(), 2)
	if got := formatLine(marker); got != "-------- 2 unread --------" {
		t.Errorf("marker line = %q", got)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		p    conversation.Payload
		want string
	}{
		{conversation.Retraction{}, "(retracted)"},
		{conversation.Attachment{URL: "https://x.lit/a.png"}, "[file] https://x.lit/a.png"},
		{conversation.Invitation{Room: "balcony@rooms.lit"}, "[invite] xmpp:balcony@rooms.lit?join"},
		{conversation.Unknown{Type: "poll"}, "(poll)"},
	}
	for _, tt := range tests {
		if got := summary(conversation.Entry{Payload: tt.p}); got != tt.want {
			t.Errorf("summary(%T) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Fatalf("parseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "x"} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("parseID(%q) accepted", bad)
		}
	}
}
