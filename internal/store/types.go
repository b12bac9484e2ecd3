package store

import (
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
)

// Conversation is a conversation row with its derived counters.
type Conversation struct {
	Key          conversation.Key
	Name         string
	LastActivity time.Time
	UnreadCount  int
}

// Contact is a roster item of an account.
type Contact struct {
	Account    string
	JID        string
	Name       string
	AvatarHash string
}

// SearchResult holds an entry with a highlighted snippet of its body.
type SearchResult struct {
	Entry   conversation.Entry
	Snippet string
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
