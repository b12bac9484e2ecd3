package bus

import (
	"strings"
	"time"
)

// Kind names an event. Kinds are dot-separated; the segment before the first
// dot is the namespace subscribers filter on.
type Kind string

const (
	// Inbound entries handed over by the protocol adapter.
	InboundEntry   Kind = "xmpp.entry"
	InboundHistory Kind = "xmpp.history_batch"

	// Conversation log changes, published after the store has been mutated.
	EntryAdded   Kind = "conversation.entry_added"
	EntryUpdated Kind = "conversation.entry_updated"
	EntryRemoved Kind = "conversation.entry_removed"
	Read         Kind = "conversation.read"
	HistoryReset Kind = "conversation.history_reset"

	AppStateChanged Kind = "app.state_changed"
	ContactChanged  Kind = "roster.contact_changed"
)

// Namespace returns the kind's namespace including the trailing dot, or ""
// for a kind without one.
func (k Kind) Namespace() string {
	i := strings.IndexByte(string(k), '.')
	if i < 0 {
		return ""
	}
	return string(k[:i+1])
}

// Namespaces accepted by Subscribe.
const (
	NamespaceInbound      = "xmpp."
	NamespaceConversation = "conversation."
	NamespaceApp          = "app."
	NamespaceRoster       = "roster."
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}
