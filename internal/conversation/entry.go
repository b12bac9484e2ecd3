package conversation

import (
	"strings"
	"time"
)

// Direction of an entry relative to the local account.
type Direction int

const (
	DirectionNone Direction = iota
	Incoming
	Outgoing
)

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return "none"
	}
}

// Status is the delivery or read status. Unread and Read apply to incoming
// entries; the rest to outgoing ones.
type Status int

const (
	StatusNone Status = iota
	Unread
	Read
	Unsent
	Sent
	Delivered
	Displayed
)

var statusNames = map[Status]string{
	StatusNone: "none",
	Unread:     "unread",
	Read:       "read",
	Unsent:     "unsent",
	Sent:       "sent",
	Delivered:  "delivered",
	Displayed:  "displayed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// State combines direction and status. A non-empty Error marks a failed entry.
type State struct {
	Direction Direction `json:"direction"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// IsUnread reports whether the entry still counts towards the unread total.
func (s State) IsUnread() bool {
	return s.Direction == Incoming && s.Status == Unread
}

// IsError reports whether the entry failed to send or to be received.
func (s State) IsError() bool {
	return s.Error != ""
}

// SenderKind tells who authored an entry.
type SenderKind int

const (
	SenderNone SenderKind = iota
	SenderMe
	SenderBuddy
	SenderOccupant
	SenderParticipant
)

// Sender identifies the author of an entry.
type Sender struct {
	Kind       SenderKind `json:"kind"`
	JID        string     `json:"jid,omitempty"`
	Nickname   string     `json:"nickname,omitempty"`
	OccupantID string     `json:"occupant_id,omitempty"`
}

// Nick returns the nickname to display, falling back to the JID's local part.
func (s Sender) Nick() string {
	if s.Nickname != "" {
		return s.Nickname
	}
	if s.Kind == SenderMe {
		return "Me"
	}
	if local, _, found := strings.Cut(s.JID, "@"); found {
		return local
	}
	return s.JID
}

// AvatarRef returns a stable identity string for the sender, suitable as a
// cache key. Occupants without a real JID are keyed by occupant id or nick.
func (s Sender) AvatarRef() string {
	switch s.Kind {
	case SenderMe:
		return "me:" + s.JID
	case SenderOccupant, SenderParticipant:
		switch {
		case s.OccupantID != "":
			return "occupant:" + s.OccupantID
		case s.JID != "":
			return "jid:" + s.JID
		default:
			return "nick:" + s.Nickname
		}
	case SenderBuddy:
		return "jid:" + s.JID
	default:
		return ""
	}
}

// Same reports whether s and o are the same author.
func (s Sender) Same(o Sender) bool {
	if s.Kind != o.Kind {
		return false
	}
	return s.AvatarRef() == o.AvatarRef()
}

// Encryption of an entry's content.
type Encryption int

const (
	EncryptionNone Encryption = iota
	EncryptionDecrypted
	EncryptionFailed
	EncryptionNotForThisDevice
)

// Recipient scopes an entry to everyone in the conversation or to one occupant.
type Recipient struct {
	Private  bool   `json:"private,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// Options are cross-cutting flags attached to an entry.
type Options struct {
	Recipient  Recipient  `json:"recipient"`
	Encryption Encryption `json:"encryption"`
	Markable   bool       `json:"markable,omitempty"`
}

// Entry is one displayable unit of a conversation. Entries are values: an
// update produces a new Entry with the same ID.
type Entry struct {
	ID        int64
	Key       Key
	StanzaID  string
	Timestamp time.Time
	State     State
	Sender    Sender
	Payload   Payload
	Options   Options
}

// Position returns the entry's place in the conversation order.
func (e Entry) Position() Position {
	return Position{Timestamp: e.Timestamp, ID: e.ID}
}

// IsUnreadMarker reports whether e is the synthetic unread separator.
func (e Entry) IsUnreadMarker() bool {
	_, ok := e.Payload.(UnreadMessages)
	return ok
}

// NewUnreadMarker builds the synthetic separator placed in front of the
// oldest unread entry. It has no ID and is never persisted.
func NewUnreadMarker(key Key, at time.Time, count int) Entry {
	return Entry{
		Key:       key,
		Timestamp: at,
		Payload:   UnreadMessages{Count: count},
	}
}
