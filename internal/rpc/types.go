package rpc

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/roster"
)

// Entry is the wire form of conversation.Entry.
type Entry struct {
	ID          int64                `json:"id"`
	Key         conversation.Key     `json:"key"`
	StanzaID    string               `json:"stanza_id"`
	TimestampMs int64                `json:"timestamp_ms"`
	State       conversation.State   `json:"state"`
	Sender      conversation.Sender  `json:"sender"`
	PayloadKind string               `json:"payload_kind"`
	Payload     json.RawMessage      `json:"payload,omitempty"`
	Options     conversation.Options `json:"options"`
}

// Position is the wire form of conversation.Position.
type Position struct {
	TimestampMs int64 `json:"timestamp_ms"`
	ID          int64 `json:"id"`
}

type Conversation struct {
	Key            conversation.Key `json:"key"`
	Name           string           `json:"name"`
	LastActivityMs int64            `json:"last_activity_ms"`
	UnreadCount    int              `json:"unread_count"`
}

type SearchResult struct {
	Entry   *Entry `json:"entry"`
	Snippet string `json:"snippet"`
}

type ListConversationsRequest struct {
	Account string `json:"account"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	HasMore       bool           `json:"has_more"`
}

type ListEntriesRequest struct {
	Key    conversation.Key `json:"key"`
	Before *Position        `json:"before,omitempty"`
	Limit  int              `json:"limit,omitempty"`
}

type ListEntriesResponse struct {
	Entries []*Entry `json:"entries"`
}

type UnreadCountRequest struct {
	Key conversation.Key `json:"key"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type MarkReadRequest struct {
	Key      conversation.Key `json:"key"`
	BeforeMs int64            `json:"before_ms"`
}

type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}

type PostEntryRequest struct {
	Entry *Entry `json:"entry"`
}

type PostEntryResponse struct {
	Entry *Entry `json:"entry"`
}

type UpdateEntryStateRequest struct {
	Key   conversation.Key   `json:"key"`
	ID    int64              `json:"id"`
	State conversation.State `json:"state"`
}

type EntryRequest struct {
	Key conversation.Key `json:"key"`
	ID  int64            `json:"id"`
}

type PurgeHistoryRequest struct {
	Key conversation.Key `json:"key"`
}

type PurgeHistoryResponse struct {
	Deleted int64 `json:"deleted"`
}

type SearchRequest struct {
	Query string            `json:"query"`
	Key   *conversation.Key `json:"key,omitempty"`
	Limit int               `json:"limit,omitempty"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type GetContactRequest struct {
	Account string `json:"account"`
	JID     string `json:"jid"`
}

type GetContactResponse struct {
	Contact *roster.Contact `json:"contact,omitempty"`
}

type SetContactRequest struct {
	Contact roster.Contact `json:"contact"`
}

type WatchConversationRequest struct {
	Key conversation.Key `json:"key"`
}

// WatchEventStarted is the kind of the first event of every watch stream,
// sent once the subscription is live.
const WatchEventStarted = "watch.started"

// WatchEvent is one change streamed to a watching client. Kind is a bus kind
// (conversation.* or roster.*) or WatchEventStarted.
type WatchEvent struct {
	EventID          string           `json:"event_id"`
	Kind             string           `json:"kind"`
	OccurredAtUnixMs int64            `json:"occurred_at_unix_ms"`
	Key              conversation.Key `json:"key"`
	Entry            *Entry           `json:"entry,omitempty"`
	ID               int64            `json:"id,omitempty"`
	BeforeMs         int64            `json:"before_ms,omitempty"`
	Contact          *roster.Contact  `json:"contact,omitempty"`
}

type Empty struct{}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Profile           string `json:"profile"`
	Account           string `json:"account"`
	PID               int    `json:"pid"`
	UptimeMs          int64  `json:"uptime_ms"`
	ConversationCount int    `json:"conversation_count"`
	SchemaVersion     uint   `json:"schema_version"`
	DroppedEvents     uint64 `json:"dropped_events"`
}

// EntryToWire converts an entry for transport.
func EntryToWire(e conversation.Entry) (*Entry, error) {
	kind, payload, err := conversation.EncodePayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:          e.ID,
		Key:         e.Key,
		StanzaID:    e.StanzaID,
		TimestampMs: ToMillis(e.Timestamp),
		State:       e.State,
		Sender:      e.Sender,
		PayloadKind: string(kind),
		Payload:     payload,
		Options:     e.Options,
	}, nil
}

// EntryFromWire is the inverse of EntryToWire.
func EntryFromWire(w *Entry) (conversation.Entry, error) {
	if w == nil {
		return conversation.Entry{}, fmt.Errorf("missing entry")
	}
	p, err := conversation.DecodePayload(conversation.PayloadKind(w.PayloadKind), w.Payload)
	if err != nil {
		return conversation.Entry{}, err
	}
	return conversation.Entry{
		ID:        w.ID,
		Key:       w.Key,
		StanzaID:  w.StanzaID,
		Timestamp: FromMillis(w.TimestampMs),
		State:     w.State,
		Sender:    w.Sender,
		Payload:   p,
		Options:   w.Options,
	}, nil
}

// EntriesToWire converts a slice of entries for transport.
func EntriesToWire(entries []conversation.Entry) ([]*Entry, error) {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		w, err := EntryToWire(e)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// PositionToWire converts a position for transport; nil stays nil.
func PositionToWire(p *conversation.Position) *Position {
	if p == nil {
		return nil
	}
	return &Position{TimestampMs: ToMillis(p.Timestamp), ID: p.ID}
}

// PositionFromWire is the inverse of PositionToWire.
func PositionFromWire(p *Position) *conversation.Position {
	if p == nil {
		return nil
	}
	return &conversation.Position{Timestamp: FromMillis(p.TimestampMs), ID: p.ID}
}

// ToMillis converts a time to unix milliseconds; the zero time maps to 0.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis is the inverse of ToMillis.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
