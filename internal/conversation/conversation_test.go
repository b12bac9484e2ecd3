package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey = Key{Account: "me@example.org", JID: "alice@example.org"}
	base    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	alice   = Sender{Kind: SenderBuddy, JID: "alice@example.org"}
	bob     = Sender{Kind: SenderBuddy, JID: "bob@example.org"}
)

func msg(id int64, at time.Duration, from Sender, body string) Entry {
	return Entry{
		ID:        id,
		Key:       testKey,
		Timestamp: base.Add(at),
		State:     State{Direction: Incoming, Status: Read},
		Sender:    from,
		Payload:   Message{Body: body},
	}
}

// rows builds a RowFunc over entries given newest first.
func rows(entries ...Entry) RowFunc {
	return func(row int) (Entry, bool) {
		if row < 0 || row >= len(entries) {
			return Entry{}, false
		}
		return entries[row], true
	}
}

func TestKeyValidate(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr bool
	}{
		{"valid", testKey, false},
		{"domain jid", Key{Account: "me@example.org", JID: "conference.example.org"}, false},
		{"empty account", Key{JID: "alice@example.org"}, true},
		{"full jid", Key{Account: "me@example.org", JID: "alice@example.org/phone"}, true},
		{"no local part", Key{Account: "@example.org", JID: "alice@example.org"}, true},
		{"bare word", Key{Account: "me@example.org", JID: "alice"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPositionLess(t *testing.T) {
	a := Position{Timestamp: base, ID: 2}
	b := Position{Timestamp: base, ID: 3}
	c := Position{Timestamp: base.Add(time.Second), ID: 1}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
	assert.False(t, a.Less(a))
}

func TestSenderIdentity(t *testing.T) {
	assert.Equal(t, "alice", alice.Nick())
	assert.Equal(t, "Me", Sender{Kind: SenderMe}.Nick())
	assert.True(t, alice.Same(Sender{Kind: SenderBuddy, JID: "alice@example.org", Nickname: "Al"}))
	assert.False(t, alice.Same(bob))

	occ := Sender{Kind: SenderOccupant, Nickname: "x", OccupantID: "occ-1"}
	renamed := Sender{Kind: SenderOccupant, Nickname: "y", OccupantID: "occ-1"}
	assert.True(t, occ.Same(renamed), "occupant id outlives a nick change")
}

func TestPayloadRoundTrip(t *testing.T) {
	payloads := []Payload{
		Message{Body: "hi", Corrected: true},
		Retraction{},
		Attachment{URL: "https://x/f.png", Filename: "f.png", MimeType: "image/png", Size: 42},
		Location{Latitude: 52.2297, Longitude: 21.0122},
		ReceiptMarker{Type: ReceiptDisplayed, Senders: []Sender{alice}},
		Invitation{Room: "room@muc.example.org", Password: "pw"},
	}
	for _, p := range payloads {
		t.Run(string(p.Kind()), func(t *testing.T) {
			kind, data, err := EncodePayload(p)
			require.NoError(t, err)
			got, err := DecodePayload(kind, data)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestDecodeUnknownPayloadKeepsRaw(t *testing.T) {
	p, err := DecodePayload("poll", []byte(`{"q":"?"}`))
	require.NoError(t, err)

	u, ok := p.(Unknown)
	require.True(t, ok)
	assert.Equal(t, PayloadKind("poll"), u.Kind())

	kind, data, err := EncodePayload(u)
	require.NoError(t, err)
	assert.Equal(t, PayloadKind("poll"), kind)
	assert.JSONEq(t, `{"q":"?"}`, string(data))
}

func TestIsContinuationSameSender(t *testing.T) {
	mergeable := DefaultMergeable(time.Minute)
	at := rows(
		msg(2, 10*time.Second, alice, "second"),
		msg(1, 0, alice, "first"),
	)
	assert.True(t, IsContinuation(at, 0, mergeable))
	assert.False(t, IsContinuation(at, 1, mergeable), "oldest row has nothing above it")
}

func TestIsContinuationDifferentSenders(t *testing.T) {
	mergeable := DefaultMergeable(time.Hour)
	at := rows(
		msg(2, time.Second, bob, "second"),
		msg(1, 0, alice, "first"),
	)
	assert.False(t, IsContinuation(at, 0, mergeable))
}

func TestIsContinuationOutsideWindow(t *testing.T) {
	mergeable := DefaultMergeable(time.Minute)
	at := rows(
		msg(2, 2*time.Minute, alice, "later"),
		msg(1, 0, alice, "first"),
	)
	assert.False(t, IsContinuation(at, 0, mergeable))
}

func TestIsContinuationSkipsMarkersAndPreviews(t *testing.T) {
	mergeable := DefaultMergeable(time.Minute)
	preview := Entry{ID: 3, Key: testKey, Timestamp: base.Add(5 * time.Second), Sender: alice, Payload: LinkPreview{URL: "https://x"}}
	receipt := Entry{ID: 4, Key: testKey, Timestamp: base.Add(6 * time.Second), Payload: ReceiptMarker{Type: ReceiptDisplayed}}
	at := rows(
		msg(5, 8*time.Second, alice, "again"),
		receipt,
		preview,
		msg(1, 0, alice, "first https://x"),
	)
	assert.True(t, IsContinuation(at, 0, mergeable))
}

func TestIsContinuationBrokenByUnreadMarker(t *testing.T) {
	mergeable := DefaultMergeable(time.Minute)
	at := rows(
		msg(2, time.Second, alice, "new"),
		NewUnreadMarker(testKey, base.Add(time.Second), 1),
		msg(1, 0, alice, "old"),
	)
	assert.False(t, IsContinuation(at, 0, mergeable))
}

func TestCellForCoversEveryKind(t *testing.T) {
	tests := []struct {
		payload Payload
		want    Cell
	}{
		{Message{}, CellMessage},
		{Attachment{}, CellAttachment},
		{LinkPreview{}, CellLinkPreview},
		{Location{}, CellLocation},
		{Retraction{}, CellRetraction},
		{ReceiptMarker{}, CellReceiptMarker},
		{Invitation{}, CellInvitation},
		{UnreadMessages{}, CellUnreadSeparator},
		{Unknown{Type: "poll"}, CellUnsupported},
		{nil, CellUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CellFor(Entry{Payload: tt.payload}))
		})
	}
}

func TestCopyTextSkipsUnreadMarker(t *testing.T) {
	entries := []Entry{
		NewUnreadMarker(testKey, base.Add(time.Minute), 1),
		msg(2, time.Minute, alice, "unread one"),
		msg(1, 0, bob, "read one"),
	}
	text := CopyText(entries)

	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "bob: read one")
	assert.Contains(t, lines[1], "alice: unread one")
	assert.NotContains(t, text, "unread_messages")
}

func TestInvitationURI(t *testing.T) {
	assert.Equal(t, "xmpp:room@muc.example.org?join", Invitation{Room: "room@muc.example.org"}.URI())
	assert.Equal(t, "xmpp:room@muc.example.org?join;password=pw", Invitation{Room: "room@muc.example.org", Password: "pw"}.URI())
}
