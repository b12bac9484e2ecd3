package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/roster"
	"github.com/matheus3301/siskin/internal/rpc"
	"github.com/matheus3301/siskin/internal/store"
	intsync "github.com/matheus3301/siskin/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var testKey = conversation.Key{Account: "me@example.org", JID: "juliet@example.org"}

type fixture struct {
	db  *store.DB
	bus *bus.Bus
	svc *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "siskin.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	engine := intsync.NewEngine(db, b, nil)
	return &fixture{db: db, bus: b, svc: NewConversationService(db, engine, b, nil)}
}

func wireMessage(t *testing.T, stanza, body string, ts time.Time, status conversation.Status) *rpc.Entry {
	t.Helper()
	w, err := rpc.EntryToWire(conversation.Entry{
		Key:       testKey,
		StanzaID:  stanza,
		Timestamp: ts,
		State:     conversation.State{Direction: conversation.Incoming, Status: status},
		Sender:    conversation.Sender{Kind: conversation.SenderBuddy, JID: testKey.JID},
		Payload:   conversation.Message{Body: body},
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) post(t *testing.T, w *rpc.Entry) *rpc.Entry {
	t.Helper()
	resp, err := f.svc.PostEntry(context.Background(), &rpc.PostEntryRequest{Entry: w})
	require.NoError(t, err)
	return resp.Entry
}

func TestPostAndListEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, body := range []string{"one", "two", "three"} {
		f.post(t, wireMessage(t, body, body, base.Add(time.Duration(i)*time.Minute), conversation.Read))
	}

	resp, err := f.svc.ListEntries(ctx, &rpc.ListEntriesRequest{Key: testKey, Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)

	first, err := rpc.EntryFromWire(resp.Entries[0])
	require.NoError(t, err)
	assert.Equal(t, conversation.Message{Body: "two"}, first.Payload)

	before := resp.Entries[0]
	older, err := f.svc.ListEntries(ctx, &rpc.ListEntriesRequest{
		Key:    testKey,
		Before: &rpc.Position{TimestampMs: before.TimestampMs, ID: before.ID},
	})
	require.NoError(t, err)
	require.Len(t, older.Entries, 1)
	assert.Equal(t, "one", older.Entries[0].StanzaID)

	convs, err := f.svc.ListConversations(ctx, &rpc.ListConversationsRequest{Account: testKey.Account})
	require.NoError(t, err)
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, testKey, convs.Conversations[0].Key)
	assert.False(t, convs.HasMore)
}

func TestPostEntryRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := wireMessage(t, "x", "hi", time.Now(), conversation.Unread)
	bad.Key.JID = ""
	_, err := f.svc.PostEntry(ctx, &rpc.PostEntryRequest{Entry: bad})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))

	_, err = f.svc.PostEntry(ctx, &rpc.PostEntryRequest{})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))

	marker, err := rpc.EntryToWire(conversation.NewUnreadMarker(testKey, time.Now(), 3))
	require.NoError(t, err)
	_, err = f.svc.PostEntry(ctx, &rpc.PostEntryRequest{Entry: marker})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	f.post(t, wireMessage(t, "a", "a", base, conversation.Unread))
	f.post(t, wireMessage(t, "b", "b", base.Add(time.Minute), conversation.Unread))
	f.post(t, wireMessage(t, "c", "c", base.Add(2*time.Minute), conversation.Unread))

	count, err := f.svc.UnreadCount(ctx, &rpc.UnreadCountRequest{Key: testKey})
	require.NoError(t, err)
	assert.Equal(t, 3, count.Count)

	marked, err := f.svc.MarkRead(ctx, &rpc.MarkReadRequest{Key: testKey, BeforeMs: base.Add(time.Minute).UnixMilli()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked.Marked)

	count, err = f.svc.UnreadCount(ctx, &rpc.UnreadCountRequest{Key: testKey})
	require.NoError(t, err)
	assert.Equal(t, 1, count.Count)
}

func TestEntryMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.post(t, wireMessage(t, "a", "secret", time.Now(), conversation.Read))

	updated, err := f.svc.UpdateEntryState(ctx, &rpc.UpdateEntryStateRequest{
		Key:   testKey,
		ID:    e.ID,
		State: conversation.State{Direction: conversation.Incoming, Status: conversation.Read, Error: "decrypt failed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "decrypt failed", updated.Entry.State.Error)

	_, err = f.svc.RetractEntry(ctx, &rpc.EntryRequest{Key: testKey, ID: e.ID})
	require.NoError(t, err)
	list, err := f.svc.ListEntries(ctx, &rpc.ListEntriesRequest{Key: testKey})
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, string(conversation.KindRetraction), list.Entries[0].PayloadKind)

	_, err = f.svc.DeleteEntry(ctx, &rpc.EntryRequest{Key: testKey, ID: e.ID})
	require.NoError(t, err)
	_, err = f.svc.DeleteEntry(ctx, &rpc.EntryRequest{Key: testKey, ID: e.ID})
	assert.Equal(t, codes.NotFound, grpcstatus.Code(err))
}

func TestPurgeAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, wireMessage(t, "a", "wherefore art thou", time.Now(), conversation.Read))

	found, err := f.svc.Search(ctx, &rpc.SearchRequest{Query: "wherefore"})
	require.NoError(t, err)
	require.Len(t, found.Results, 1)
	assert.Contains(t, found.Results[0].Snippet, "<<wherefore>>")

	purged, err := f.svc.PurgeHistory(ctx, &rpc.PurgeHistoryRequest{Key: testKey})
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged.Deleted)

	_, err = f.svc.PurgeHistory(ctx, &rpc.PurgeHistoryRequest{Key: conversation.Key{}})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

func TestContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events, unsub := f.bus.Subscribe(bus.NamespaceRoster, 4)
	defer unsub()

	missing, err := f.svc.GetContact(ctx, &rpc.GetContactRequest{Account: testKey.Account, JID: testKey.JID})
	require.NoError(t, err)
	assert.Nil(t, missing.Contact)

	c := roster.Contact{Account: testKey.Account, JID: testKey.JID, Name: "Juliet"}
	_, err = f.svc.SetContact(ctx, &rpc.SetContactRequest{Contact: c})
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, bus.ContactChanged, evt.Kind)
		assert.Equal(t, c, evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("no contact_changed event")
	}

	got, err := f.svc.GetContact(ctx, &rpc.GetContactRequest{Account: testKey.Account, JID: testKey.JID})
	require.NoError(t, err)
	require.NotNil(t, got.Contact)
	assert.Equal(t, "Juliet", got.Contact.Name)
}

type fakeStream struct {
	ctx    context.Context
	events chan *rpc.WatchEvent
}

func (s *fakeStream) Send(evt *rpc.WatchEvent) error {
	s.events <- evt
	return nil
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func (s *fakeStream) next(t *testing.T) *rpc.WatchEvent {
	t.Helper()
	select {
	case evt := <-s.events:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return nil
	}
}

func TestWatchConversation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{ctx: ctx, events: make(chan *rpc.WatchEvent, 16)}

	done := make(chan error, 1)
	go func() {
		done <- f.svc.WatchConversation(&rpc.WatchConversationRequest{Key: testKey}, stream)
	}()

	started := stream.next(t)
	assert.Equal(t, rpc.WatchEventStarted, started.Kind)
	assert.NotEmpty(t, started.EventID)

	other := conversation.Key{Account: testKey.Account, JID: "romeo@example.org"}
	f.bus.Emit(bus.HistoryReset, conversation.Change{Key: other})
	f.bus.Emit(bus.ContactChanged, roster.Contact{Account: "someone@else.org", JID: "x@y"})

	posted := f.post(t, wireMessage(t, "a", "hello", time.Now(), conversation.Unread))

	added := stream.next(t)
	assert.Equal(t, string(bus.EntryAdded), added.Kind)
	require.NotNil(t, added.Entry)
	assert.Equal(t, posted.ID, added.Entry.ID)

	f.bus.Emit(bus.ContactChanged, roster.Contact{Account: testKey.Account, JID: testKey.JID, Name: "J"})
	contact := stream.next(t)
	assert.Equal(t, string(bus.ContactChanged), contact.Kind)
	require.NotNil(t, contact.Contact)
	assert.Equal(t, "J", contact.Contact.Name)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestWatchConversationInvalidKey(t *testing.T) {
	f := newFixture(t)
	stream := &fakeStream{ctx: context.Background(), events: make(chan *rpc.WatchEvent, 1)}
	err := f.svc.WatchConversation(&rpc.WatchConversationRequest{}, stream)
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

func TestDaemonStatus(t *testing.T) {
	f := newFixture(t)
	f.post(t, wireMessage(t, "a", "hello", time.Now(), conversation.Read))

	svc := NewDaemonService("main", testKey.Account, f.db, f.bus)
	resp, err := svc.GetStatus(context.Background(), &rpc.GetStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, "main", resp.Profile)
	assert.Equal(t, testKey.Account, resp.Account)
	assert.Equal(t, 1, resp.ConversationCount)
	assert.Equal(t, uint(2), resp.SchemaVersion)
	assert.Zero(t, resp.DroppedEvents)
	assert.Positive(t, resp.PID)
}
