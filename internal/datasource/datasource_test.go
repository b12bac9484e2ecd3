package datasource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = conversation.Key{Account: "me@example.org", JID: "alice@example.org"}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(id int64, sec int, unread bool) conversation.Entry {
	status := conversation.Read
	if unread {
		status = conversation.Unread
	}
	return conversation.Entry{
		ID:        id,
		Key:       key,
		StanzaID:  fmt.Sprintf("s%d", id),
		Timestamp: base.Add(time.Duration(sec) * time.Second),
		State:     conversation.State{Direction: conversation.Incoming, Status: status},
		Sender:    conversation.Sender{Kind: conversation.SenderBuddy, JID: key.JID},
		Payload:   conversation.Message{Body: fmt.Sprintf("message %d", id)},
	}
}

// fakeSource serves entries from memory. A limit listed in block makes
// Entries wait until that channel is closed.
type fakeSource struct {
	mu      sync.Mutex
	entries []conversation.Entry
	err     error
	block   map[int]chan struct{}
}

func (s *fakeSource) Entries(_ context.Context, k conversation.Key, before *conversation.Position, limit int) ([]conversation.Entry, error) {
	s.mu.Lock()
	gate := s.block[limit]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []conversation.Entry
	for _, e := range s.entries {
		if e.Key != k {
			continue
		}
		if before != nil && !e.Position().Less(*before) {
			continue
		}
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return slices.Clone(out), nil
}

func (s *fakeSource) UnreadCount(_ context.Context, k conversation.Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, e := range s.entries {
		if e.Key == k && e.State.IsUnread() {
			n++
		}
	}
	return n, nil
}

func (s *fakeSource) add(e conversation.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	slices.SortFunc(s.entries, func(a, b conversation.Entry) int {
		return comparePositions(a.Position(), b.Position())
	})
}

// recorder is a Delegate that logs every callback.
type recorder struct {
	mu   sync.Mutex
	ops  []string
	ends chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ends: make(chan struct{}, 128)}
}

func (r *recorder) log(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recorder) BeginUpdates() { r.log("begin") }
func (r *recorder) EndUpdates() {
	r.log("end")
	r.ends <- struct{}{}
}
func (r *recorder) ItemsAdded(rows []int, initial bool) {
	r.log(fmt.Sprintf("added%v initial=%v", rows, initial))
}
func (r *recorder) ItemsUpdated(rows []int) { r.log(fmt.Sprintf("updated%v", rows)) }
func (r *recorder) ItemUpdated(row int)     { r.log(fmt.Sprintf("updated[%d]", row)) }
func (r *recorder) ItemsRemoved(rows []int) { r.log(fmt.Sprintf("removed%v", rows)) }
func (r *recorder) ItemsReloaded()          { r.log("reloaded") }

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.ops
	r.ops = nil
	return ops
}

type harness struct {
	t   *testing.T
	src *fakeSource
	rec *recorder
	q   *SerialQueue
	bus *bus.Bus
	ds  *DataSource
}

func newHarness(t *testing.T, src *fakeSource, cfg Config) *harness {
	t.Helper()
	h := &harness{t: t, src: src, rec: newRecorder(), q: NewSerialQueue(), bus: bus.New()}
	h.ds = New(key, src, h.q, h.rec, h.bus, cfg, nil)
	h.ds.Start(context.Background())
	t.Cleanup(func() {
		h.ds.Close()
		h.q.Close()
	})
	return h
}

func (h *harness) waitEnd() {
	h.t.Helper()
	select {
	case <-h.rec.ends:
	case <-time.After(time.Second):
		h.t.Fatal("timeout waiting for EndUpdates")
	}
}

func (h *harness) load(mode Mode) {
	h.t.Helper()
	h.q.Do(func() { h.ds.LoadItems(context.Background(), mode) })
	h.waitEnd()
}

func (h *harness) item(row int) (conversation.Entry, bool) {
	var e conversation.Entry
	var ok bool
	h.q.Do(func() { e, ok = h.ds.Item(row) })
	return e, ok
}

func (h *harness) count() int {
	var n int
	h.q.Do(func() { n = h.ds.Count() })
	return n
}

func (h *harness) ids() []int64 {
	var out []int64
	h.q.Do(func() {
		for r := 0; r < h.ds.Count(); r++ {
			e, _ := h.ds.Item(r)
			out = append(out, e.ID)
		}
	})
	return out
}

func TestUnreadLoadPlacesMarker(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{
		entry(1, 1, false),
		entry(2, 2, false),
		entry(3, 3, true),
	}}
	h := newHarness(t, src, Config{})

	h.load(Unread(1))

	assert.Equal(t, 3, h.count())
	first, ok := h.item(0)
	require.True(t, ok)
	assert.True(t, first.IsUnreadMarker())
	assert.Equal(t, conversation.UnreadMessages{Count: 1}, first.Payload)

	second, ok := h.item(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), second.ID)

	third, ok := h.item(2)
	require.True(t, ok)
	assert.Equal(t, int64(2), third.ID)

	_, ok = h.item(3)
	assert.False(t, ok)
	_, ok = h.item(-1)
	assert.False(t, ok)

	assert.Equal(t, []string{"begin", "added[0 1 2] initial=true", "end"}, h.rec.take())

	var complete bool
	h.q.Do(func() { complete = h.ds.Complete() })
	assert.False(t, complete, "T1 is still older than the window")
}

func TestUnreadLoadPlacesMarkerAtReadEdge(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{
		entry(1, 1, false),
		entry(2, 2, false),
		entry(3, 3, true),
		entry(4, 4, true),
	}}
	h := newHarness(t, src, Config{})

	h.load(Unread(1))

	// Both unread entries sit on the newer side of the marker.
	assert.Equal(t, []int64{4, 3, 0, 2}, h.ids())
	marker, ok := h.item(2)
	require.True(t, ok)
	assert.Equal(t, conversation.UnreadMessages{Count: 2}, marker.Payload)

	// A late arrival sharing the oldest unread timestamp stays above the marker.
	late := entry(5, 3, true)
	h.bus.Emit(bus.EntryAdded, conversation.Change{Key: key, Entry: &late})
	h.waitEnd()
	assert.Equal(t, []int64{4, 5, 3, 0, 2}, h.ids())
}

func TestUnreadLoadWalksBackPages(t *testing.T) {
	src := &fakeSource{}
	for i := 1; i <= 10; i++ {
		src.add(entry(int64(i), i, i >= 4))
	}
	h := newHarness(t, src, Config{PageSize: 3})

	h.load(Unread(2))

	// Unread 4..10, two read entries of overhead, and the marker.
	assert.Equal(t, 10, h.count())
	assert.Equal(t, []int64{10, 9, 8, 7, 6, 5, 4, 0, 3, 2}, h.ids())

	marker, _ := h.item(7)
	assert.Equal(t, conversation.UnreadMessages{Count: 7}, marker.Payload)
}

func TestUnreadLoadWithoutUnreadLoadsNewest(t *testing.T) {
	src := &fakeSource{}
	for i := 1; i <= 5; i++ {
		src.add(entry(int64(i), i, false))
	}
	h := newHarness(t, src, Config{PageSize: 3})

	h.load(Unread(1))

	assert.Equal(t, []int64{5, 4, 3}, h.ids())
}

func TestOrderingIsNewestFirst(t *testing.T) {
	src := &fakeSource{}
	// Equal timestamps are ordered by id.
	for i, sec := range []int{1, 2, 2, 2, 3, 5, 5, 8} {
		src.add(entry(int64(i+1), sec, false))
	}
	h := newHarness(t, src, Config{})

	h.load(Newest(0))

	n := h.count()
	require.Equal(t, 8, n)
	for i := 0; i+1 < n; i++ {
		a, _ := h.item(i)
		b, _ := h.item(i + 1)
		assert.False(t, a.Timestamp.Before(b.Timestamp), "row %d older than row %d", i, i+1)
		assert.True(t, b.Position().Less(a.Position()))
	}
}

func TestHeadInsertShiftsRows(t *testing.T) {
	src := &fakeSource{}
	for i := 1; i <= 4; i++ {
		src.add(entry(int64(i), i, false))
	}
	h := newHarness(t, src, Config{})
	h.load(Newest(10))
	h.rec.take()
	before := h.ids()

	added := entry(5, 10, true)
	h.bus.Emit(bus.EntryAdded, conversation.Change{Key: key, Entry: &added})
	h.waitEnd()

	assert.Equal(t, []string{"begin", "added[0] initial=false", "end"}, h.rec.take())
	head, ok := h.item(0)
	require.True(t, ok)
	assert.Equal(t, added, head)
	assert.Equal(t, before, h.ids()[1:])
}

func TestInsertInTheMiddle(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{entry(1, 1, false), entry(2, 5, false)}}
	h := newHarness(t, src, Config{})
	h.load(Newest(10))
	h.rec.take()

	late := entry(3, 3, false)
	h.bus.Emit(bus.EntryAdded, conversation.Change{Key: key, Entry: &late})
	h.waitEnd()

	assert.Equal(t, []string{"begin", "added[1] initial=false", "end"}, h.rec.take())
	assert.Equal(t, []int64{2, 3, 1}, h.ids())
}

func TestOlderThanWindowIsLeftToLoadMore(t *testing.T) {
	src := &fakeSource{}
	for i := 1; i <= 5; i++ {
		src.add(entry(int64(i), i+10, false))
	}
	h := newHarness(t, src, Config{})
	h.load(Newest(2))
	h.rec.take()

	old := entry(9, 1, false)
	h.bus.Emit(bus.EntryAdded, conversation.Change{Key: key, Entry: &old})
	// A later change is applied, proving the first one was handled.
	upd := entry(5, 15, true)
	h.bus.Emit(bus.EntryUpdated, conversation.Change{Key: key, Entry: &upd})
	h.waitEnd()

	assert.Equal(t, []string{"begin", "updated[0]", "end"}, h.rec.take())
	assert.Equal(t, 2, h.count())
}

func TestChangesForOtherConversationsAreIgnored(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{entry(1, 1, false)}}
	h := newHarness(t, src, Config{})
	h.load(Newest(10))
	h.rec.take()

	other := entry(2, 2, false)
	other.Key.JID = "bob@example.org"
	h.bus.Emit(bus.EntryAdded, conversation.Change{Key: other.Key, Entry: &other})
	mine := entry(3, 3, false)
	h.bus.Emit(bus.EntryAdded, conversation.Change{Key: key, Entry: &mine})
	h.waitEnd()

	assert.Equal(t, []int64{3, 1}, h.ids())
}

func TestUpdateRemoveAndRead(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{
		entry(1, 1, false),
		entry(2, 2, true),
		entry(3, 3, true),
		entry(4, 4, true),
	}}
	h := newHarness(t, src, Config{})
	h.load(Newest(10))
	h.rec.take()

	h.bus.Emit(bus.Read, conversation.Change{Key: key, Before: base.Add(3 * time.Second)})
	h.waitEnd()
	assert.Equal(t, []string{"begin", "updated[1 2]", "end"}, h.rec.take())
	e, _ := h.item(1)
	assert.Equal(t, conversation.Read, e.State.Status)
	e, _ = h.item(0)
	assert.Equal(t, conversation.Unread, e.State.Status)

	retracted := entry(3, 3, false)
	retracted.Payload = conversation.Retraction{}
	h.bus.Emit(bus.EntryUpdated, conversation.Change{Key: key, Entry: &retracted})
	h.waitEnd()
	assert.Equal(t, []string{"begin", "updated[1]", "end"}, h.rec.take())
	e, _ = h.item(1)
	assert.Equal(t, conversation.Retraction{}, e.Payload)

	h.bus.Emit(bus.EntryRemoved, conversation.Change{Key: key, ID: 2})
	h.waitEnd()
	assert.Equal(t, []string{"begin", "removed[2]", "end"}, h.rec.take())
	assert.Equal(t, []int64{4, 3, 1}, h.ids())
}

func TestHistoryResetReloads(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{entry(1, 1, false), entry(2, 2, false)}}
	h := newHarness(t, src, Config{})
	h.load(Newest(10))
	h.rec.take()

	src.mu.Lock()
	src.entries = nil
	src.mu.Unlock()
	h.bus.Emit(bus.HistoryReset, conversation.Change{Key: key})
	h.waitEnd()
	h.waitEnd()

	assert.Equal(t, []string{"begin", "reloaded", "end", "begin", "added[] initial=true", "end"}, h.rec.take())
	assert.Equal(t, 0, h.count())
}

func TestTrimKeepsVisibleRows(t *testing.T) {
	src := &fakeSource{}
	for i := 1; i <= 30; i++ {
		src.add(entry(int64(i), i, false))
	}
	h := newHarness(t, src, Config{WindowSize: 10})
	h.load(Newest(30))
	h.rec.take()

	var visible []conversation.Entry
	h.q.Do(func() {
		h.ds.UpdateVisibleRows(0, 14)
		for r := 0; r <= 14; r++ {
			e, _ := h.ds.Item(r)
			visible = append(visible, e)
		}
		h.ds.TrimStore()
	})
	h.waitEnd()

	assert.Equal(t, 15, h.count())
	for r, want := range visible {
		got, ok := h.item(r)
		require.True(t, ok)
		assert.Equal(t, want, got, "row %d changed by trim", r)
	}
	ops := h.rec.take()
	require.Len(t, ops, 3)
	assert.True(t, strings.HasPrefix(ops[1], "removed[15 16"), ops[1])

	// Scrolled back to the newest rows: the window shrinks to its size.
	h.q.Do(func() {
		h.ds.UpdateVisibleRows(0, 3)
		h.ds.TrimStore()
	})
	h.waitEnd()
	assert.Equal(t, 10, h.count())
	head, _ := h.item(0)
	assert.Equal(t, int64(30), head.ID)
}

func TestTrimDuringLoadMoreDiscardsStalePage(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{block: map[int]chan struct{}{5: gate}}
	for i := 1; i <= 30; i++ {
		src.add(entry(int64(i), i, false))
	}
	h := newHarness(t, src, Config{WindowSize: 10})
	h.load(Newest(20))
	h.rec.take()

	h.q.Do(func() { h.ds.LoadMore(context.Background(), 5) })
	h.q.Do(func() {
		h.ds.UpdateVisibleRows(0, 3)
		h.ds.TrimStore()
	})
	h.waitEnd()
	h.rec.take()
	assert.Equal(t, []int64{30, 29, 28, 27, 26, 25, 24, 23, 22, 21}, h.ids())

	// The page older than entry 11 no longer borders the window.
	close(gate)
	h.waitEnd()
	assert.Equal(t, []string{"begin", "end"}, h.rec.take())
	assert.Equal(t, []int64{30, 29, 28, 27, 26, 25, 24, 23, 22, 21}, h.ids())

	h.q.Do(func() { h.ds.LoadMore(context.Background(), 5) })
	h.waitEnd()
	assert.Equal(t, []int64{30, 29, 28, 27, 26, 25, 24, 23, 22, 21, 20, 19, 18, 17, 16}, h.ids())
}

func TestTrimBelowWindowIsNoop(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{entry(1, 1, false)}}
	h := newHarness(t, src, Config{WindowSize: 10})
	h.load(Newest(10))
	h.rec.take()

	h.q.Do(func() { h.ds.TrimStore() })
	assert.Empty(t, h.rec.take())
}

func TestLoadMoreExtendsTowardsOlder(t *testing.T) {
	src := &fakeSource{}
	for i := 1; i <= 5; i++ {
		src.add(entry(int64(i), i, false))
	}
	h := newHarness(t, src, Config{})
	h.load(Newest(2))
	h.rec.take()

	h.q.Do(func() { h.ds.LoadMore(context.Background(), 2) })
	h.waitEnd()
	assert.Equal(t, []string{"begin", "added[2 3] initial=false", "end"}, h.rec.take())
	assert.Equal(t, []int64{5, 4, 3, 2}, h.ids())

	h.q.Do(func() { h.ds.LoadMore(context.Background(), 2) })
	h.waitEnd()
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, h.ids())

	var complete bool
	h.q.Do(func() {
		complete = h.ds.Complete()
		h.ds.LoadMore(context.Background(), 2)
	})
	assert.True(t, complete)
	select {
	case <-h.rec.ends:
		t.Fatal("LoadMore after completion must not report updates")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFetchErrorLeavesWindow(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{entry(1, 1, false)}}
	h := newHarness(t, src, Config{})
	h.load(Newest(10))
	h.rec.take()

	src.mu.Lock()
	src.err = errors.New("disk I/O error")
	src.mu.Unlock()
	h.load(Unread(5))

	assert.Equal(t, []string{"begin", "end"}, h.rec.take())
	assert.Equal(t, []int64{1}, h.ids())
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{block: map[int]chan struct{}{7: gate}}
	for i := 1; i <= 5; i++ {
		src.add(entry(int64(i), i, false))
	}
	h := newHarness(t, src, Config{})

	h.q.Do(func() { h.ds.LoadItems(context.Background(), Newest(7)) })
	h.load(Newest(3))
	assert.Equal(t, []int64{5, 4, 3}, h.ids())
	h.rec.take()

	close(gate)
	time.Sleep(50 * time.Millisecond)
	h.q.Do(func() {})

	assert.Empty(t, h.rec.take())
	assert.Equal(t, []int64{5, 4, 3}, h.ids())
}

func TestChangesDuringLoadAreReplayed(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{block: map[int]chan struct{}{10: gate}}
	src.add(entry(1, 1, false))
	h := newHarness(t, src, Config{})

	h.q.Do(func() { h.ds.LoadItems(context.Background(), Newest(10)) })
	added := entry(2, 2, false)
	h.bus.Emit(bus.EntryAdded, conversation.Change{Key: key, Entry: &added})
	// Let the change reach the queue before the load completes.
	time.Sleep(20 * time.Millisecond)
	h.q.Do(func() {})
	close(gate)
	h.waitEnd()
	h.waitEnd()

	assert.Equal(t, []string{
		"begin", "added[0] initial=true", "end",
		"begin", "added[0] initial=false", "end",
	}, h.rec.take())
	assert.Equal(t, []int64{2, 1}, h.ids())
}

func TestVisibleRowsSkipMarker(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{
		entry(1, 1, false),
		entry(2, 2, false),
		entry(3, 3, true),
	}}
	h := newHarness(t, src, Config{})
	h.load(Unread(1))

	var ts time.Time
	var ok bool
	h.q.Do(func() { ts, ok = h.ds.UpdateVisibleRows(0, 2) })
	require.True(t, ok)
	assert.True(t, ts.Equal(base.Add(3*time.Second)))

	h.q.Do(func() { _, ok = h.ds.UpdateVisibleRows(5, 9) })
	assert.False(t, ok)
}

func TestCopyTextExcludesMarker(t *testing.T) {
	src := &fakeSource{entries: []conversation.Entry{
		entry(1, 1, false),
		entry(2, 2, false),
		entry(3, 3, true),
	}}
	h := newHarness(t, src, Config{})
	h.load(Unread(1))

	var text string
	h.q.Do(func() { text = h.ds.CopyText([]int{0, 1, 2}) })

	assert.Equal(t, 3, h.count())
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "message 2")
	assert.Contains(t, lines[1], "message 3")
}

func TestIsContinuation(t *testing.T) {
	other := entry(3, 3, false)
	other.Sender = conversation.Sender{Kind: conversation.SenderMe, JID: key.Account}
	other.State.Direction = conversation.Outgoing
	src := &fakeSource{entries: []conversation.Entry{entry(1, 1, false), entry(2, 2, false), other}}
	h := newHarness(t, src, Config{})
	h.load(Newest(10))

	var rows []bool
	h.q.Do(func() {
		for r := 0; r < h.ds.Count(); r++ {
			rows = append(rows, h.ds.IsContinuation(r))
		}
	})
	assert.Equal(t, []bool{false, true, false}, rows)
}
