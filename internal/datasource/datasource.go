package datasource

import (
	"context"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"go.uber.org/zap"
)

const (
	DefaultPageSize    = 50
	DefaultWindowSize  = 200
	DefaultMergeWindow = 60 * time.Second
)

// Config tunes a data source. Zero fields take the defaults.
type Config struct {
	PageSize   int
	WindowSize int
	Mergeable  conversation.MergeFunc
}

// DataSource is a windowed, newest-first view over one conversation's
// history. It loads lazily from a Source, follows the bus for changes made
// after loading and reports every change to its Delegate as row deltas.
//
// All methods must be called on the Queue.
type DataSource struct {
	key      conversation.Key
	source   Source
	queue    Queue
	delegate Delegate
	bus      *bus.Bus
	cfg      Config
	logger   *zap.Logger

	// Ascending (timestamp, id); row r is entries[len(entries)-1-r].
	entries     []conversation.Entry
	mode        Mode
	gen         uint64
	loaded      bool
	loading     bool
	loadingMore bool
	complete    bool
	backlog     []bus.Event
	lastVisible int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

// New creates a data source for key. Nothing is loaded until LoadItems.
func New(key conversation.Key, source Source, queue Queue, delegate Delegate, b *bus.Bus, cfg Config, logger *zap.Logger) *DataSource {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Mergeable == nil {
		cfg.Mergeable = conversation.DefaultMergeable(DefaultMergeWindow)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataSource{
		key:         key,
		source:      source,
		queue:       queue,
		delegate:    delegate,
		bus:         b,
		cfg:         cfg,
		logger:      logger.With(zap.Stringer("conversation", key)),
		lastVisible: -1,
		ctx:         context.Background(),
	}
}

// Key returns the conversation this data source shows.
func (ds *DataSource) Key() conversation.Key {
	return ds.key
}

// Start follows conversation changes on the bus until ctx is done or Close
// is called. Changes are applied on the queue.
func (ds *DataSource) Start(ctx context.Context) {
	if ds.bus == nil {
		return
	}
	ctx, ds.cancel = context.WithCancel(ctx)
	ds.ctx = ctx
	ds.done = make(chan struct{})
	ch, unsub := ds.bus.Subscribe(bus.NamespaceConversation, 256)

	go func() {
		defer close(ds.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c, ok := evt.Payload.(conversation.Change)
				if !ok || c.Key != ds.key {
					continue
				}
				ds.queue.Enqueue(func() { ds.handle(evt) })
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops following the bus. In-flight loads complete but are discarded.
func (ds *DataSource) Close() {
	ds.closed.Store(true)
	if ds.cancel != nil {
		ds.cancel()
		<-ds.done
	}
}

// Count returns the number of rows, including the unread marker.
func (ds *DataSource) Count() int {
	return len(ds.entries)
}

// Item returns the entry at row, where row 0 is the newest.
func (ds *DataSource) Item(row int) (conversation.Entry, bool) {
	if row < 0 || row >= len(ds.entries) {
		return conversation.Entry{}, false
	}
	return ds.entries[len(ds.entries)-1-row], true
}

// Complete reports whether the window reaches the start of the history.
func (ds *DataSource) Complete() bool {
	return ds.complete
}

// Loading reports whether LoadItems is in flight.
func (ds *DataSource) Loading() bool {
	return ds.loading
}

// IsContinuation reports whether row renders merged with the next older row.
func (ds *DataSource) IsContinuation(row int) bool {
	return conversation.IsContinuation(ds.Item, row, ds.cfg.Mergeable)
}

// CopyText exports the given rows as plain text, oldest first. The unread
// marker is never exported.
func (ds *DataSource) CopyText(rows []int) string {
	entries := make([]conversation.Entry, 0, len(rows))
	for _, r := range rows {
		if e, ok := ds.Item(r); ok {
			entries = append(entries, e)
		}
	}
	return conversation.CopyText(entries)
}

// UpdateVisibleRows records the rows the view shows and returns the
// timestamp of the newest visible entry, skipping the unread marker.
func (ds *DataSource) UpdateVisibleRows(first, last int) (time.Time, bool) {
	if first > last {
		first, last = last, first
	}
	ds.lastVisible = last
	for r := max(first, 0); r <= last; r++ {
		e, ok := ds.Item(r)
		if !ok {
			break
		}
		if e.IsUnreadMarker() {
			continue
		}
		return e.Timestamp, true
	}
	return time.Time{}, false
}

// TrimStore releases the oldest rows beyond the window size. Rows up to the
// last visible row are always kept. The entries stay in the store and come
// back through LoadMore.
func (ds *DataSource) TrimStore() {
	keep := max(ds.cfg.WindowSize, ds.lastVisible+1)
	n := len(ds.entries)
	if n <= keep {
		return
	}
	drop := n - keep
	rows := make([]int, 0, drop)
	for r := keep; r < n; r++ {
		rows = append(rows, r)
	}
	ds.entries = slices.Clone(ds.entries[drop:])
	ds.complete = false

	ds.delegate.BeginUpdates()
	ds.delegate.ItemsRemoved(rows)
	ds.delegate.EndUpdates()
	ds.logger.Debug("window trimmed", zap.Int("dropped", drop), zap.Int("kept", keep))
}

func (ds *DataSource) handle(evt bus.Event) {
	if ds.closed.Load() {
		return
	}
	if ds.loading {
		ds.backlog = append(ds.backlog, evt)
		return
	}
	if !ds.loaded {
		return
	}
	c := evt.Payload.(conversation.Change)
	switch evt.Kind {
	case bus.EntryAdded, bus.EntryUpdated:
		if c.Entry != nil {
			ds.upsert(*c.Entry)
		}
	case bus.EntryRemoved:
		ds.remove(c.ID)
	case bus.Read:
		ds.markRead(c.Before)
	case bus.HistoryReset:
		ds.reset()
	}
}

func (ds *DataSource) upsert(e conversation.Entry) {
	if i := ds.indexOf(e.ID); i >= 0 {
		ds.entries[i] = e
		ds.delegate.BeginUpdates()
		ds.delegate.ItemUpdated(ds.rowOf(i))
		ds.delegate.EndUpdates()
		return
	}
	i := ds.insertIndex(e)
	if i == 0 && len(ds.entries) > 0 && !ds.complete {
		// Older than the window; LoadMore will bring it in.
		return
	}
	ds.entries = slices.Insert(ds.entries, i, e)
	ds.delegate.BeginUpdates()
	ds.delegate.ItemsAdded([]int{ds.rowOf(i)}, false)
	ds.delegate.EndUpdates()
}

func (ds *DataSource) remove(id int64) {
	i := ds.indexOf(id)
	if i < 0 {
		return
	}
	row := ds.rowOf(i)
	ds.entries = slices.Delete(ds.entries, i, i+1)
	ds.delegate.BeginUpdates()
	ds.delegate.ItemsRemoved([]int{row})
	ds.delegate.EndUpdates()
}

func (ds *DataSource) markRead(before time.Time) {
	var rows []int
	for i := len(ds.entries) - 1; i >= 0; i-- {
		e := &ds.entries[i]
		if e.State.IsUnread() && !e.Timestamp.After(before) {
			e.State.Status = conversation.Read
			rows = append(rows, ds.rowOf(i))
		}
	}
	if len(rows) == 0 {
		return
	}
	ds.delegate.BeginUpdates()
	ds.delegate.ItemsUpdated(rows)
	ds.delegate.EndUpdates()
}

func (ds *DataSource) reset() {
	ds.entries = nil
	ds.loaded = false
	ds.complete = false
	ds.delegate.BeginUpdates()
	ds.delegate.ItemsReloaded()
	ds.delegate.EndUpdates()
	ds.LoadItems(ds.ctx, ds.mode)
}

func (ds *DataSource) rowOf(i int) int {
	return len(ds.entries) - 1 - i
}

func (ds *DataSource) indexOf(id int64) int {
	if id == 0 {
		return -1
	}
	for i := len(ds.entries) - 1; i >= 0; i-- {
		if ds.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (ds *DataSource) insertIndex(e conversation.Entry) int {
	i, _ := slices.BinarySearchFunc(ds.entries, sortKey(e), func(a conversation.Entry, p conversation.Position) int {
		return comparePositions(sortKey(a), p)
	})
	return i
}

// sortKey places the unread marker relative to the oldest unread entry, whose
// timestamp it carries. A marker for a single unread entry sorts after every
// real entry sharing that timestamp; one for several sorts before them, at the
// edge between read and unread history.
func sortKey(e conversation.Entry) conversation.Position {
	if e.IsUnreadMarker() {
		if m, _ := e.Payload.(conversation.UnreadMessages); m.Count > 1 {
			return conversation.Position{Timestamp: e.Timestamp, ID: math.MinInt64}
		}
		return conversation.Position{Timestamp: e.Timestamp, ID: math.MaxInt64}
	}
	return e.Position()
}

func comparePositions(a, b conversation.Position) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
