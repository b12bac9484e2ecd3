package datasource

import (
	"context"
	"slices"

	"github.com/matheus3301/siskin/internal/conversation"
	"go.uber.org/zap"
)

// LoadItems replaces the window according to mode. The fetch runs off the
// queue; its result is applied on the queue and reported as ItemsAdded with
// initial set. A later LoadItems supersedes an earlier one still in flight,
// whose result is then discarded. On a fetch error the window is left as it
// was and an empty update is reported.
func (ds *DataSource) LoadItems(ctx context.Context, mode Mode) {
	ds.gen++
	gen := ds.gen
	ds.mode = mode
	ds.loading = true
	ds.loadingMore = false

	go func() {
		entries, complete, err := ds.fetch(ctx, mode)
		ds.queue.Enqueue(func() { ds.applyLoad(gen, entries, complete, err) })
	}()
}

// LoadMore extends the window by up to limit entries towards older history.
// It does nothing while a load is in flight or once the start of the history
// has been reached.
func (ds *DataSource) LoadMore(ctx context.Context, limit int) {
	if !ds.loaded || ds.loading || ds.loadingMore || ds.complete {
		return
	}
	if limit <= 0 {
		limit = ds.cfg.PageSize
	}
	before := ds.oldestPosition()
	ds.loadingMore = true
	gen := ds.gen

	go func() {
		page, err := ds.source.Entries(ctx, ds.key, before, limit)
		ds.queue.Enqueue(func() { ds.applyMore(gen, before, page, limit, err) })
	}()
}

func (ds *DataSource) applyLoad(gen uint64, entries []conversation.Entry, complete bool, err error) {
	if ds.closed.Load() {
		return
	}
	if gen != ds.gen {
		ds.logger.Debug("discarding superseded load", zap.Uint64("gen", gen))
		return
	}
	ds.loading = false
	backlog := ds.backlog
	ds.backlog = nil

	if err != nil {
		ds.logger.Warn("load failed", zap.Stringer("mode", ds.mode), zap.Error(err))
		ds.delegate.BeginUpdates()
		ds.delegate.EndUpdates()
	} else {
		ds.entries = entries
		ds.complete = complete
		ds.loaded = true
		rows := make([]int, len(entries))
		for i := range rows {
			rows[i] = i
		}
		ds.delegate.BeginUpdates()
		ds.delegate.ItemsAdded(rows, true)
		ds.delegate.EndUpdates()
		ds.logger.Debug("window loaded", zap.Stringer("mode", ds.mode), zap.Int("rows", len(entries)), zap.Bool("complete", complete))
	}

	for _, evt := range backlog {
		ds.handle(evt)
	}
}

// applyMore prepends a page fetched before the position that was the oldest
// in the window. A page whose anchor is no longer the oldest entry, because
// the window was trimmed meanwhile, would leave a gap and is dropped.
func (ds *DataSource) applyMore(gen uint64, before *conversation.Position, page []conversation.Entry, limit int, err error) {
	if ds.closed.Load() || gen != ds.gen {
		return
	}
	ds.loadingMore = false
	if err != nil {
		ds.logger.Warn("load more failed", zap.Error(err))
		ds.delegate.BeginUpdates()
		ds.delegate.EndUpdates()
		return
	}
	if oldest := ds.oldestPosition(); !samePosition(oldest, before) {
		ds.logger.Debug("discarding stale page", zap.Int("entries", len(page)))
		ds.delegate.BeginUpdates()
		ds.delegate.EndUpdates()
		return
	}

	old := len(ds.entries)
	ds.entries = slices.Concat(page, ds.entries)
	ds.complete = len(page) < limit
	rows := make([]int, len(page))
	for i := range rows {
		rows[i] = old + i
	}
	ds.delegate.BeginUpdates()
	if len(rows) > 0 {
		ds.delegate.ItemsAdded(rows, false)
	}
	ds.delegate.EndUpdates()
}

// fetch runs off the queue and must not touch data source state other than
// its immutable configuration.
func (ds *DataSource) fetch(ctx context.Context, mode Mode) ([]conversation.Entry, bool, error) {
	if !mode.unread {
		limit := mode.n
		if limit <= 0 {
			limit = ds.cfg.PageSize
		}
		page, err := ds.source.Entries(ctx, ds.key, nil, limit)
		if err != nil {
			return nil, false, err
		}
		return page, len(page) < limit, nil
	}

	unread, err := ds.source.UnreadCount(ctx, ds.key)
	if err != nil {
		return nil, false, err
	}
	if unread == 0 {
		return ds.fetch(ctx, Newest(max(ds.cfg.PageSize, mode.n)))
	}

	// Walk back page by page until every unread entry and the requested
	// overhead of read entries before the oldest of them are loaded.
	var all []conversation.Entry
	var before *conversation.Position
	complete := false
	for {
		page, err := ds.source.Entries(ctx, ds.key, before, ds.cfg.PageSize)
		if err != nil {
			return nil, false, err
		}
		all = slices.Concat(page, all)
		complete = len(page) < ds.cfg.PageSize
		if idx, n := oldestUnread(all); (n >= unread && idx >= mode.n) || complete {
			break
		}
		p := all[0].Position()
		before = &p
	}

	idx, n := oldestUnread(all)
	if n == 0 {
		return all, complete, nil
	}
	start := max(0, idx-mode.n)
	if start > 0 {
		complete = false
	}
	window := slices.Clone(all[start:])
	marker := conversation.NewUnreadMarker(ds.key, all[idx].Timestamp, n)
	at := idx - start
	if n == 1 {
		at++
	}
	window = slices.Insert(window, at, marker)
	return window, complete, nil
}

// oldestPosition returns the position of the oldest real entry in the window,
// or nil when it holds none.
func (ds *DataSource) oldestPosition() *conversation.Position {
	for _, e := range ds.entries {
		if !e.IsUnreadMarker() {
			p := e.Position()
			return &p
		}
	}
	return nil
}

func samePosition(a, b *conversation.Position) bool {
	if a == nil || b == nil {
		return a == b
	}
	return comparePositions(*a, *b) == 0
}

// oldestUnread returns the index of the oldest unread entry in an ascending
// slice and the number of unread entries in it.
func oldestUnread(entries []conversation.Entry) (int, int) {
	idx, n := -1, 0
	for i, e := range entries {
		if e.State.IsUnread() {
			if idx < 0 {
				idx = i
			}
			n++
		}
	}
	return idx, n
}
