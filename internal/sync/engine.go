package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/store"
	"go.uber.org/zap"
)

// Engine is the single writer of the conversation store. It ingests entries
// handed over by the protocol adapter on "xmpp.*" and applies local
// mutations, publishing a "conversation.*" change after every store write.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to inbound protocol events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe(bus.NamespaceInbound, 256)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.InboundEntry:
		entry, ok := evt.Payload.(*conversation.Entry)
		if !ok {
			return
		}
		if _, err := e.Ingest(ctx, entry); err != nil {
			e.logger.Error("failed to ingest entry", zap.Error(err), zap.String("stanza_id", entry.StanzaID))
		}
	case bus.InboundHistory:
		entries, ok := evt.Payload.([]*conversation.Entry)
		if !ok {
			return
		}
		if n, err := e.IngestHistoryBatch(ctx, entries); err != nil {
			e.logger.Error("failed to ingest history batch", zap.Error(err), zap.Int("count", len(entries)))
		} else {
			e.logger.Info("history batch ingested", zap.Int("entries", len(entries)), zap.Int("created", n))
		}
	}
}

// Ingest stores one entry (idempotent on its stanza id) and publishes
// entry_added for a new entry or entry_updated for a known one. An entry
// without a stanza id gets a random one.
func (e *Engine) Ingest(ctx context.Context, entry *conversation.Entry) (conversation.Entry, error) {
	if entry.StanzaID == "" {
		entry.StanzaID = uuid.NewString()
	}
	id, created, err := e.db.UpsertEntry(ctx, entry)
	if err != nil {
		return conversation.Entry{}, fmt.Errorf("upsert entry: %w", err)
	}
	stored, err := e.db.GetEntry(ctx, entry.Key, id)
	if err != nil {
		return conversation.Entry{}, fmt.Errorf("reload entry: %w", err)
	}
	if stored == nil {
		return conversation.Entry{}, fmt.Errorf("entry %d: %w", id, store.ErrEntryNotFound)
	}

	kind := bus.EntryUpdated
	if created {
		kind = bus.EntryAdded
	}
	e.bus.Emit(kind, conversation.Change{Key: stored.Key, Entry: stored})
	return *stored, nil
}

// IngestHistoryBatch stores a batch of archived entries in one transaction.
// History lands anywhere in the timeline, so each touched conversation gets a
// single history_reset instead of per-entry changes. Returns the number of
// entries that were new.
func (e *Engine) IngestHistoryBatch(ctx context.Context, entries []*conversation.Entry) (int, error) {
	for _, entry := range entries {
		if entry.StanzaID == "" {
			entry.StanzaID = uuid.NewString()
		}
	}
	results, err := e.db.UpsertEntries(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("upsert batch: %w", err)
	}

	created := 0
	var touched []conversation.Key
	seen := make(map[conversation.Key]bool)
	for i, r := range results {
		if !r.Created {
			continue
		}
		created++
		if k := entries[i].Key; !seen[k] {
			seen[k] = true
			touched = append(touched, k)
		}
	}
	for _, k := range touched {
		e.bus.Emit(bus.HistoryReset, conversation.Change{Key: k})
	}
	return created, nil
}

// UpdateState replaces the delivery/read state of an entry.
func (e *Engine) UpdateState(ctx context.Context, key conversation.Key, id int64, state conversation.State) error {
	if err := e.db.UpdateEntryState(ctx, key, id, state); err != nil {
		return err
	}
	return e.publishUpdated(ctx, key, id)
}

// Retract replaces an entry's content with a retraction. The entry stays in
// the log at the same position.
func (e *Engine) Retract(ctx context.Context, key conversation.Key, id int64) error {
	if err := e.db.RetractEntry(ctx, key, id); err != nil {
		return err
	}
	return e.publishUpdated(ctx, key, id)
}

// Remove deletes an entry from the local history.
func (e *Engine) Remove(ctx context.Context, key conversation.Key, id int64) error {
	if err := e.db.DeleteEntry(ctx, key, id); err != nil {
		return err
	}
	e.bus.Emit(bus.EntryRemoved, conversation.Change{Key: key, ID: id})
	return nil
}

// Purge removes the whole local history of a conversation.
func (e *Engine) Purge(ctx context.Context, key conversation.Key) (int64, error) {
	n, err := e.db.PurgeHistory(ctx, key)
	if err != nil {
		return 0, err
	}
	e.bus.Emit(bus.HistoryReset, conversation.Change{Key: key})
	e.logger.Info("history purged", zap.Stringer("conversation", key), zap.Int64("entries", n))
	return n, nil
}

// MarkAsRead marks incoming entries up to and including before as read. A
// read change is published only when something changed.
func (e *Engine) MarkAsRead(ctx context.Context, key conversation.Key, before time.Time) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	n, err := e.db.MarkAsRead(ctx, key, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.bus.Emit(bus.Read, conversation.Change{Key: key, Before: before})
		e.logger.Debug("marked as read", zap.Stringer("conversation", key), zap.Time("before", before), zap.Int64("entries", n))
	}
	return n, nil
}

func (e *Engine) publishUpdated(ctx context.Context, key conversation.Key, id int64) error {
	stored, err := e.db.GetEntry(ctx, key, id)
	if err != nil {
		return fmt.Errorf("reload entry: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("entry %d: %w", id, store.ErrEntryNotFound)
	}
	e.bus.Emit(bus.EntryUpdated, conversation.Change{Key: key, Entry: stored})
	return nil
}
