package datasource

import (
	"context"

	"github.com/matheus3301/siskin/internal/conversation"
)

// Source is the read side of the conversation store seen by a data source.
type Source interface {
	// Entries returns up to limit entries strictly older than before (nil for
	// the newest), in ascending (timestamp, id) order.
	Entries(ctx context.Context, key conversation.Key, before *conversation.Position, limit int) ([]conversation.Entry, error)
	// UnreadCount returns the number of unread incoming entries.
	UnreadCount(ctx context.Context, key conversation.Key) (int, error)
}

// Queue runs functions one at a time on the thread that owns the view.
// Every DataSource method and every Delegate callback runs on it.
type Queue interface {
	Enqueue(fn func())
}

// Delegate receives the row deltas of a data source. Rows are view rows:
// 0 is the newest entry. Every batch of callbacks is bracketed by
// BeginUpdates and EndUpdates, and the row indexes of a batch refer to the
// state after the batch.
type Delegate interface {
	BeginUpdates()
	EndUpdates()
	// ItemsAdded reports inserted rows. initial is true when the whole
	// window was replaced by a load.
	ItemsAdded(rows []int, initial bool)
	ItemsUpdated(rows []int)
	ItemUpdated(row int)
	// ItemsRemoved reports removed rows, indexed before the removal.
	ItemsRemoved(rows []int)
	// ItemsReloaded reports that every row is invalid.
	ItemsReloaded()
}
