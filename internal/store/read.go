package store

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
)

// MarkAsRead marks every unread incoming entry with a timestamp at or before
// the given time as read. Repeating the call, or calling it with an earlier
// time, changes nothing. Returns the number of entries that changed.
func (db *DB) MarkAsRead(ctx context.Context, key conversation.Key, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE entries SET status = ?
		WHERE account = ? AND jid = ? AND direction = ? AND status = ? AND timestamp <= ?`,
		conversation.Read, key.Account, key.JID, conversation.Incoming, conversation.Unread, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("mark as read: %w", err)
	}
	return res.RowsAffected()
}

// UnreadCount returns the number of unread incoming entries of a conversation.
func (db *DB) UnreadCount(ctx context.Context, key conversation.Key) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entries
		WHERE account = ? AND jid = ? AND direction = ? AND status = ?`,
		key.Account, key.JID, conversation.Incoming, conversation.Unread).Scan(&n)
	return n, err
}
