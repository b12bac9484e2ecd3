package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
)

// UpsertConversation inserts a conversation or refreshes its name and activity.
// An empty name keeps the stored one; activity never moves backwards.
func (db *DB) UpsertConversation(ctx context.Context, c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO conversations (account, jid, name, last_activity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, jid) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE conversations.name END,
			last_activity = MAX(conversations.last_activity, excluded.last_activity),
			updated_at = excluded.updated_at`,
		c.Key.Account, c.Key.JID, c.Name, toMillis(c.LastActivity), now, now)
	return err
}

const conversationSelect = `
	SELECT c.account, c.jid,
		COALESCE(NULLIF(c.name,''), NULLIF(ct.name,''), c.jid) AS display_name,
		c.last_activity,
		(SELECT COUNT(*) FROM entries e
			WHERE e.account = c.account AND e.jid = c.jid AND e.direction = 1 AND e.status = 1) AS unread
	FROM conversations c
	LEFT JOIN contacts ct ON c.account = ct.account AND c.jid = ct.jid`

// ListConversations returns an account's conversations, most recently active first.
// Names fall back from conversation name to roster name to the JID.
func (db *DB) ListConversations(ctx context.Context, account string, limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, conversationSelect+`
		WHERE c.account = ?
		ORDER BY c.last_activity DESC, c.jid
		LIMIT ? OFFSET ?`, account, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation returns one conversation, or nil if it does not exist.
func (db *DB) GetConversation(ctx context.Context, key conversation.Key) (*Conversation, error) {
	c, err := scanConversation(db.QueryRowContext(ctx, conversationSelect+`
		WHERE c.account = ? AND c.jid = ?`, key.Account, key.JID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanConversation(s scanner) (Conversation, error) {
	var c Conversation
	var last int64
	if err := s.Scan(&c.Key.Account, &c.Key.JID, &c.Name, &last, &c.UnreadCount); err != nil {
		return Conversation{}, err
	}
	c.LastActivity = fromMillis(last)
	return c, nil
}

// ConversationCount returns the number of conversations of an account.
func (db *DB) ConversationCount(ctx context.Context, account string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE account = ?`, account).Scan(&n)
	return n, err
}
