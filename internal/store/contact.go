package store

import (
	"context"
	"database/sql"
	"time"
)

// UpsertContact inserts or updates a roster item. Empty fields keep stored values.
func (db *DB) UpsertContact(ctx context.Context, c *Contact) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO contacts (account, jid, name, avatar_hash, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, jid) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			avatar_hash = CASE WHEN excluded.avatar_hash != '' THEN excluded.avatar_hash ELSE contacts.avatar_hash END,
			updated_at = excluded.updated_at`,
		c.Account, c.JID, c.Name, c.AvatarHash, time.Now().UnixMilli())
	return err
}

// GetContact returns a roster item, or nil if the JID is not in the roster.
func (db *DB) GetContact(ctx context.Context, account, jid string) (*Contact, error) {
	var c Contact
	err := db.QueryRowContext(ctx, `SELECT account, jid, name, avatar_hash FROM contacts WHERE account = ? AND jid = ?`,
		account, jid).Scan(&c.Account, &c.JID, &c.Name, &c.AvatarHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
