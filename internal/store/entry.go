package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
)

const entryColumns = `id, account, jid, stanza_id, timestamp, direction, status, error,
	sender_kind, sender_jid, sender_nickname, sender_occupant_id,
	payload_kind, payload, recipient_private, recipient_nickname, encryption, markable`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (conversation.Entry, error) {
	var (
		e       conversation.Entry
		ts      int64
		kind    string
		payload []byte
	)
	if err := s.Scan(
		&e.ID, &e.Key.Account, &e.Key.JID, &e.StanzaID, &ts,
		&e.State.Direction, &e.State.Status, &e.State.Error,
		&e.Sender.Kind, &e.Sender.JID, &e.Sender.Nickname, &e.Sender.OccupantID,
		&kind, &payload,
		&e.Options.Recipient.Private, &e.Options.Recipient.Nickname, &e.Options.Encryption, &e.Options.Markable,
	); err != nil {
		return conversation.Entry{}, err
	}
	p, err := conversation.DecodePayload(conversation.PayloadKind(kind), payload)
	if err != nil {
		return conversation.Entry{}, err
	}
	e.Timestamp = fromMillis(ts)
	e.Payload = p
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]conversation.Entry, error) {
	defer func() { _ = rows.Close() }()
	var out []conversation.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertEntry stores an entry, idempotent on (account, jid, stanza_id). The
// owning conversation is created on first use. An existing entry keeps its
// timestamp, and an incoming entry already read is never made unread again.
// Returns the entry id and whether a new row was inserted.
func (db *DB) UpsertEntry(ctx context.Context, e *conversation.Entry) (int64, bool, error) {
	var id int64
	var created bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, created, err = upsertEntry(ctx, tx, e, time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

// UpsertResult reports the outcome of one entry of a batch upsert.
type UpsertResult struct {
	ID      int64
	Created bool
}

// UpsertEntries stores a batch of entries in a single transaction. Either all
// entries are stored or none is.
func (db *DB) UpsertEntries(ctx context.Context, entries []*conversation.Entry) ([]UpsertResult, error) {
	out := make([]UpsertResult, 0, len(entries))
	now := time.Now().UnixMilli()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			id, created, err := upsertEntry(ctx, tx, e, now)
			if err != nil {
				return fmt.Errorf("entry %q: %w", e.StanzaID, err)
			}
			out = append(out, UpsertResult{ID: id, Created: created})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, e *conversation.Entry, now int64) (int64, bool, error) {
	if err := e.Key.Validate(); err != nil {
		return 0, false, err
	}
	if e.StanzaID == "" {
		return 0, false, fmt.Errorf("upsert entry: empty stanza id")
	}
	if e.IsUnreadMarker() {
		return 0, false, fmt.Errorf("upsert entry: unread marker is not persisted")
	}
	kind, payload, err := conversation.EncodePayload(e.Payload)
	if err != nil {
		return 0, false, err
	}
	body := conversation.Body(e.Payload)
	ts := toMillis(e.Timestamp)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (account, jid, last_activity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, jid) DO UPDATE SET
			last_activity = MAX(conversations.last_activity, excluded.last_activity),
			updated_at = excluded.updated_at`,
		e.Key.Account, e.Key.JID, ts, now, now); err != nil {
		return 0, false, fmt.Errorf("ensure conversation: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM entries WHERE account = ? AND jid = ? AND stanza_id = ?`,
		e.Key.Account, e.Key.JID, e.StanzaID).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO entries (account, jid, stanza_id, timestamp, direction, status, error,
				sender_kind, sender_jid, sender_nickname, sender_occupant_id,
				payload_kind, payload, body, recipient_private, recipient_nickname, encryption, markable, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Key.Account, e.Key.JID, e.StanzaID, ts, e.State.Direction, e.State.Status, e.State.Error,
			e.Sender.Kind, e.Sender.JID, e.Sender.Nickname, e.Sender.OccupantID,
			string(kind), payload, body,
			e.Options.Recipient.Private, e.Options.Recipient.Nickname, e.Options.Encryption, e.Options.Markable, now)
		if err != nil {
			return 0, false, fmt.Errorf("insert entry: %w", err)
		}
		id, err = res.LastInsertId()
		return id, true, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE entries SET
			status = CASE WHEN direction = 1 AND status = ? THEN status ELSE ? END,
			error = ?,
			sender_nickname = ?,
			payload_kind = ?,
			payload = ?,
			body = ?,
			encryption = ?,
			markable = ?
		WHERE id = ?`,
		conversation.Read, e.State.Status, e.State.Error, e.Sender.Nickname,
		string(kind), payload, body, e.Options.Encryption, e.Options.Markable, id)
	if err != nil {
		return 0, false, fmt.Errorf("update entry: %w", err)
	}
	return id, false, nil
}

// GetEntry returns one entry, or nil if it does not exist.
func (db *DB) GetEntry(ctx context.Context, key conversation.Key, id int64) (*conversation.Entry, error) {
	e, err := scanEntry(db.QueryRowContext(ctx, `SELECT `+entryColumns+`
		FROM entries WHERE account = ? AND jid = ? AND id = ?`, key.Account, key.JID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Entries returns up to limit entries strictly older than before (nil means
// from the newest), in ascending (timestamp, id) order. This is keyset
// pagination towards older history.
func (db *DB) Entries(ctx context.Context, key conversation.Key, before *conversation.Position, limit int) ([]conversation.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + entryColumns + ` FROM entries WHERE account = ? AND jid = ?`
	args := []any{key.Account, key.JID}
	if before != nil {
		ts := toMillis(before.Timestamp)
		q += ` AND (timestamp < ? OR (timestamp = ? AND id < ?))`
		args = append(args, ts, ts, before.ID)
	}
	q += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

// CountEntries returns the number of stored entries of a conversation.
func (db *DB) CountEntries(ctx context.Context, key conversation.Key) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE account = ? AND jid = ?`,
		key.Account, key.JID).Scan(&n)
	return n, err
}

// UpdateEntryState replaces the delivery/read state of an entry.
func (db *DB) UpdateEntryState(ctx context.Context, key conversation.Key, id int64, state conversation.State) error {
	res, err := db.ExecContext(ctx, `
		UPDATE entries SET direction = ?, status = ?, error = ?
		WHERE account = ? AND jid = ? AND id = ?`,
		state.Direction, state.Status, state.Error, key.Account, key.JID, id)
	if err != nil {
		return fmt.Errorf("update entry state: %w", err)
	}
	return expectOne(res, id)
}

// RetractEntry turns an entry into a retraction in place. The row keeps its
// id and position; its content and searchable body are dropped.
func (db *DB) RetractEntry(ctx context.Context, key conversation.Key, id int64) error {
	kind, payload, err := conversation.EncodePayload(conversation.Retraction{})
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE entries SET payload_kind = ?, payload = ?, body = ''
		WHERE account = ? AND jid = ? AND id = ?`,
		string(kind), payload, key.Account, key.JID, id)
	if err != nil {
		return fmt.Errorf("retract entry: %w", err)
	}
	return expectOne(res, id)
}

// DeleteEntry removes an entry from the local history.
func (db *DB) DeleteEntry(ctx context.Context, key conversation.Key, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM entries WHERE account = ? AND jid = ? AND id = ?`,
		key.Account, key.JID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return expectOne(res, id)
}

// PurgeHistory removes all entries of a conversation and returns how many were deleted.
func (db *DB) PurgeHistory(ctx context.Context, key conversation.Key) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM entries WHERE account = ? AND jid = ?`, key.Account, key.JID)
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, ErrEntryNotFound)
	}
	return nil
}
