package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/siskin/internal/conversation"
)

// SearchEntries runs a full-text query over entry bodies, newest first. A
// non-nil key restricts the search to one conversation.
func (db *DB) SearchEntries(ctx context.Context, query string, key *conversation.Key, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + qualify(entryColumns) + `, snippet(entries_fts, '<<', '>>', '...')
		FROM entries_fts
		JOIN entries e ON e.id = entries_fts.docid
		WHERE entries_fts MATCH ?`
	args := []any{query}
	if key != nil {
		q += ` AND e.account = ? AND e.jid = ?`
		args = append(args, key.Account, key.JID)
	}
	q += ` ORDER BY e.timestamp DESC, e.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var snippet string
		e, err := scanEntry(snippetScanner{rows: rows, snippet: &snippet})
		if err != nil {
			return nil, err
		}
		r.Entry = e
		r.Snippet = snippet
		out = append(out, r)
	}
	return out, rows.Err()
}

// qualify prefixes every column of entryColumns with the entries alias.
func qualify(cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = "e." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// snippetScanner appends the snippet column to an entry scan.
type snippetScanner struct {
	rows    scanner
	snippet *string
}

func (s snippetScanner) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.snippet)...)
}
