package conversation

import "time"

// RowFunc returns the entry shown at a row (0 = newest), or false past the end.
type RowFunc func(row int) (Entry, bool)

// MergeFunc decides whether a newer entry may be drawn without its own header
// below an older one.
type MergeFunc func(newer, older Entry) bool

// IsContinuation reports whether the entry at row continues the entry above it
// in time. Only messages, attachments and retractions take part; receipt
// markers and link previews in between are skipped over, anything else breaks
// the run.
func IsContinuation(at RowFunc, row int, mergeable MergeFunc) bool {
	e, ok := at(row)
	if !ok || !mergesWith(e.Payload) {
		return false
	}
	for r := row + 1; ; r++ {
		older, ok := at(r)
		if !ok {
			return false
		}
		switch older.Payload.(type) {
		case ReceiptMarker, LinkPreview:
			continue
		}
		if !mergesWith(older.Payload) {
			return false
		}
		return mergeable(e, older)
	}
}

func mergesWith(p Payload) bool {
	switch p.(type) {
	case Message, Attachment, Retraction:
		return true
	default:
		return false
	}
}

// DefaultMergeable merges entries by the same author, in the same direction,
// with the same audience and encryption, sent less than window apart.
func DefaultMergeable(window time.Duration) MergeFunc {
	return func(newer, older Entry) bool {
		if !newer.Sender.Same(older.Sender) {
			return false
		}
		if newer.State.Direction != older.State.Direction || newer.State.IsError() != older.State.IsError() {
			return false
		}
		if newer.Options.Recipient != older.Options.Recipient || newer.Options.Encryption != older.Options.Encryption {
			return false
		}
		d := newer.Timestamp.Sub(older.Timestamp)
		if d < 0 {
			d = -d
		}
		return d < window
	}
}
