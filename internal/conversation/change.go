package conversation

import "time"

// Change describes a mutation of a conversation log after it has been stored.
// Which fields are set depends on the event kind carrying it: Entry for added
// and updated entries, ID for removals, Before for read-up-to.
type Change struct {
	Key    Key       `json:"key"`
	Entry  *Entry    `json:"entry,omitempty"`
	ID     int64     `json:"id,omitempty"`
	Before time.Time `json:"before,omitempty"`
}
