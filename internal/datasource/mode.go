package datasource

import "fmt"

// Mode selects how LoadItems seeds the window.
type Mode struct {
	unread bool
	n      int
}

// Unread loads every unread entry plus overhead already-read entries before
// them as context, with an unread marker at the boundary. Without unread
// entries it loads the newest page.
func Unread(overhead int) Mode {
	return Mode{unread: true, n: max(overhead, 0)}
}

// Newest loads the newest limit entries. A non-positive limit means one page.
func Newest(limit int) Mode {
	return Mode{n: limit}
}

func (m Mode) String() string {
	if m.unread {
		return fmt.Sprintf("unread(overhead=%d)", m.n)
	}
	return fmt.Sprintf("newest(limit=%d)", m.n)
}
