package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidKey is returned for conversation keys missing an account or peer.
var ErrInvalidKey = errors.New("invalid conversation key")

// Key identifies one conversation: the local account and the peer's bare JID.
type Key struct {
	Account string `json:"account"`
	JID     string `json:"jid"`
}

// Validate checks that both parts are present and look like bare JIDs.
func (k Key) Validate() error {
	if !isBareJID(k.Account) {
		return fmt.Errorf("%w: account %q", ErrInvalidKey, k.Account)
	}
	if !isBareJID(k.JID) {
		return fmt.Errorf("%w: jid %q", ErrInvalidKey, k.JID)
	}
	return nil
}

func (k Key) String() string {
	return k.Account + "/" + k.JID
}

func isBareJID(s string) bool {
	if s == "" || strings.ContainsAny(s, "/ ") {
		return false
	}
	local, domain, found := strings.Cut(s, "@")
	if !found {
		// Domain-only JIDs (components, servers) are valid.
		return strings.Contains(s, ".")
	}
	return local != "" && domain != ""
}

// Position is an entry's place in the total order of a conversation.
type Position struct {
	Timestamp time.Time `json:"timestamp"`
	ID        int64     `json:"id"`
}

// Less reports whether p sorts before o: older timestamp first, then lower id.
func (p Position) Less(o Position) bool {
	if !p.Timestamp.Equal(o.Timestamp) {
		return p.Timestamp.Before(o.Timestamp)
	}
	return p.ID < o.ID
}
