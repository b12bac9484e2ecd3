package roster

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of identities kept in memory.
const DefaultCacheSize = 512

// Contact is what the roster knows about one JID of an account. It is also
// the payload of roster.contact_changed events.
type Contact struct {
	Account    string `json:"account"`
	JID        string `json:"jid"`
	Name       string `json:"name"`
	AvatarHash string `json:"avatar_hash,omitempty"`
}

// Source looks up roster items. It returns nil for a JID not in the roster.
type Source interface {
	Contact(ctx context.Context, account, jid string) (*Contact, error)
}

// Directory resolves entry senders to display names and avatars for one
// account. Results are kept in a bounded LRU keyed by the sender's identity
// string; concurrent misses for one identity share a single lookup.
type Directory struct {
	account string
	source  Source
	cache   *lru.Cache[string, Contact]
	group   singleflight.Group
	bus     *bus.Bus
	logger  *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a directory. A non-positive size selects DefaultCacheSize.
func New(account string, source Source, size int, b *bus.Bus, logger *zap.Logger) (*Directory, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, Contact](size)
	if err != nil {
		return nil, fmt.Errorf("roster cache: %w", err)
	}
	return &Directory{
		account: account,
		source:  source,
		cache:   cache,
		bus:     b,
		logger:  logger,
	}, nil
}

// Start evicts identities whose roster item changed, until ctx is done or
// Close is called.
func (d *Directory) Start(ctx context.Context) {
	if d.bus == nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	ch, unsub := d.bus.Subscribe(bus.NamespaceRoster, 64)

	go func() {
		defer close(d.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c, ok := evt.Payload.(Contact)
				if !ok || evt.Kind != bus.ContactChanged || c.Account != d.account {
					continue
				}
				d.cache.Remove(buddyRef(c.JID))
				if c.JID == d.account {
					d.cache.Remove(selfRef(c.JID))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops following roster changes.
func (d *Directory) Close() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
}

// Get returns the cached contact for an identity string.
func (d *Directory) Get(ref string) (Contact, bool) {
	return d.cache.Get(ref)
}

// Set stores a contact for an identity string.
func (d *Directory) Set(ref string, c Contact) {
	d.cache.Add(ref, c)
}

// EvictAll empties the cache.
func (d *Directory) EvictAll() {
	d.cache.Purge()
}

// Len returns the number of cached identities.
func (d *Directory) Len() int {
	return d.cache.Len()
}

// Lookup resolves the sender of an entry. Occupants that carry a nickname
// are named by it without a roster lookup. A failed lookup falls back to the
// sender's own nickname and is not cached.
func (d *Directory) Lookup(ctx context.Context, s conversation.Sender) Contact {
	ref := s.AvatarRef()
	fallback := Contact{Account: d.account, JID: s.JID, Name: s.Nick()}
	if ref == "" {
		return fallback
	}
	if c, ok := d.cache.Get(ref); ok {
		return c
	}

	jid := s.JID
	if s.Kind == conversation.SenderMe && jid == "" {
		jid = d.account
	}
	if jid == "" || (s.Kind == conversation.SenderOccupant || s.Kind == conversation.SenderParticipant) && s.Nickname != "" {
		d.cache.Add(ref, fallback)
		return fallback
	}

	v, err, _ := d.group.Do(ref, func() (any, error) {
		c, err := d.source.Contact(ctx, d.account, jid)
		if err != nil {
			return nil, err
		}
		resolved := fallback
		resolved.JID = jid
		if c != nil {
			resolved.AvatarHash = c.AvatarHash
			if c.Name != "" {
				resolved.Name = c.Name
			}
		}
		d.cache.Add(ref, resolved)
		return resolved, nil
	})
	if err != nil {
		d.logger.Debug("contact lookup failed", zap.String("jid", jid), zap.Error(err))
		return fallback
	}
	return v.(Contact)
}

func buddyRef(jid string) string {
	return conversation.Sender{Kind: conversation.SenderBuddy, JID: jid}.AvatarRef()
}

func selfRef(jid string) string {
	return conversation.Sender{Kind: conversation.SenderMe, JID: jid}.AvatarRef()
}
