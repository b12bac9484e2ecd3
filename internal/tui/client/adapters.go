package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/roster"
	"github.com/matheus3301/siskin/internal/rpc"
)

// Entries implements datasource.Source.
func (c *Client) Entries(ctx context.Context, key conversation.Key, before *conversation.Position, limit int) ([]conversation.Entry, error) {
	resp, err := c.Conversations.ListEntries(ctx, &rpc.ListEntriesRequest{
		Key:    key,
		Before: rpc.PositionToWire(before),
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]conversation.Entry, 0, len(resp.Entries))
	for _, w := range resp.Entries {
		e, err := rpc.EntryFromWire(w)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", w.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// UnreadCount implements datasource.Source.
func (c *Client) UnreadCount(ctx context.Context, key conversation.Key) (int, error) {
	resp, err := c.Conversations.UnreadCount(ctx, &rpc.UnreadCountRequest{Key: key})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkAsRead implements readtracker.Marker.
func (c *Client) MarkAsRead(ctx context.Context, key conversation.Key, before time.Time) error {
	_, err := c.Conversations.MarkRead(ctx, &rpc.MarkReadRequest{Key: key, BeforeMs: rpc.ToMillis(before)})
	return err
}

// Contact implements roster.Source.
func (c *Client) Contact(ctx context.Context, account, jid string) (*roster.Contact, error) {
	resp, err := c.Conversations.GetContact(ctx, &rpc.GetContactRequest{Account: account, JID: jid})
	if err != nil {
		return nil, err
	}
	return resp.Contact, nil
}

// Watch streams the daemon's changes to key and republishes them on the
// local bus, so data sources and roster directories in this process see
// them as if they were local. ready, if set, is called once the stream is
// live. Watch blocks until ctx is done or the stream fails.
func (c *Client) Watch(ctx context.Context, key conversation.Key, b *bus.Bus, ready func()) error {
	stream, err := c.Conversations.WatchConversation(ctx, &rpc.WatchConversationRequest{Key: key})
	if err != nil {
		return fmt.Errorf("watch %s: %w", key, err)
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch %s: %w", key, err)
		}
		if evt.Kind == rpc.WatchEventStarted {
			if ready != nil {
				ready()
			}
			continue
		}
		local, ok, err := fromWatchEvent(evt)
		if err != nil {
			return fmt.Errorf("watch %s: %w", key, err)
		}
		if ok {
			b.Publish(local)
		}
	}
}

func fromWatchEvent(evt *rpc.WatchEvent) (bus.Event, bool, error) {
	out := bus.Event{
		Kind:      bus.Kind(evt.Kind),
		Timestamp: time.UnixMilli(evt.OccurredAtUnixMs),
	}
	switch {
	case strings.HasPrefix(evt.Kind, bus.NamespaceConversation):
		change := conversation.Change{
			Key:    evt.Key,
			ID:     evt.ID,
			Before: rpc.FromMillis(evt.BeforeMs),
		}
		if evt.Entry != nil {
			e, err := rpc.EntryFromWire(evt.Entry)
			if err != nil {
				return bus.Event{}, false, err
			}
			change.Entry = &e
		}
		out.Payload = change
	case strings.HasPrefix(evt.Kind, bus.NamespaceRoster):
		if evt.Contact == nil {
			return bus.Event{}, false, nil
		}
		out.Payload = *evt.Contact
	default:
		return bus.Event{}, false, nil
	}
	return out, true, nil
}

// Post stores an entry through the daemon and returns it as stored.
func (c *Client) Post(ctx context.Context, e conversation.Entry) (conversation.Entry, error) {
	w, err := rpc.EntryToWire(e)
	if err != nil {
		return conversation.Entry{}, err
	}
	resp, err := c.Conversations.PostEntry(ctx, &rpc.PostEntryRequest{Entry: w})
	if err != nil {
		return conversation.Entry{}, err
	}
	return rpc.EntryFromWire(resp.Entry)
}
