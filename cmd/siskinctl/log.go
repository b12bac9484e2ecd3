package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/datasource"
	"github.com/matheus3301/siskin/internal/rpc"
	"golang.org/x/sync/errgroup"
)

// batchWaiter is a data source delegate that signals every finished batch.
type batchWaiter struct {
	done chan struct{}
}

func (w *batchWaiter) BeginUpdates() {}
func (w *batchWaiter) EndUpdates() {
	select {
	case w.done <- struct{}{}:
	default:
	}
}
func (w *batchWaiter) ItemsAdded([]int, bool) {}
func (w *batchWaiter) ItemsUpdated([]int)     {}
func (w *batchWaiter) ItemUpdated(int)        {}
func (w *batchWaiter) ItemsRemoved([]int)     {}
func (w *batchWaiter) ItemsReloaded()         {}

func (w *batchWaiter) wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cmdLog prints a conversation the way the TUI windows it: unread entries
// with some context and the unread separator, or the newest N entries.
func cmdLog(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	newest := fs.Int("newest", 0, "load the newest N entries instead of the unread window")
	pages := fs.Int("pages", 0, "additionally load up to N pages of older history")
	copyOut := fs.Bool("copy", false, "print as plain copy text, without the unread separator")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("log")
	}
	key, err := c.key(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	// Surface connection errors up front; the data source only logs them.
	var unread int
	var name string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		unread, err = c.client.UnreadCount(gctx, key)
		return err
	})
	g.Go(func() error {
		resp, err := c.client.Conversations.ListConversations(gctx, &rpc.ListConversationsRequest{Account: key.Account, Limit: 1000})
		if err != nil {
			return err
		}
		for _, conv := range resp.Conversations {
			if conv.Key == key {
				name = conv.Name
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	conv := c.cfg.Conversation
	q := datasource.NewSerialQueue()
	defer q.Close()
	waiter := &batchWaiter{done: make(chan struct{}, 1)}
	ds := datasource.New(key, c.client, q, waiter, nil, datasource.Config{
		PageSize:   conv.PageSize,
		WindowSize: conv.WindowSize,
		Mergeable:  conversation.DefaultMergeable(conv.MergeWindow.Duration),
	}, nil)
	defer ds.Close()

	mode := datasource.Unread(conv.UnreadOverhead)
	if *newest > 0 {
		mode = datasource.Newest(*newest)
	}
	q.Do(func() { ds.LoadItems(ctx, mode) })
	if err := waiter.wait(ctx); err != nil {
		return err
	}
	for i := 0; i < *pages; i++ {
		var complete bool
		q.Do(func() {
			complete = ds.Complete()
			if !complete {
				ds.LoadMore(ctx, 0)
			}
		})
		if complete {
			break
		}
		if err := waiter.wait(ctx); err != nil {
			return err
		}
	}

	var entries []conversation.Entry
	var copyText string
	q.Do(func() {
		n := ds.Count()
		rows := make([]int, 0, n)
		for row := n - 1; row >= 0; row-- {
			e, _ := ds.Item(row)
			entries = append(entries, e)
			rows = append(rows, row)
		}
		copyText = ds.CopyText(rows)
	})

	switch {
	case c.json:
		wire, err := rpc.EntriesToWire(entries)
		if err != nil {
			return err
		}
		outputJSON(rpc.ListEntriesResponse{Entries: wire})
	case *copyOut:
		fmt.Print(copyText)
	default:
		title := key.JID
		if name != "" {
			title = fmt.Sprintf("%s (%s)", name, key.JID)
		}
		fmt.Printf("%s, %d unread\n\n", title, unread)
		for _, e := range entries {
			fmt.Println(formatLine(e))
		}
	}
	return nil
}

// formatLine renders one entry for the terminal.
func formatLine(e conversation.Entry) string {
	if u, ok := e.Payload.(conversation.UnreadMessages); ok {
		return fmt.Sprintf("-------- %d unread --------", u.Count)
	}
	mark := " "
	if e.State.IsUnread() {
		mark = "*"
	}
	return fmt.Sprintf("%s %s #%-6d %-16s %s", mark, e.Timestamp.Local().Format(time.DateTime), e.ID, e.Sender.Nick(), summary(e))
}

func summary(e conversation.Entry) string {
	switch p := e.Payload.(type) {
	case conversation.Message:
		if p.Corrected {
			return p.Body + " (edited)"
		}
		return p.Body
	case conversation.Retraction:
		return "(retracted)"
	case conversation.Attachment:
		if p.Filename != "" {
			return "[file] " + p.Filename
		}
		return "[file] " + p.URL
	case conversation.LinkPreview:
		return "-> " + p.URL
	case conversation.Location:
		return fmt.Sprintf("[location] geo:%.5f,%.5f", p.Latitude, p.Longitude)
	case conversation.Invitation:
		return "[invite] " + p.URI()
	case conversation.ReceiptMarker:
		return fmt.Sprintf("(%s by %d)", p.Type, len(p.Senders))
	case nil:
		return "(empty)"
	default:
		return fmt.Sprintf("(%s)", p.Kind())
	}
}
