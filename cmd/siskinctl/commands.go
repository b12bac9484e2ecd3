package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/roster"
	"github.com/matheus3301/siskin/internal/rpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

var errUsage = errors.New("invalid arguments")

func usageError(name string) error {
	for _, u := range usages {
		if u.name == name {
			return fmt.Errorf("%w, usage: siskinctl %s", errUsage, u.usage)
		}
	}
	return errUsage
}

// resolveAccount returns the account to act as, asking the daemon when
// neither the flag nor the config names one.
func (c *cli) resolveAccount(ctx context.Context) (string, error) {
	if c.account != "" {
		return c.account, nil
	}
	st, err := c.client.Status(ctx, false)
	if err != nil {
		return "", err
	}
	if st.Account == "" {
		return "", errors.New("no account configured; pass --account or set account in config.toml")
	}
	c.account = st.Account
	return c.account, nil
}

func (c *cli) key(ctx context.Context, jid string) (conversation.Key, error) {
	account, err := c.resolveAccount(ctx)
	if err != nil {
		return conversation.Key{}, err
	}
	key := conversation.Key{Account: account, JID: jid}
	return key, key.Validate()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry id %q", s)
	}
	return id, nil
}

// cmdStatus fetches the daemon status and the conversation list concurrently.
func cmdStatus(ctx context.Context, c *cli, _ []string) error {
	var (
		st    *rpc.GetStatusResponse
		convs *rpc.ListConversationsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st, err = c.client.Status(gctx, false)
		return err
	})
	g.Go(func() error {
		account, err := c.resolveAccount(gctx)
		if err != nil {
			return err
		}
		convs, err = c.client.Conversations.ListConversations(gctx, &rpc.ListConversationsRequest{Account: account, Limit: 1000})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	unread := 0
	for _, conv := range convs.Conversations {
		unread += conv.UnreadCount
	}
	if c.json {
		outputJSON(struct {
			*rpc.GetStatusResponse
			Unread int `json:"unread"`
		}{st, unread})
		return nil
	}
	fmt.Printf("Profile:       %s\n", st.Profile)
	fmt.Printf("Account:       %s\n", st.Account)
	fmt.Printf("PID:           %d\n", st.PID)
	fmt.Printf("Uptime:        %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
	fmt.Printf("Conversations: %d\n", st.ConversationCount)
	fmt.Printf("Unread:        %d\n", unread)
	fmt.Printf("Schema:        v%d\n", st.SchemaVersion)
	if st.DroppedEvents > 0 {
		fmt.Printf("Dropped:       %d events\n", st.DroppedEvents)
	}
	return nil
}

func cmdConversations(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("conversations", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "maximum number of conversations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	account, err := c.resolveAccount(ctx)
	if err != nil {
		return err
	}
	resp, err := c.client.Conversations.ListConversations(ctx, &rpc.ListConversationsRequest{Account: account, Limit: *limit})
	if err != nil {
		return err
	}
	if c.json {
		outputJSON(resp)
		return nil
	}
	if len(resp.Conversations) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}
	for _, conv := range resp.Conversations {
		last := ""
		if conv.LastActivityMs > 0 {
			last = rpc.FromMillis(conv.LastActivityMs).Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-30s %-24s %4d unread  %s\n", conv.Key.JID, conv.Name, conv.UnreadCount, last)
	}
	if resp.HasMore {
		fmt.Println("...")
	}
	return nil
}

func cmdUnread(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return usageError("unread")
	}
	key, err := c.key(ctx, args[0])
	if err != nil {
		return err
	}
	n, err := c.client.UnreadCount(ctx, key)
	if err != nil {
		return err
	}
	if c.json {
		outputJSON(rpc.UnreadCountResponse{Count: n})
		return nil
	}
	fmt.Println(n)
	return nil
}

func cmdMarkRead(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("mark-read", flag.ContinueOnError)
	before := fs.String("before", "", "mark entries up to this RFC3339 time (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("mark-read")
	}
	key, err := c.key(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	ts := time.Now()
	if *before != "" {
		if ts, err = time.Parse(time.RFC3339, *before); err != nil {
			return fmt.Errorf("parse --before: %w", err)
		}
	}
	resp, err := c.client.Conversations.MarkRead(ctx, &rpc.MarkReadRequest{Key: key, BeforeMs: rpc.ToMillis(ts)})
	if err != nil {
		return err
	}
	if c.json {
		outputJSON(resp)
		return nil
	}
	fmt.Printf("Marked %d entries as read\n", resp.Marked)
	return nil
}

// cmdPost injects an entry the way the protocol adapter would: incoming and
// unread from the conversation's JID unless --outgoing is set.
func cmdPost(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	outgoing := fs.Bool("outgoing", false, "post as sent by the account")
	from := fs.String("from", "", "sender JID of an incoming entry (default: the conversation JID)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageError("post")
	}
	key, err := c.key(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	e := conversation.Entry{
		Key:       key,
		Timestamp: time.Now(),
		Payload:   conversation.Message{Body: fs.Arg(1)},
		Options:   conversation.Options{Markable: true},
	}
	if *outgoing {
		e.State = conversation.State{Direction: conversation.Outgoing, Status: conversation.Sent}
		e.Sender = conversation.Sender{Kind: conversation.SenderMe, JID: key.Account}
	} else {
		jid := *from
		if jid == "" {
			jid = key.JID
		}
		e.State = conversation.State{Direction: conversation.Incoming, Status: conversation.Unread}
		e.Sender = conversation.Sender{Kind: conversation.SenderBuddy, JID: jid}
	}

	stored, err := c.client.Post(ctx, e)
	if err != nil {
		return err
	}
	if c.json {
		w, err := rpc.EntryToWire(stored)
		if err != nil {
			return err
		}
		outputJSON(w)
		return nil
	}
	fmt.Printf("Posted entry %d (%s)\n", stored.ID, stored.StanzaID)
	return nil
}

func cmdRetract(ctx context.Context, c *cli, args []string) error {
	return entryCommand(ctx, c, "retract", args, c.client.Conversations.RetractEntry)
}

func cmdDelete(ctx context.Context, c *cli, args []string) error {
	return entryCommand(ctx, c, "delete", args, c.client.Conversations.DeleteEntry)
}

func entryCommand(ctx context.Context, c *cli, name string, args []string,
	call func(context.Context, *rpc.EntryRequest, ...grpc.CallOption) (*rpc.Empty, error)) error {
	if len(args) != 2 {
		return usageError(name)
	}
	key, err := c.key(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	if _, err := call(ctx, &rpc.EntryRequest{Key: key, ID: id}); err != nil {
		return err
	}
	if !c.json {
		fmt.Printf("%s: entry %d done\n", name, id)
	}
	return nil
}

func cmdPurge(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return usageError("purge")
	}
	key, err := c.key(ctx, args[0])
	if err != nil {
		return err
	}
	resp, err := c.client.Conversations.PurgeHistory(ctx, &rpc.PurgeHistoryRequest{Key: key})
	if err != nil {
		return err
	}
	if c.json {
		outputJSON(resp)
		return nil
	}
	fmt.Printf("Purged %d entries\n", resp.Deleted)
	return nil
}

func cmdSearch(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	jid := fs.String("jid", "", "restrict the search to one conversation")
	limit := fs.Int("limit", 20, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("search")
	}
	req := &rpc.SearchRequest{Query: fs.Arg(0), Limit: *limit}
	if *jid != "" {
		key, err := c.key(ctx, *jid)
		if err != nil {
			return err
		}
		req.Key = &key
	}
	resp, err := c.client.Conversations.Search(ctx, req)
	if err != nil {
		return err
	}
	if c.json {
		outputJSON(resp)
		return nil
	}
	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for _, r := range resp.Results {
		if r.Entry == nil {
			continue
		}
		ts := rpc.FromMillis(r.Entry.TimestampMs).Local().Format("2006-01-02 15:04")
		fmt.Printf("%s  %-24s #%-6d %s\n", ts, r.Entry.Key.JID, r.Entry.ID, r.Snippet)
	}
	return nil
}

func cmdContact(ctx context.Context, c *cli, args []string) error {
	if len(args) < 2 {
		return usageError("contact")
	}
	account, err := c.resolveAccount(ctx)
	if err != nil {
		return err
	}
	switch {
	case args[0] == "get" && len(args) == 2:
		resp, err := c.client.Conversations.GetContact(ctx, &rpc.GetContactRequest{Account: account, JID: args[1]})
		if err != nil {
			return err
		}
		if c.json {
			outputJSON(resp)
			return nil
		}
		if resp.Contact == nil {
			fmt.Println("Not in roster.")
			return nil
		}
		fmt.Printf("%s  %s\n", resp.Contact.JID, resp.Contact.Name)
		return nil
	case args[0] == "set" && len(args) == 3:
		contact := roster.Contact{Account: account, JID: args[1], Name: args[2]}
		if _, err := c.client.Conversations.SetContact(ctx, &rpc.SetContactRequest{Contact: contact}); err != nil {
			return err
		}
		if !c.json {
			fmt.Printf("Contact %s saved\n", args[1])
		}
		return nil
	default:
		return usageError("contact")
	}
}
