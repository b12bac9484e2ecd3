package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/siskin/internal/config"
	"github.com/matheus3301/siskin/internal/profile"
	"github.com/matheus3301/siskin/internal/tui/client"
)

// cli carries the global flags and the daemon connection to every command.
type cli struct {
	client  *client.Client
	cfg     *config.Config
	account string
	json    bool
}

var commands = map[string]func(ctx context.Context, c *cli, args []string) error{
	"status":        cmdStatus,
	"conversations": cmdConversations,
	"log":           cmdLog,
	"unread":        cmdUnread,
	"mark-read":     cmdMarkRead,
	"post":          cmdPost,
	"retract":       cmdRetract,
	"delete":        cmdDelete,
	"purge":         cmdPurge,
	"search":        cmdSearch,
	"contact":       cmdContact,
}

// usages lists the commands in help order.
var usages = []struct{ name, usage string }{
	{"status", "status"},
	{"conversations", "conversations [--limit N]"},
	{"log", "log <jid> [--newest N] [--pages N] [--copy]"},
	{"unread", "unread <jid>"},
	{"mark-read", "mark-read <jid> [--before RFC3339]"},
	{"post", "post <jid> <text> [--outgoing] [--from JID]"},
	{"retract", "retract <jid> <id>"},
	{"delete", "delete <jid> <id>"},
	{"purge", "purge <jid>"},
	{"search", "search <query> [--jid JID] [--limit N]"},
	{"contact", "contact get <jid> | contact set <jid> <name>"},
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	accountFlag := flag.String("account", "", "account JID (overrides config account)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = printUsage
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	run, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fail(fmt.Errorf("load config: %w", err))
	}

	socketPath := profile.SocketPath(profileName)
	c, err := client.New(socketPath)
	if err != nil {
		fail(fmt.Errorf("cannot connect to daemon for profile %q: %w", profileName, err))
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	account := profile.ResolveAccount(*accountFlag, cfg)
	if account != "" {
		if err := profile.ValidateAccount(account); err != nil {
			fail(err)
		}
	}

	app := &cli{
		client:  c,
		cfg:     cfg,
		account: account,
		json:    *jsonFlag,
	}
	if err := run(ctx, app, args[1:]); err != nil {
		cancel()
		_ = c.Close()
		fail(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: siskinctl [--profile <name>] [--account <jid>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, u := range usages {
		fmt.Fprintf(os.Stderr, "  %s\n", u.usage)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
