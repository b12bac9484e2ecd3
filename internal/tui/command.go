package tui

import "strings"

// Command is a parsed ':' command. Name is always the canonical name.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"q":  "quit",
	"h":  "help",
	"s":  "search",
	"o":  "open",
	"c":  "conversations",
	"r":  "read",
}

var commandNames = map[string]bool{
	"quit":          true,
	"help":          true,
	"search":        true,
	"open":          true,
	"conversations": true,
	"read":          true,
	"purge":         true,
}

// ParseCommand parses a command line without the leading ':'. Aliases are
// resolved to their canonical name.
func ParseCommand(input string) Command {
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	name = strings.ToLower(name)
	if canonical, ok := commandAliases[name]; ok {
		name = canonical
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}
}

// Known reports whether the command names one of the app's commands.
func (c Command) Known() bool {
	return commandNames[c.Name]
}
