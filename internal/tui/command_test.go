package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args string
	}{
		{"q", "quit", ""},
		{"  Search  hello world ", "search", "hello world"},
		{"s hello", "search", "hello"},
		{"o juliet@capulet.lit", "open", "juliet@capulet.lit"},
		{"c", "conversations", ""},
		{"purge", "purge", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		got := ParseCommand(tt.in)
		if got.Name != tt.name || got.Args != tt.args {
			t.Errorf("ParseCommand(%q) = %+v, want {%s %s}", tt.in, got, tt.name, tt.args)
		}
	}
}

func TestCommandKnown(t *testing.T) {
	if !ParseCommand("r").Known() {
		t.Error("r should resolve to a known command")
	}
	if ParseCommand("frobnicate").Known() {
		t.Error("frobnicate should not be known")
	}
}
