package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHintsOrdered(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("help", &Action{Key: tcell.KeyRune, Rune: '?', Description: "?:help", Visible: true})
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Visible: true})
	r.AddGlobal("hidden", &Action{Key: tcell.KeyRune, Rune: 'h', Description: "h:hidden"})
	r.AddView("log", "compose", &Action{Key: tcell.KeyRune, Rune: 'i', Description: "i:compose", Visible: true})
	r.AddView("search", "open", &Action{Key: tcell.KeyEnter, Description: "enter:open", Visible: true})
	r.AddGlobal("help", &Action{Key: tcell.KeyRune, Rune: '?', Description: "?:keys", Visible: true})

	want := []string{"i:compose", "?:keys", "q:quit"}
	for i := 0; i < 5; i++ {
		got := r.Hints("log")
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	}
}

func TestAddViewScopesBindings(t *testing.T) {
	r := NewRegistry()
	r.AddView("log", "open", &Action{Key: tcell.KeyEnter, Description: "enter:details", Visible: true})

	if got := r.Hints("list"); len(got) != 0 {
		t.Fatalf("hints leaked into another view: %v", got)
	}
	if len(r.views["log"]) != 1 || r.views["log"][0].Name != "open" {
		t.Fatalf("action not registered under its name: %+v", r.views["log"])
	}
}
