package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceConversation, 10)
	defer unsub()

	b.Publish(Event{Kind: EntryAdded, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != EntryAdded {
			t.Errorf("got kind %q, want %q", evt.Kind, EntryAdded)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceApp, 10)
	defer unsub()

	b.Emit(EntryUpdated, nil)
	b.Emit(AppStateChanged, nil)

	select {
	case evt := <-ch:
		if evt.Kind != AppStateChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, AppStateChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The conversation event must not leak into the app namespace.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitStampsTime(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceRoster, 1)
	defer unsub()

	before := time.Now()
	b.Publish(Event{Kind: ContactChanged})

	evt := <-ch
	if evt.Timestamp.Before(before) {
		t.Errorf("timestamp %v not set on publish", evt.Timestamp)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceConversation, 10)
	unsub()
	// A second call is a no-op.
	unsub()

	b.Emit(Read, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceInbound, 1)
	defer unsub()

	b.Emit(InboundEntry, 1)
	// Dropped: the buffer holds one event.
	b.Emit(InboundHistory, 2)

	evt := <-ch
	if evt.Kind != InboundEntry {
		t.Errorf("got %q, want %q", evt.Kind, InboundEntry)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected second event %v", evt)
	default:
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestKindNamespace(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{EntryAdded, NamespaceConversation},
		{InboundHistory, NamespaceInbound},
		{AppStateChanged, NamespaceApp},
		{Kind("bare"), ""},
	}
	for _, tt := range tests {
		if got := tt.kind.Namespace(); got != tt.want {
			t.Errorf("%q.Namespace() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestEmptyNamespaceReceivesAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 4)
	defer unsub()

	b.Emit(InboundEntry, nil)
	b.Emit(ContactChanged, nil)

	for _, want := range []Kind{InboundEntry, ContactChanged} {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("got %q, want %q", evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}
