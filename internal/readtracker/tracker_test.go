package readtracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/siskin/internal/appstate"
	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = conversation.Key{Account: "me@example.org", JID: "alice@example.org"}

type fakeMarker struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (m *fakeMarker) MarkAsRead(_ context.Context, k conversation.Key, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k != key {
		return errors.New("unexpected key")
	}
	m.calls = append(m.calls, before)
	return m.err
}

func (m *fakeMarker) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *fakeMarker) Calls() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.calls...)
}

type fakeActivity struct{ active atomic.Bool }

func (a *fakeActivity) Active() bool { return a.active.Load() }

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func TestMonotonicFilter(t *testing.T) {
	var m Monotonic
	var out []int64
	for _, v := range []int64{5, 3, 8, 8, 10} {
		if m.Accept(at(v)) {
			out = append(out, v)
		}
	}
	assert.Equal(t, []int64{5, 8, 10}, out)

	last, ok := m.Last()
	require.True(t, ok)
	assert.True(t, last.Equal(at(10)))
}

func TestTrackerDebouncesToLatest(t *testing.T) {
	marker := &fakeMarker{}
	tr := New(key, marker, nil, nil, 30*time.Millisecond, nil)
	defer tr.Close()

	for _, v := range []int64{5, 3, 8, 8, 10} {
		tr.Observe(at(v))
	}

	require.Eventually(t, func() bool { return len(marker.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, marker.Calls()[0].Equal(at(10)))

	// Nothing else is sent after the quiet period.
	time.Sleep(80 * time.Millisecond)
	assert.Len(t, marker.Calls(), 1)
}

func TestTrackerDropsRegressionsAfterFire(t *testing.T) {
	marker := &fakeMarker{}
	tr := New(key, marker, nil, nil, 20*time.Millisecond, nil)
	defer tr.Close()

	tr.Observe(at(10))
	require.Eventually(t, func() bool { return len(marker.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	tr.Observe(at(9))
	tr.Observe(at(10))
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, marker.Calls(), 1)

	tr.Observe(at(11))
	require.Eventually(t, func() bool { return len(marker.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, marker.Calls()[1].Equal(at(11)))
}

func TestTrackerIgnoresObservationsWhileInactive(t *testing.T) {
	marker := &fakeMarker{}
	activity := &fakeActivity{}
	tr := New(key, marker, activity, nil, 20*time.Millisecond, nil)
	defer tr.Close()

	tr.Observe(at(5))
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, marker.Calls())

	activity.active.Store(true)
	tr.Observe(at(5))
	require.Eventually(t, func() bool { return len(marker.Calls()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestTrackerHoldsMarkUntilActive(t *testing.T) {
	b := bus.New()
	machine := appstate.NewMachine(b)
	require.NoError(t, machine.Transition(appstate.Active))

	marker := &fakeMarker{}
	tr := New(key, marker, machine, b, 40*time.Millisecond, nil)
	tr.Start(context.Background())
	defer tr.Close()

	tr.Observe(at(7))
	require.NoError(t, machine.Transition(appstate.Inactive))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, marker.Calls(), "no mark may go out while inactive")

	require.NoError(t, machine.Transition(appstate.Active))
	require.Eventually(t, func() bool { return len(marker.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, marker.Calls()[0].Equal(at(7)))
}

func TestTrackerSwallowsMarkerErrors(t *testing.T) {
	marker := &fakeMarker{err: errors.New("store offline")}
	tr := New(key, marker, nil, nil, 10*time.Millisecond, nil)
	defer tr.Close()

	tr.Observe(at(1))
	require.Eventually(t, func() bool { return len(marker.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	// The failed mark does not block the same timestamp once the store is back.
	marker.setErr(nil)
	require.Eventually(t, func() bool {
		tr.Observe(at(1))
		return len(marker.Calls()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.True(t, marker.Calls()[1].Equal(at(1)))

	// A delivered mark is not repeated.
	tr.Observe(at(1))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, marker.Calls(), 2)
}

func TestTrackerCloseDropsPending(t *testing.T) {
	marker := &fakeMarker{}
	tr := New(key, marker, nil, nil, 30*time.Millisecond, nil)

	tr.Observe(at(1))
	tr.Close()
	tr.Observe(at(2))

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, marker.Calls())
}
