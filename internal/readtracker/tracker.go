package readtracker

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/siskin/internal/appstate"
	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a read mark is sent.
const DefaultDebounce = 500 * time.Millisecond

// Marker applies "mark read up to and including before" to a conversation.
// Implementations must be idempotent: repeating a call, or calling with an
// earlier time, is a no-op.
type Marker interface {
	MarkAsRead(ctx context.Context, key conversation.Key, before time.Time) error
}

// Activity reports whether the application is in the foreground.
type Activity interface {
	Active() bool
}

// Tracker turns the stream of "newest visible timestamp" observations of one
// conversation view into debounced read marks. Observations that do not move
// forward are dropped; a burst collapses into its latest value. Marks only go
// out while the app is active: a mark that comes due in the background is
// held and sent on the next switch to ACTIVE.
type Tracker struct {
	key      conversation.Key
	marker   Marker
	activity Activity
	bus      *bus.Bus
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	mono    Monotonic
	acked   Monotonic
	timer   *time.Timer
	pending time.Time
	due     bool
	held    bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a tracker for key. A non-positive debounce selects DefaultDebounce.
func New(key conversation.Key, marker Marker, activity Activity, b *bus.Bus, debounce time.Duration, logger *zap.Logger) *Tracker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		key:      key,
		marker:   marker,
		activity: activity,
		bus:      b,
		debounce: debounce,
		logger:   logger.With(zap.Stringer("conversation", key)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to app state changes so held marks are flushed on
// activation. The tracker stops when ctx is done or Close is called.
func (t *Tracker) Start(ctx context.Context) {
	if t.bus == nil {
		return
	}
	ch, unsub := t.bus.Subscribe(bus.NamespaceApp, 16)
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if c, ok := evt.Payload.(appstate.Change); ok && c.To == appstate.Active {
					t.flushHeld()
				}
			case <-ctx.Done():
				return
			case <-t.ctx.Done():
				return
			}
		}
	}()
}

// Observe feeds the newest visible timestamp. Observations made while the
// app is not active are ignored.
func (t *Tracker) Observe(ts time.Time) {
	if ts.IsZero() || !t.active() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || !t.mono.Accept(ts) {
		return
	}
	t.pending = ts
	t.due = true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.debounce, t.fire)
		return
	}
	t.timer.Reset(t.debounce)
}

// Close stops the debounce timer and the state subscription. A pending mark
// is dropped.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
	t.cancel()
	if t.done != nil {
		<-t.done
	}
}

func (t *Tracker) fire() {
	t.mu.Lock()
	if t.closed || !t.due {
		t.mu.Unlock()
		return
	}
	ts := t.pending
	if !t.active() {
		t.held = true
		t.mu.Unlock()
		t.logger.Debug("read mark held while inactive", zap.Time("before", ts))
		return
	}
	t.due = false
	t.mu.Unlock()
	t.send(ts)
}

func (t *Tracker) flushHeld() {
	t.mu.Lock()
	if t.closed || !t.held || !t.due {
		t.mu.Unlock()
		return
	}
	ts := t.pending
	t.held = false
	t.due = false
	t.mu.Unlock()
	t.send(ts)
}

// send delivers a mark. On failure the filter falls back to the last
// delivered mark, unless a newer observation is already pending, so that the
// same timestamp can be observed and sent again.
func (t *Tracker) send(ts time.Time) {
	err := t.marker.MarkAsRead(t.ctx, t.key, ts)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.logger.Warn("mark as read failed", zap.Time("before", ts), zap.Error(err))
		if last, _ := t.mono.Last(); last.Equal(ts) && !t.due {
			t.mono = t.acked
		}
		return
	}
	t.acked.Accept(ts)
	t.logger.Debug("marked as read", zap.Time("before", ts))
}

func (t *Tracker) active() bool {
	return t.activity == nil || t.activity.Active()
}
