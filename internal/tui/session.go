package tui

import (
	"context"
	"time"

	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/datasource"
	"github.com/matheus3301/siskin/internal/readtracker"
	"go.uber.org/zap"
)

// watchRetry is the pause before a failed watch stream is reopened.
const watchRetry = 2 * time.Second

// session is one open conversation: its data source, its read tracker and
// the watch stream feeding both.
type session struct {
	key     conversation.Key
	name    string
	ds      *datasource.DataSource
	tracker *readtracker.Tracker
	ctx     context.Context
	cancel  context.CancelFunc
}

func (a *App) openSession(key conversation.Key, name string) *session {
	ctx, cancel := context.WithCancel(a.ctx)
	logger := a.logger.Named("conversation")
	conv := a.cfg.Conversation

	s := &session{
		key:    key,
		name:   name,
		ctx:    ctx,
		cancel: cancel,
	}
	s.ds = datasource.New(key, a.client, drawQueue{app: a.app}, a.log, a.local, datasource.Config{
		PageSize:   conv.PageSize,
		WindowSize: conv.WindowSize,
		Mergeable:  conversation.DefaultMergeable(conv.MergeWindow.Duration),
	}, logger)
	s.tracker = readtracker.New(key, a.client, a.state, a.local, a.cfg.ReadTracker.Debounce.Duration, logger)

	s.ds.Start(ctx)
	s.tracker.Start(ctx)
	go a.watch(s)
	return s
}

// watch keeps the watch stream of s open. Every time the stream becomes
// live the window is reloaded, so changes missed while disconnected are
// picked up.
func (a *App) watch(s *session) {
	overhead := a.cfg.Conversation.UnreadOverhead
	lost := false
	for {
		err := a.client.Watch(s.ctx, s.key, a.local, func() {
			if lost {
				lost = false
				a.vm.Flash.Info("Reconnected to daemon")
			}
			a.app.QueueUpdateDraw(func() {
				s.ds.LoadItems(s.ctx, datasource.Unread(overhead))
			})
		})
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			lost = true
			a.logger.Warn("watch stream failed", zap.Stringer("conversation", s.key), zap.Error(err))
			a.vm.Flash.Warn("Lost connection to daemon, retrying...")
		}
		select {
		case <-time.After(watchRetry):
		case <-s.ctx.Done():
			return
		}
	}
}

// close stops the session. It blocks until the data source and tracker
// goroutines exit, so it must not run on the event loop.
func (s *session) close() {
	s.cancel()
	s.tracker.Close()
	s.ds.Close()
}
