package tui

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/siskin/internal/appstate"
	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/config"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/roster"
	"github.com/matheus3301/siskin/internal/rpc"
	"github.com/matheus3301/siskin/internal/tui/client"
	"github.com/matheus3301/siskin/internal/tui/keys"
	"github.com/matheus3301/siskin/internal/tui/model"
	"github.com/matheus3301/siskin/internal/tui/ui"
	"github.com/matheus3301/siskin/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	refreshInterval = 5 * time.Second
	idleTimeout     = 2 * time.Minute
	// loadMoreMargin is how close to the oldest loaded row the view may get
	// before older history is fetched.
	loadMoreMargin = 10
)

const (
	pageConversations = "conversations"
	pageLog           = "log"
	pageSearch        = "search"
	pageDetail        = "detail"
	pageHelp          = "help"
)

// Options configure the TUI.
type Options struct {
	Profile string
	Account string
	Config  *config.Config
	Logger  *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	client   *client.Client
	vm       *model.ViewModel
	registry *keys.Registry
	cfg      *config.Config
	logger   *zap.Logger
	profile  string

	// local carries the daemon's watch events and app state changes to the
	// data source, read tracker and roster directory of this process.
	local  *bus.Bus
	state  *appstate.Machine
	roster *roster.Directory

	main       *tview.Flex
	info       *ui.ProfileInfo
	menu       *ui.Menu
	logo       *ui.Logo
	crumbs     *ui.Crumbs
	pages      *ui.Pages
	prompt     *ui.Prompt
	flashBar   *ui.FlashBar
	convList   *views.ConversationList
	log        *views.ConversationLog
	search     *views.SearchView
	detail     *views.EntryDetail
	help       *views.HelpView
	components map[string]ui.Component

	session      *session
	lookedUp     map[string]bool
	idle         *time.Timer
	promptActive bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	local := bus.New()
	dir, err := roster.New(opts.Account, c, cfg.Roster.CacheSize, local, logger.Named("roster"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		client:   c,
		vm:       model.NewViewModel(c, opts.Account),
		registry: keys.NewRegistry(),
		cfg:      cfg,
		logger:   logger,
		profile:  opts.Profile,
		local:    local,
		state:    appstate.NewMachine(local),
		roster:   dir,
		info:     ui.NewProfileInfo(theme),
		menu:     ui.NewMenu(theme),
		logo:     ui.NewLogo(theme),
		crumbs:   ui.NewCrumbs(theme),
		pages:    ui.NewPages(),
		prompt:   ui.NewPrompt(theme),
		flashBar: ui.NewFlashBar(theme),
		convList: views.NewConversationList(theme),
		log:      views.NewConversationLog(theme),
		search:   views.NewSearchView(theme),
		detail:   views.NewEntryDetail(theme),
		help:     views.NewHelpView(theme),
		lookedUp: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a, nil
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("back", &keys.Action{
		Key:     tcell.KeyEscape,
		Handler: a.back,
	})
	a.registry.AddGlobal("command", &keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Handler: func() { a.activatePrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Key: tcell.KeyRune, Rune: '?',
		Handler: a.showHelp,
	})
	a.registry.AddGlobal("suspend", &keys.Action{
		Key:         tcell.KeyCtrlZ,
		Description: "Ctrl-Z:Suspend",
		Visible:     true,
		Handler:     a.suspend,
	})

	a.registry.AddView(pageConversations, "quit", &keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Handler: a.Stop,
	})
	a.registry.AddView(pageConversations, "filter", &keys.Action{
		Key: tcell.KeyRune, Rune: '/',
		Handler: func() { a.activatePrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageConversations, "clear", &keys.Action{
		Key: tcell.KeyRune, Rune: '0',
		Handler: a.convList.ClearFilter,
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageConversations, fmt.Sprintf("jump%d", n), &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() {
				if c, ok := a.convList.ByIndex(n); ok {
					a.openConversation(c.Key)
				}
			},
		})
	}

	a.registry.AddView(pageLog, "compose", &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Handler: func() { a.app.SetFocus(a.log.Composer()) },
	})
	a.registry.AddView(pageLog, "newest", &keys.Action{
		Key: tcell.KeyRune, Rune: 'G',
		Handler: a.log.ScrollToNewest,
	})
	a.registry.AddView(pageLog, "retract", &keys.Action{
		Key: tcell.KeyRune, Rune: 'x',
		Handler: a.retractSelected,
	})
	a.registry.AddView(pageLog, "delete", &keys.Action{
		Key: tcell.KeyRune, Rune: 'd',
		Handler: a.deleteSelected,
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(_, _ int) {
		if c, ok := a.convList.SelectedConversation(); ok {
			a.openConversation(c.Key)
		}
	})

	a.log.SetOnSend(a.send)
	a.log.SetOnOpen(func(e conversation.Entry) {
		a.detail.Update(e, a.senderName(e.Sender))
		a.pages.Push(pageDetail)
		a.app.SetFocus(a.detail)
	})
	a.log.SetOnVisible(func(_, _ int) {
		// Reported from the draw; the handler may change rows, so it runs
		// as a separate update.
		go a.app.QueueUpdateDraw(a.visibleChanged)
	})

	a.search.SetOnQuery(a.runSearch)
	a.search.SetOnOpen(func(key conversation.Key, _ int64) {
		a.openConversation(key)
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(trail []string) {
		a.crumbs.Update(trail)
		a.updateMenu()
	})
}

func (a *App) setupLayout() {
	a.components = map[string]ui.Component{
		pageConversations: a.convList,
		pageLog:           a.log,
		pageSearch:        a.search,
		pageDetail:        a.detail,
		pageHelp:          a.help,
	}
	a.pages.AddPage(pageConversations, a.convList, true, false)
	a.pages.AddPage(pageLog, a.log, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageDetail, a.detail, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	for name, comp := range a.components {
		a.pages.SetTitle(name, comp.Name())
	}

	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 22, 0, false)

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.main, true)
	a.pages.Reset(pageConversations)
	a.app.SetFocus(a.convList)

	a.app.SetInputCapture(a.handleKey)
	a.app.SetAfterDrawFunc(func(tcell.Screen) {
		if a.session != nil && a.pages.Current() == pageLog {
			a.log.ReportVisible()
		}
	})
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	a.touch()
	if a.promptActive {
		return ev
	}

	page := a.pages.Current()
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		if ev.Key() != tcell.KeyEscape {
			return ev
		}
		switch page {
		case pageLog:
			a.app.SetFocus(a.log.Table())
			return nil
		case pageSearch:
			a.back()
			return nil
		}
		return ev
	}

	if a.registry.HandleEvent(page, ev) {
		return nil
	}
	return ev
}

func (a *App) updateMenu() {
	comp, ok := a.components[a.pages.Current()]
	if !ok {
		a.menu.Update(nil)
		return
	}
	hints := comp.Hints()
	for _, h := range a.registry.Hints(a.pages.Current()) {
		hints = append(hints, ui.ParseHint(h))
	}
	a.menu.Update(hints)
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	a.promptActive = true
	a.prompt.Activate(mode)
	a.main.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.main.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageConversations:
		a.app.SetFocus(a.convList)
	case pageLog:
		a.app.SetFocus(a.log.Table())
	case pageSearch:
		if a.search.Results().GetRowCount() > 1 {
			a.app.SetFocus(a.search.Results())
		} else {
			a.app.SetFocus(a.search.Input())
		}
	case pageDetail:
		a.app.SetFocus(a.detail)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		a.convList.ClearFilter()
		a.vm.Flash.Clear()
		return
	}
	if a.pages.Pop() == pageLog {
		a.closeSession()
	}
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	if cmd.Name == "" {
		return
	}
	if !cmd.Known() {
		a.vm.Flash.Warn("Unknown command: " + cmd.Name)
		return
	}
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.showHelp()
	case "search":
		a.showSearch(cmd.Args)
	case "open":
		a.openByName(cmd.Args)
	case "conversations":
		a.closeSession()
		a.pages.Reset(pageConversations)
		a.focusCurrent()
	case "read":
		a.markOpenRead()
	case "purge":
		a.purgeOpen()
	}
}

func (a *App) showHelp() {
	if a.pages.Current() != pageHelp {
		a.pages.Push(pageHelp)
	}
	a.app.SetFocus(a.help)
}

func (a *App) showSearch(query string) {
	if a.pages.Current() != pageSearch {
		a.pages.Push(pageSearch)
	}
	a.app.SetFocus(a.search.Input())
	if query != "" {
		a.search.SetQuery(query)
		a.runSearch(query)
	}
}

func (a *App) runSearch(query string) {
	go func() {
		results, err := a.vm.Search(a.ctx, query)
		if err != nil {
			a.vm.Flash.Err(fmt.Errorf("search: %w", err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.search.Update(results)
			if len(results) > 0 && a.pages.Current() == pageSearch {
				a.app.SetFocus(a.search.Results())
			}
		})
	}()
}

func (a *App) openByName(query string) {
	if query == "" {
		a.vm.Flash.Warn("Usage: :open <name|jid>")
		return
	}
	if key, ok := a.convList.Find(query); ok {
		a.openConversation(key)
		return
	}
	key := conversation.Key{Account: a.vm.Account(), JID: query}
	if err := key.Validate(); err != nil || !strings.Contains(query, "@") {
		a.vm.Flash.Warn("No conversation matches " + query)
		return
	}
	a.openConversation(key)
}

// openConversation shows the log of key, replacing any open conversation.
func (a *App) openConversation(key conversation.Key) {
	if a.session == nil || a.session.key != key {
		a.closeSession()
		name := a.conversationName(key)
		a.session = a.openSession(key, name)
		a.log.Attach(name, a.session.ds, a.senderName)
		a.pages.SetTitle(pageLog, a.log.Name())
	}
	if a.pages.Current() != pageLog {
		a.pages.Push(pageLog)
	}
	a.app.SetFocus(a.log.Table())
}

func (a *App) closeSession() {
	if a.session == nil {
		return
	}
	s := a.session
	a.session = nil
	a.log.Attach("", nil, nil)
	a.pages.SetTitle(pageLog, a.log.Name())
	go s.close()
}

func (a *App) conversationName(key conversation.Key) string {
	for _, c := range a.vm.GetConversations() {
		if c.Key == key && c.Name != "" {
			return c.Name
		}
	}
	return key.JID
}

// visibleChanged feeds the on-screen range of the log to the data source
// and the read tracker, and grows or trims the window at its edges.
func (a *App) visibleChanged() {
	s := a.session
	if s == nil || a.pages.Current() != pageLog {
		return
	}
	first, last, ok := a.log.VisibleRows()
	if !ok {
		return
	}
	if ts, ok := s.ds.UpdateVisibleRows(first, last); ok {
		s.tracker.Observe(ts)
	}
	if !s.ds.Complete() && last >= s.ds.Count()-1-loadMoreMargin {
		s.ds.LoadMore(s.ctx, 0)
	}
	if first == 0 {
		s.ds.TrimStore()
	}
}

// senderName returns the cached roster name of a sender. A miss starts one
// lookup in the background and redraws the log when it completes.
func (a *App) senderName(s conversation.Sender) string {
	ref := s.AvatarRef()
	if c, ok := a.roster.Get(ref); ok && c.Name != "" {
		return c.Name
	}
	if ref != "" && !a.lookedUp[ref] {
		a.lookedUp[ref] = true
		go func() {
			a.roster.Lookup(a.ctx, s)
			a.app.QueueUpdateDraw(a.log.Render)
		}()
	}
	return s.Nick()
}

func (a *App) send(text string) {
	s := a.session
	if s == nil {
		return
	}
	e := conversation.Entry{
		Key:       s.key,
		Timestamp: time.Now(),
		State:     conversation.State{Direction: conversation.Outgoing, Status: conversation.Unsent},
		Sender:    conversation.Sender{Kind: conversation.SenderMe, JID: s.key.Account},
		Payload:   conversation.Message{Body: text},
		Options:   conversation.Options{Markable: true},
	}
	go func() {
		if _, err := a.client.Post(s.ctx, e); err != nil {
			a.vm.Flash.Err(fmt.Errorf("send: %w", err))
		}
	}()
}

func (a *App) retractSelected() {
	s := a.session
	e, ok := a.log.SelectedEntry()
	if s == nil || !ok || e.IsUnreadMarker() {
		return
	}
	if e.State.Direction != conversation.Outgoing {
		a.vm.Flash.Warn("Only your own entries can be retracted")
		return
	}
	go func() {
		if _, err := a.client.Conversations.RetractEntry(s.ctx, &rpc.EntryRequest{Key: s.key, ID: e.ID}); err != nil {
			a.vm.Flash.Err(fmt.Errorf("retract: %w", err))
		}
	}()
}

func (a *App) deleteSelected() {
	s := a.session
	e, ok := a.log.SelectedEntry()
	if s == nil || !ok || e.IsUnreadMarker() {
		return
	}
	go func() {
		if _, err := a.client.Conversations.DeleteEntry(s.ctx, &rpc.EntryRequest{Key: s.key, ID: e.ID}); err != nil {
			a.vm.Flash.Err(fmt.Errorf("delete: %w", err))
			return
		}
		a.vm.Flash.Info("Entry deleted")
	}()
}

func (a *App) markOpenRead() {
	s := a.session
	if s == nil {
		a.vm.Flash.Warn("No conversation open")
		return
	}
	go func() {
		if err := a.client.MarkAsRead(s.ctx, s.key, time.Now()); err != nil {
			a.vm.Flash.Err(fmt.Errorf("mark read: %w", err))
			return
		}
		a.vm.Flash.Info("Marked as read")
	}()
}

func (a *App) purgeOpen() {
	s := a.session
	if s == nil {
		a.vm.Flash.Warn("No conversation open")
		return
	}
	go func() {
		resp, err := a.client.Conversations.PurgeHistory(s.ctx, &rpc.PurgeHistoryRequest{Key: s.key})
		if err != nil {
			a.vm.Flash.Err(fmt.Errorf("purge: %w", err))
			return
		}
		a.vm.Flash.Info(fmt.Sprintf("Purged %d entries", resp.Deleted))
	}()
}

func (a *App) transition(to appstate.State) {
	if err := a.state.Transition(to); err != nil {
		a.logger.Debug("app state transition rejected", zap.Error(err))
		return
	}
	a.logo.SetState(string(to))
}

// touch records user activity: it reactivates an idle app and restarts the
// idle timer.
func (a *App) touch() {
	if a.state.Current() == appstate.Inactive {
		a.transition(appstate.Active)
		a.log.ResetVisible()
	}
	if a.idle != nil {
		a.idle.Reset(idleTimeout)
	}
}

func (a *App) idleExpired() {
	a.app.QueueUpdateDraw(func() {
		a.transition(appstate.Inactive)
		a.refreshInfo()
	})
}

// suspend stops the process like a shell job control stop. The app is in
// the background until the shell resumes it.
func (a *App) suspend() {
	a.transition(appstate.Inactive)
	a.transition(appstate.Background)
	a.app.Suspend(func() {
		if err := syscall.Kill(syscall.Getpid(), syscall.SIGTSTP); err != nil {
			a.logger.Warn("suspend failed", zap.Error(err))
		}
	})
	a.transition(appstate.Inactive)
	a.transition(appstate.Active)
	a.log.ResetVisible()
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.transition(appstate.Active)
	a.roster.Start(a.ctx)
	a.idle = time.AfterFunc(idleTimeout, a.idleExpired)

	go a.watchFlash()
	go a.watchRefresh()
	go a.watchRoster()
	go func() {
		a.refresh()
		a.startRefreshLoop()
	}()

	err := a.app.Run()
	a.shutdown()
	return err
}

func (a *App) refresh() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.logger.Warn("load status failed", zap.Error(err))
	}
	if err := a.vm.LoadConversations(a.ctx); err != nil {
		a.logger.Warn("load conversations failed", zap.Error(err))
	}
}

// watchRefresh redraws the conversation list and the header whenever the
// view model has loaded new data.
func (a *App) watchRefresh() {
	for {
		select {
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(func() {
				a.convList.Update(a.vm.GetConversations())
				a.refreshInfo()
				a.flashBar.Update(a.vm.Flash.GetMessage())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) refreshInfo() {
	a.crumbs.SetRoot(a.vm.Account())
	data := &ui.ProfileData{
		Profile: a.profile,
		Account: a.vm.Account(),
		State:   string(a.state.Current()),
		Unread:  a.convList.TotalUnread(),
	}
	if st := a.vm.GetStatus(); st != nil {
		data.Conversations = st.ConversationCount
		data.Uptime = time.Duration(st.UptimeMs) * time.Millisecond
	}
	a.info.Update(data)
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.refresh()
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) watchFlash() {
	for {
		select {
		case msg := <-a.vm.Flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		case <-a.ctx.Done():
			return
		}
	}
}

// watchRoster redraws the log when a contact changes, so renamed senders
// show their new name.
func (a *App) watchRoster() {
	ch, unsub := a.local.Subscribe(bus.NamespaceRoster, 16)
	defer unsub()
	for {
		select {
		case evt := <-ch:
			c, ok := evt.Payload.(roster.Contact)
			if !ok {
				continue
			}
			a.app.QueueUpdateDraw(func() {
				if c.Name != "" {
					ref := conversation.Sender{Kind: conversation.SenderBuddy, JID: c.JID}.AvatarRef()
					a.roster.Set(ref, c)
				}
				clear(a.lookedUp)
				a.log.Render()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) shutdown() {
	a.cancel()
	if a.idle != nil {
		a.idle.Stop()
	}
	a.transition(appstate.Terminated)
	if a.session != nil {
		a.session.close()
		a.session = nil
	}
	a.roster.Close()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.app.Stop()
}
