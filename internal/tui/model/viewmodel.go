package model

import (
	"context"
	"sync"

	"github.com/matheus3301/siskin/internal/rpc"
	"github.com/matheus3301/siskin/internal/tui/client"
	"github.com/matheus3301/siskin/internal/tui/ui"
)

// conversationLimit bounds the conversation list fetched for the UI.
const conversationLimit = 200

// ViewModel caches daemon state polled by the UI and signals refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client        *client.Client
	account       string
	Status        *rpc.GetStatusResponse
	Conversations []rpc.Conversation
	Flash         *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *client.Client, account string) *ViewModel {
	return &ViewModel{
		client:    c,
		account:   account,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// Account returns the account the view model lists conversations of.
func (vm *ViewModel) Account() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.account
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the daemon status. An account not set locally is taken
// from the daemon.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Status(ctx, false)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = resp
	if vm.account == "" {
		vm.account = resp.Account
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.client.Conversations.ListConversations(ctx, &rpc.ListConversationsRequest{
		Account: vm.Account(),
		Limit:   conversationLimit,
	})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Conversations = resp.Conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Search performs a full-text search over all conversations of the account.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]rpc.SearchResult, error) {
	resp, err := vm.client.Conversations.Search(ctx, &rpc.SearchRequest{
		Query: query,
		Limit: 50,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetConversations returns a snapshot of the conversation list.
func (vm *ViewModel) GetConversations() []rpc.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Conversations
}

// GetStatus returns a snapshot of the daemon status.
func (vm *ViewModel) GetStatus() *rpc.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Status
}
