package api

import (
	"context"
	"os"
	"time"

	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/rpc"
	"github.com/matheus3301/siskin/internal/store"
)

// DaemonService implements the DaemonService gRPC service.
type DaemonService struct {
	profile   string
	account   string
	startedAt time.Time
	db        *store.DB
	bus       *bus.Bus
}

// NewDaemonService creates a new daemon status service.
func NewDaemonService(profile, account string, db *store.DB, b *bus.Bus) *DaemonService {
	return &DaemonService{
		profile:   profile,
		account:   account,
		startedAt: time.Now(),
		db:        db,
		bus:       b,
	}
}

func (s *DaemonService) GetStatus(ctx context.Context, _ *rpc.GetStatusRequest) (*rpc.GetStatusResponse, error) {
	resp := &rpc.GetStatusResponse{
		Profile:  s.profile,
		Account:  s.account,
		PID:      os.Getpid(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}

	if s.db != nil {
		if n, err := s.db.ConversationCount(ctx, s.account); err == nil {
			resp.ConversationCount = n
		}
		if v, err := s.db.SchemaVersion(ctx); err == nil {
			resp.SchemaVersion = v
		}
	}
	if s.bus != nil {
		resp.DroppedEvents = s.bus.Dropped()
	}
	return resp, nil
}
