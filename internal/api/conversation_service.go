package api

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/matheus3301/siskin/internal/bus"
	"github.com/matheus3301/siskin/internal/conversation"
	"github.com/matheus3301/siskin/internal/roster"
	"github.com/matheus3301/siskin/internal/rpc"
	"github.com/matheus3301/siskin/internal/store"
	intsync "github.com/matheus3301/siskin/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ConversationService implements the ConversationService gRPC service. Reads
// go straight to the store; writes go through the sync engine so every
// change is published on the bus.
type ConversationService struct {
	db     *store.DB
	engine *intsync.Engine
	bus    *bus.Bus
	logger *zap.Logger
}

// NewConversationService creates a new conversation service backed by the store.
func NewConversationService(db *store.DB, engine *intsync.Engine, b *bus.Bus, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{db: db, engine: engine, bus: b, logger: logger}
}

func (s *ConversationService) ListConversations(ctx context.Context, req *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error) {
	limit := 50
	if req.Limit > 0 {
		limit = req.Limit
	}
	convs, err := s.db.ListConversations(ctx, req.Account, limit, req.Offset)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list conversations: %v", err)
	}
	resp := &rpc.ListConversationsResponse{HasMore: len(convs) == limit}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, rpc.Conversation{
			Key:            c.Key,
			Name:           c.Name,
			LastActivityMs: rpc.ToMillis(c.LastActivity),
			UnreadCount:    c.UnreadCount,
		})
	}
	return resp, nil
}

func (s *ConversationService) ListEntries(ctx context.Context, req *rpc.ListEntriesRequest) (*rpc.ListEntriesResponse, error) {
	if err := req.Key.Validate(); err != nil {
		return nil, toStatus("list entries", err)
	}
	entries, err := s.db.Entries(ctx, req.Key, rpc.PositionFromWire(req.Before), req.Limit)
	if err != nil {
		return nil, toStatus("list entries", err)
	}
	wire, err := rpc.EntriesToWire(entries)
	if err != nil {
		return nil, toStatus("list entries", err)
	}
	return &rpc.ListEntriesResponse{Entries: wire}, nil
}

func (s *ConversationService) UnreadCount(ctx context.Context, req *rpc.UnreadCountRequest) (*rpc.UnreadCountResponse, error) {
	n, err := s.db.UnreadCount(ctx, req.Key)
	if err != nil {
		return nil, toStatus("unread count", err)
	}
	return &rpc.UnreadCountResponse{Count: n}, nil
}

func (s *ConversationService) MarkRead(ctx context.Context, req *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error) {
	n, err := s.engine.MarkAsRead(ctx, req.Key, rpc.FromMillis(req.BeforeMs))
	if err != nil {
		return nil, toStatus("mark read", err)
	}
	return &rpc.MarkReadResponse{Marked: n}, nil
}

func (s *ConversationService) PostEntry(ctx context.Context, req *rpc.PostEntryRequest) (*rpc.PostEntryResponse, error) {
	e, err := rpc.EntryFromWire(req.Entry)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "post entry: %v", err)
	}
	if e.IsUnreadMarker() {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "post entry: unread marker cannot be stored")
	}
	stored, err := s.engine.Ingest(ctx, &e)
	if err != nil {
		return nil, toStatus("post entry", err)
	}
	return entryResponse(stored)
}

func (s *ConversationService) UpdateEntryState(ctx context.Context, req *rpc.UpdateEntryStateRequest) (*rpc.PostEntryResponse, error) {
	if err := s.engine.UpdateState(ctx, req.Key, req.ID, req.State); err != nil {
		return nil, toStatus("update entry state", err)
	}
	e, err := s.db.GetEntry(ctx, req.Key, req.ID)
	if err != nil {
		return nil, toStatus("update entry state", err)
	}
	if e == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "entry %d not found", req.ID)
	}
	return entryResponse(*e)
}

func (s *ConversationService) RetractEntry(ctx context.Context, req *rpc.EntryRequest) (*rpc.Empty, error) {
	if err := s.engine.Retract(ctx, req.Key, req.ID); err != nil {
		return nil, toStatus("retract entry", err)
	}
	return &rpc.Empty{}, nil
}

func (s *ConversationService) DeleteEntry(ctx context.Context, req *rpc.EntryRequest) (*rpc.Empty, error) {
	if err := s.engine.Remove(ctx, req.Key, req.ID); err != nil {
		return nil, toStatus("delete entry", err)
	}
	return &rpc.Empty{}, nil
}

func (s *ConversationService) PurgeHistory(ctx context.Context, req *rpc.PurgeHistoryRequest) (*rpc.PurgeHistoryResponse, error) {
	if err := req.Key.Validate(); err != nil {
		return nil, toStatus("purge history", err)
	}
	n, err := s.engine.Purge(ctx, req.Key)
	if err != nil {
		return nil, toStatus("purge history", err)
	}
	return &rpc.PurgeHistoryResponse{Deleted: n}, nil
}

func (s *ConversationService) Search(ctx context.Context, req *rpc.SearchRequest) (*rpc.SearchResponse, error) {
	limit := 50
	if req.Limit > 0 {
		limit = req.Limit
	}
	results, err := s.db.SearchEntries(ctx, req.Query, req.Key, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search: %v", err)
	}
	resp := &rpc.SearchResponse{}
	for _, r := range results {
		w, err := rpc.EntryToWire(r.Entry)
		if err != nil {
			return nil, toStatus("search", err)
		}
		resp.Results = append(resp.Results, rpc.SearchResult{Entry: w, Snippet: r.Snippet})
	}
	return resp, nil
}

func (s *ConversationService) GetContact(ctx context.Context, req *rpc.GetContactRequest) (*rpc.GetContactResponse, error) {
	c, err := s.db.GetContact(ctx, req.Account, req.JID)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get contact: %v", err)
	}
	if c == nil {
		return &rpc.GetContactResponse{}, nil
	}
	return &rpc.GetContactResponse{Contact: &roster.Contact{
		Account:    c.Account,
		JID:        c.JID,
		Name:       c.Name,
		AvatarHash: c.AvatarHash,
	}}, nil
}

func (s *ConversationService) SetContact(ctx context.Context, req *rpc.SetContactRequest) (*rpc.Empty, error) {
	c := req.Contact
	if err := (conversation.Key{Account: c.Account, JID: c.JID}).Validate(); err != nil {
		return nil, toStatus("set contact", err)
	}
	if err := s.db.UpsertContact(ctx, &store.Contact{
		Account:    c.Account,
		JID:        c.JID,
		Name:       c.Name,
		AvatarHash: c.AvatarHash,
	}); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "set contact: %v", err)
	}
	s.bus.Emit(bus.ContactChanged, c)
	return &rpc.Empty{}, nil
}

// WatchConversation streams the changes of one conversation and the roster
// changes of its account. The first event is always WatchEventStarted.
func (s *ConversationService) WatchConversation(req *rpc.WatchConversationRequest, stream rpc.WatchStream) error {
	if err := req.Key.Validate(); err != nil {
		return toStatus("watch conversation", err)
	}
	convCh, unsubConv := s.bus.Subscribe(bus.NamespaceConversation, 256)
	defer unsubConv()
	rosterCh, unsubRoster := s.bus.Subscribe(bus.NamespaceRoster, 64)
	defer unsubRoster()

	if err := stream.Send(&rpc.WatchEvent{
		EventID: uuid.New().String(),
		Kind:    rpc.WatchEventStarted,
		Key:     req.Key,
	}); err != nil {
		return err
	}

	for {
		var evt bus.Event
		select {
		case evt = <-convCh:
		case evt = <-rosterCh:
		case <-stream.Context().Done():
			return nil
		}
		out, ok, err := watchEvent(req.Key, evt)
		if err != nil {
			s.logger.Warn("dropping unencodable change", zap.String("kind", string(evt.Kind)), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := stream.Send(out); err != nil {
			return err
		}
	}
}

func watchEvent(key conversation.Key, evt bus.Event) (*rpc.WatchEvent, bool, error) {
	out := &rpc.WatchEvent{
		EventID:          uuid.New().String(),
		Kind:             string(evt.Kind),
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
		Key:              key,
	}
	switch p := evt.Payload.(type) {
	case conversation.Change:
		if p.Key != key {
			return nil, false, nil
		}
		if p.Entry != nil {
			w, err := rpc.EntryToWire(*p.Entry)
			if err != nil {
				return nil, false, err
			}
			out.Entry = w
		}
		out.ID = p.ID
		out.BeforeMs = rpc.ToMillis(p.Before)
	case roster.Contact:
		if p.Account != key.Account {
			return nil, false, nil
		}
		out.Contact = &p
	default:
		return nil, false, nil
	}
	return out, true, nil
}

func entryResponse(e conversation.Entry) (*rpc.PostEntryResponse, error) {
	w, err := rpc.EntryToWire(e)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode entry: %v", err)
	}
	return &rpc.PostEntryResponse{Entry: w}, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, conversation.ErrInvalidKey):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, store.ErrEntryNotFound):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
