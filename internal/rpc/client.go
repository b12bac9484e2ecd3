package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ConversationServiceClient is the client API for ConversationService.
type ConversationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewConversationServiceClient wraps a connection.
func NewConversationServiceClient(cc grpc.ClientConnInterface) *ConversationServiceClient {
	return &ConversationServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConversationServiceClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, ConversationServiceName, "ListConversations", in, opts)
}

func (c *ConversationServiceClient) ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error) {
	return invoke[ListEntriesResponse](ctx, c.cc, ConversationServiceName, "ListEntries", in, opts)
}

func (c *ConversationServiceClient) UnreadCount(ctx context.Context, in *UnreadCountRequest, opts ...grpc.CallOption) (*UnreadCountResponse, error) {
	return invoke[UnreadCountResponse](ctx, c.cc, ConversationServiceName, "UnreadCount", in, opts)
}

func (c *ConversationServiceClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, ConversationServiceName, "MarkRead", in, opts)
}

func (c *ConversationServiceClient) PostEntry(ctx context.Context, in *PostEntryRequest, opts ...grpc.CallOption) (*PostEntryResponse, error) {
	return invoke[PostEntryResponse](ctx, c.cc, ConversationServiceName, "PostEntry", in, opts)
}

func (c *ConversationServiceClient) UpdateEntryState(ctx context.Context, in *UpdateEntryStateRequest, opts ...grpc.CallOption) (*PostEntryResponse, error) {
	return invoke[PostEntryResponse](ctx, c.cc, ConversationServiceName, "UpdateEntryState", in, opts)
}

func (c *ConversationServiceClient) RetractEntry(ctx context.Context, in *EntryRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ConversationServiceName, "RetractEntry", in, opts)
}

func (c *ConversationServiceClient) DeleteEntry(ctx context.Context, in *EntryRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ConversationServiceName, "DeleteEntry", in, opts)
}

func (c *ConversationServiceClient) PurgeHistory(ctx context.Context, in *PurgeHistoryRequest, opts ...grpc.CallOption) (*PurgeHistoryResponse, error) {
	return invoke[PurgeHistoryResponse](ctx, c.cc, ConversationServiceName, "PurgeHistory", in, opts)
}

func (c *ConversationServiceClient) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c.cc, ConversationServiceName, "Search", in, opts)
}

func (c *ConversationServiceClient) GetContact(ctx context.Context, in *GetContactRequest, opts ...grpc.CallOption) (*GetContactResponse, error) {
	return invoke[GetContactResponse](ctx, c.cc, ConversationServiceName, "GetContact", in, opts)
}

func (c *ConversationServiceClient) SetContact(ctx context.Context, in *SetContactRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ConversationServiceName, "SetContact", in, opts)
}

// WatchConversation opens a server stream of changes to one conversation.
func (c *ConversationServiceClient) WatchConversation(ctx context.Context, in *WatchConversationRequest, opts ...grpc.CallOption) (*WatchClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ConversationServiceDesc.Streams[0], "/"+ConversationServiceName+"/WatchConversation", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchClient{stream: stream}, nil
}

// WatchClient receives the events of a WatchConversation stream.
type WatchClient struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event. It returns io.EOF when the server ends the stream.
func (w *WatchClient) Recv() (*WatchEvent, error) {
	evt := new(WatchEvent)
	if err := w.stream.RecvMsg(evt); err != nil {
		return nil, err
	}
	return evt, nil
}

// DaemonServiceClient is the client API for DaemonService.
type DaemonServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDaemonServiceClient wraps a connection.
func NewDaemonServiceClient(cc grpc.ClientConnInterface) *DaemonServiceClient {
	return &DaemonServiceClient{cc: cc}
}

func (c *DaemonServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, DaemonServiceName, "GetStatus", in, opts)
}
