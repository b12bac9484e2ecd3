package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ConversationServiceName = "siskin.v1.ConversationService"
	DaemonServiceName       = "siskin.v1.DaemonService"
)

// ConversationServiceServer is the server API for ConversationService.
type ConversationServiceServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error)
	UnreadCount(context.Context, *UnreadCountRequest) (*UnreadCountResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	PostEntry(context.Context, *PostEntryRequest) (*PostEntryResponse, error)
	UpdateEntryState(context.Context, *UpdateEntryStateRequest) (*PostEntryResponse, error)
	RetractEntry(context.Context, *EntryRequest) (*Empty, error)
	DeleteEntry(context.Context, *EntryRequest) (*Empty, error)
	PurgeHistory(context.Context, *PurgeHistoryRequest) (*PurgeHistoryResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	GetContact(context.Context, *GetContactRequest) (*GetContactResponse, error)
	SetContact(context.Context, *SetContactRequest) (*Empty, error)
	WatchConversation(*WatchConversationRequest, WatchStream) error
}

// DaemonServiceServer is the server API for DaemonService.
type DaemonServiceServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

// WatchStream is the server side of a WatchConversation stream.
type WatchStream interface {
	Send(*WatchEvent) error
	Context() context.Context
}

// ConversationServiceDesc describes ConversationService for grpc.Server.RegisterService.
var ConversationServiceDesc = grpc.ServiceDesc{
	ServiceName: ConversationServiceName,
	HandlerType: (*ConversationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ConversationServiceName, "ListConversations", ConversationServiceServer.ListConversations),
		unary(ConversationServiceName, "ListEntries", ConversationServiceServer.ListEntries),
		unary(ConversationServiceName, "UnreadCount", ConversationServiceServer.UnreadCount),
		unary(ConversationServiceName, "MarkRead", ConversationServiceServer.MarkRead),
		unary(ConversationServiceName, "PostEntry", ConversationServiceServer.PostEntry),
		unary(ConversationServiceName, "UpdateEntryState", ConversationServiceServer.UpdateEntryState),
		unary(ConversationServiceName, "RetractEntry", ConversationServiceServer.RetractEntry),
		unary(ConversationServiceName, "DeleteEntry", ConversationServiceServer.DeleteEntry),
		unary(ConversationServiceName, "PurgeHistory", ConversationServiceServer.PurgeHistory),
		unary(ConversationServiceName, "Search", ConversationServiceServer.Search),
		unary(ConversationServiceName, "GetContact", ConversationServiceServer.GetContact),
		unary(ConversationServiceName, "SetContact", ConversationServiceServer.SetContact),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchConversation",
			Handler:       watchConversationHandler,
			ServerStreams: true,
		},
	},
}

// DaemonServiceDesc describes DaemonService for grpc.Server.RegisterService.
var DaemonServiceDesc = grpc.ServiceDesc{
	ServiceName: DaemonServiceName,
	HandlerType: (*DaemonServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(DaemonServiceName, "GetStatus", DaemonServiceServer.GetStatus),
	},
}

// RegisterConversationServiceServer registers srv on s.
func RegisterConversationServiceServer(s grpc.ServiceRegistrar, srv ConversationServiceServer) {
	s.RegisterService(&ConversationServiceDesc, srv)
}

// RegisterDaemonServiceServer registers srv on s.
func RegisterDaemonServiceServer(s grpc.ServiceRegistrar, srv DaemonServiceServer) {
	s.RegisterService(&DaemonServiceDesc, srv)
}

func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

func watchConversationHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchConversationRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ConversationServiceServer).WatchConversation(in, &watchStream{stream})
}

type watchStream struct {
	grpc.ServerStream
}

func (s *watchStream) Send(evt *WatchEvent) error {
	return s.ServerStream.SendMsg(evt)
}
