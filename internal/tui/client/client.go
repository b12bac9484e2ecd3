package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/siskin/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn          *grpc.ClientConn
	Conversations *rpc.ConversationServiceClient
	Daemon        *rpc.DaemonServiceClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:          conn,
		Conversations: rpc.NewConversationServiceClient(conn),
		Daemon:        rpc.NewDaemonServiceClient(conn),
	}, nil
}

// Status asks the daemon for its status. With wait set the call blocks
// until the socket accepts connections or ctx is done.
func (c *Client) Status(ctx context.Context, wait bool) (*rpc.GetStatusResponse, error) {
	return c.Daemon.GetStatus(ctx, &rpc.GetStatusRequest{}, grpc.WaitForReady(wait))
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
