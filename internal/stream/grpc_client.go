package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GRPCClient writes frames to a single client-streaming RPC. The stream is
// opened on first use and reopened once after a failed send.
type GRPCClient struct {
	mu sync.Mutex

	logger    *slog.Logger
	addr      string
	tlsConfig *tls.Config
	token     string
	method    string
	dialOpts  []grpc.DialOption
	conn      *grpc.ClientConn
	stream    grpc.ClientStream
	cancel    context.CancelFunc
}

type ClientOption func(*GRPCClient)

// WithDialOptions appends options used when the connection is created.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *GRPCClient) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, token, method string, logger *slog.Logger, opts ...ClientOption) *GRPCClient {
	c := &GRPCClient{
		logger:    logger,
		addr:      addr,
		tlsConfig: tlsCfg,
		token:     token,
		method:    method,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GRPCClient) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnLocked(); err != nil {
		return err
	}
	if c.stream == nil {
		if err := c.openStreamLocked(ctx); err != nil {
			return err
		}
	}
	if err := c.stream.SendMsg(&f); err != nil {
		c.logger.Warn("grpc event send failed, reopening stream", "error", err)
		c.closeStreamLocked()
		if err2 := c.openStreamLocked(ctx); err2 != nil {
			return fmt.Errorf("reopen event stream: %w", err2)
		}
		if err2 := c.stream.SendMsg(&f); err2 != nil {
			c.closeStreamLocked()
			return fmt.Errorf("send event frame: %w", err2)
		}
	}
	return nil
}

// Close half-closes the stream, waits for the server's reply within ctx and
// tears down the connection.
func (c *GRPCClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		if err := c.stream.CloseSend(); err == nil {
			done := make(chan struct{})
			s := c.stream
			go func() {
				var ack struct{}
				_ = s.RecvMsg(&ack)
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
		c.closeStreamLocked()
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *GRPCClient) ensureConnLocked() error {
	if c.conn != nil {
		return nil
	}

	var creds credentials.TransportCredentials
	if c.tlsConfig != nil {
		creds = credentials.NewTLS(c.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	}, c.dialOpts...)
	conn, err := grpc.NewClient(c.addr, opts...)
	if err != nil {
		return fmt.Errorf("grpc client %s: %w", c.addr, err)
	}
	c.conn = conn
	c.logger.Info("grpc event stream configured", "addr", c.addr)
	return nil
}

func (c *GRPCClient) openStreamLocked(ctx context.Context) error {
	if c.conn == nil {
		return errors.New("grpc conn is nil")
	}
	// The stream outlives the call that opens it.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if c.token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "authorization", "Bearer "+c.token)
	}
	s, err := c.conn.NewStream(streamCtx, &grpc.StreamDesc{ClientStreams: true}, c.method)
	if err != nil {
		cancel()
		return fmt.Errorf("open event stream: %w", err)
	}
	c.stream = s
	c.cancel = cancel
	return nil
}

func (c *GRPCClient) closeStreamLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stream = nil
}
