// Package natsbus wraps a NATS connection for event publishing, inbound
// subscription requests and JetStream key-value persistence.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int32

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = errors.New("not connected to NATS")
	ErrClosed       = errors.New("NATS client closed")
)

// Options configures the Client.
type Options struct {
	Name          string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
	DrainTimeout  time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Name:          "ondeath",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		DrainTimeout:  5 * time.Second,
	}
}

// Client manages one NATS connection.
type Client struct {
	url    string
	opts   Options
	logger *zap.Logger
	status atomic.Int32

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream
	subs []*nats.Subscription
}

// NewClient creates a Client. It does not connect.
func NewClient(url string, logger *zap.Logger, opts Options) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	def := DefaultOptions()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = def.MaxReconnects
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = def.ReconnectWait
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = def.DrainTimeout
	}
	return &Client{
		url:    url,
		opts:   opts,
		logger: logger.Named("nats"),
	}, nil
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
}

// IsConnected reports whether the connection is usable.
func (c *Client) IsConnected() bool {
	return c.Status() == StatusConnected
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.opts.Name),
		nats.MaxReconnects(c.opts.MaxReconnects),
		nats.ReconnectWait(c.opts.ReconnectWait),
		nats.Timeout(c.opts.Timeout),
		nats.DrainTimeout(c.opts.DrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if c.Status() == StatusClosed {
				return
			}
			c.setStatus(StatusReconnecting)
			c.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusClosed)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.logger.Error("NATS async error", zap.Error(err))
		}),
	}
	if c.opts.Token != "" {
		opts = append(opts, nats.Token(c.opts.Token))
	}
	return opts
}

// Connect dials the server, bounded by ctx.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusClosed {
		return ErrClosed
	}
	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS", zap.String("url", c.url))

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- result{conn: conn, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			c.setStatus(StatusDisconnected)
			return fmt.Errorf("connect to NATS at %s: %w", c.url, res.err)
		}
		js, err := jetstream.New(res.conn)
		if err != nil {
			res.conn.Close()
			c.setStatus(StatusDisconnected)
			return fmt.Errorf("init JetStream: %w", err)
		}
		c.mu.Lock()
		c.conn = res.conn
		c.js = js
		c.mu.Unlock()
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("connect to NATS at %s: %w", c.url, ctx.Err())
	}

	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS", zap.String("url", c.url))
	return nil
}

// Publish publishes data on subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}
	return conn.Publish(subject, data)
}

// Subscribe delivers every message on subject to handler with a per-message
// context derived from ctx.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		handler(msgCtx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// KeyValue returns the named JetStream KV bucket, creating it if needed.
func (c *Client) KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("get KV bucket %s: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "ondeath persisted state",
		History:     1,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		return js.KeyValue(ctx, bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("create KV bucket %s: %w", bucket, err)
	}
	c.logger.Info("Created KV bucket", zap.String("bucket", bucket))
	return kv, nil
}

// Close unsubscribes everything and drains the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() == StatusClosed {
		return nil
	}
	c.setStatus(StatusClosed)

	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", sub.Subject, err))
		}
	}
	c.subs = nil

	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain: %w", err))
		}
		c.conn = nil
		c.js = nil
	}
	return errors.Join(errs...)
}
