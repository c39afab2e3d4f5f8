// Package stream maintains the connection to the upstream loot feed
// and turns its protocol messages into log, stats and notification
// updates.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultBaseWait   = time.Second
	defaultMaxWait    = 30 * time.Second
	defaultReadBuffer = 4096
)

// Client is the upstream feed connection: a single WebSocket that is
// redialed with exponential backoff for as long as the context lives.
// Callbacks must be registered before Run.
type Client struct {
	url      string
	baseWait time.Duration
	maxWait  time.Duration
	dialer   *websocket.Dialer
	logger   *zap.Logger

	onConnecting func()
	onConnect    func()
	onDisconnect func()
	onMessage    func([]byte)

	connected atomic.Bool
}

// NewClient creates a feed client for the configured upstream URL.
func NewClient(cfg config.FeedConfig, logger *zap.Logger) *Client {
	baseWait := cfg.ReconnectBaseWait
	if baseWait <= 0 {
		baseWait = defaultBaseWait
	}
	maxWait := cfg.ReconnectMaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	readBuffer := cfg.ReadBuffer
	if readBuffer <= 0 {
		readBuffer = defaultReadBuffer
	}
	return &Client{
		url:      cfg.URL,
		baseWait: baseWait,
		maxWait:  maxWait,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   readBuffer,
		},
		logger: logger,
	}
}

// OnConnecting registers a callback fired before each dial attempt.
func (c *Client) OnConnecting(fn func()) { c.onConnecting = fn }

// OnConnect registers a callback fired after a successful dial.
func (c *Client) OnConnect(fn func()) { c.onConnect = fn }

// OnDisconnect registers a callback fired when an established
// connection drops. Failed dial attempts do not trigger it.
func (c *Client) OnDisconnect(fn func()) { c.onDisconnect = fn }

// OnMessage registers the handler for raw feed messages.
func (c *Client) OnMessage(fn func([]byte)) { c.onMessage = fn }

// IsConnected reports whether the feed connection is currently up.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Run dials the feed and pumps messages until ctx is cancelled,
// redialing with exponential backoff after every failure. It blocks;
// callers run it in a goroutine.
func (c *Client) Run(ctx context.Context) {
	wait := c.baseWait

	for {
		if ctx.Err() != nil {
			return
		}

		if c.onConnecting != nil {
			c.onConnecting()
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("feed dial failed",
				zap.String("url", c.url),
				zap.Duration("retry_in", wait),
				zap.Error(err))
			if !sleep(ctx, wait) {
				return
			}
			wait = nextWait(wait, c.maxWait)
			continue
		}

		wait = c.baseWait
		c.connected.Store(true)
		c.logger.Info("feed connected", zap.String("url", c.url))
		if c.onConnect != nil {
			c.onConnect()
		}

		c.readLoop(ctx, conn)

		c.connected.Store(false)
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
		c.logger.Warn("feed disconnected", zap.String("url", c.url))

		if !sleep(ctx, wait) {
			return
		}
		wait = nextWait(wait, c.maxWait)
	}
}

// readLoop reads until the connection errors or ctx is cancelled. A
// watcher goroutine closes the connection on cancellation to unblock
// the pending read.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("feed read failed", zap.Error(err))
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextWait(wait, max time.Duration) time.Duration {
	wait *= 2
	if wait > max {
		wait = max
	}
	return wait
}
