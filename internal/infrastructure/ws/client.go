package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 1 << 20
)

type ClientConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxRetries       uint
	MaxBackoff       time.Duration
}

// Deliver hands a decoded event to the session. It reports false once the
// session no longer accepts events.
type Deliver func(ctx context.Context, ev domain.Event) bool

// Client keeps one websocket to the chat server open, redialling with
// exponential backoff after it drops. It is the session's command sink.
type Client struct {
	cfg     ClientConfig
	dialer  *websocket.Dialer
	deliver Deliver
	logger  logging.Logger

	mu   sync.Mutex
	conn *connWrapper
}

func NewClient(cfg ClientConfig, deliver Deliver, logger logging.Logger) *Client {
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		deliver: deliver,
		logger:  logger,
	}
}

// Run dials and reads until ctx is cancelled or redialling gives up. Every
// dropped connection is reported as a Disconnected event.
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
			return c.dial(ctx)
		}, backoff.WithBackOff(c.backoff()), backoff.WithMaxTries(c.cfg.MaxRetries))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
		}

		w := newConnWrapper(conn, c.cfg.WriteTimeout)
		c.setConn(w)
		c.logger.Info(logging.Transport, logging.Dial, "connected", map[logging.ExtraKey]any{logging.Path: c.cfg.URL})

		readErr := c.readLoop(ctx, w)
		c.setConn(nil)
		_ = w.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(readErr, errDeliveryClosed) {
			return nil
		}
		c.logger.Warn(logging.Transport, logging.Dial, "connection lost", map[logging.ExtraKey]any{
			logging.ErrorMessage: readErr.Error(),
		})
		if !c.deliver(ctx, domain.Disconnected{Err: readErr}) {
			return nil
		}
	}
}

var errDeliveryClosed = errors.New("session stopped accepting events")

func (c *Client) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.MaxBackoff > 0 {
		b.MaxInterval = c.cfg.MaxBackoff
	}
	return b
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.logger.Warn(logging.Transport, logging.Dial, "dial failed", map[logging.ExtraKey]any{
			logging.Path:         c.cfg.URL,
			logging.ErrorMessage: err.Error(),
		})
		// The server answered and refused; retrying will not change that.
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) setConn(w *connWrapper) {
	c.mu.Lock()
	c.conn = w
	c.mu.Unlock()
}

func (c *Client) readLoop(ctx context.Context, w *connWrapper) error {
	conn := w.conn
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go c.pingLoop(ctx, w, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := Decode(raw)
		if err != nil {
			c.logger.Warn(logging.Transport, logging.Decode, "dropping frame", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			continue
		}
		if !c.deliver(ctx, ev) {
			return errDeliveryClosed
		}
	}
}

// pingLoop keeps the connection alive and closes it when ctx ends so the
// blocked reader returns.
func (c *Client) pingLoop(ctx context.Context, w *connWrapper, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = w.Close()
			return
		case <-ticker.C:
			if err := w.Ping(); err != nil {
				return
			}
		}
	}
}

// Send writes cmd on the current connection.
func (c *Client) Send(cmd domain.Command) error {
	c.mu.Lock()
	w := c.conn
	c.mu.Unlock()
	if w == nil {
		return ErrNotConnected
	}
	frame, err := Encode(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Name, err)
	}
	if err := w.WriteText(frame); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Name, err)
	}
	return nil
}
