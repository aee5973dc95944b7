// Package realtime keeps the process-wide realtime connection to the backend:
// a socket.io client over a websocket, the monitor that lists received
// auth events, and the journal sinks the monitor writes to.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultReadLimit  = 1 << 20
	handshakeTimeout  = 10 * time.Second
	defaultCloseGrace = time.Second
)

// TokenSource supplies the token sent with the namespace connect packet.
type TokenSource interface {
	Token() string
}

// Handler receives surfaced events. Handlers run on the read goroutine in
// arrival order and must not block.
type Handler func(Event)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for the websocket upgrade.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource authenticates the namespace connect with the session token.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// Client is one socket.io connection. It is created at process start and
// closed at shutdown; it does not reconnect.
type Client struct {
	dialURL    string
	httpClient *http.Client
	tokens     TokenSource
	now        func() time.Time

	mu        sync.RWMutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	connected bool
	last      *Event
	handlers  map[int]Handler
	nextID    int
	done      chan struct{}
}

// NewClient creates a client for the backend at socketURL. Nothing is
// dialled until Start.
func NewClient(socketURL string, opts ...Option) (*Client, error) {
	u, err := dialURL(socketURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		dialURL:  u,
		now:      time.Now,
		handlers: make(map[int]Handler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func dialURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing socket URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported socket URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("socket URL %q has no host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start dials the backend, completes the engine.io handshake and the
// namespace connect, then reads in the background until ctx is done, the
// server disconnects or Close is called.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("realtime client already started")
	}
	c.mu.Unlock()

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(hctx, c.dialURL, &websocket.DialOptions{HTTPClient: c.httpClient})
	if err != nil {
		return fmt.Errorf("dialing realtime server: %w", err)
	}
	conn.SetReadLimit(defaultReadLimit)

	hs, err := c.handshake(hctx, conn)
	if err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return err
	}

	runCtx, runCancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.conn = conn
	c.cancel = runCancel
	c.connected = true
	c.mu.Unlock()

	slog.Info("realtime connected", "sid", hs.SID)
	go c.readLoop(runCtx, conn, hs.liveness())
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (handshake, error) {
	p, err := readPacket(ctx, conn)
	if err != nil {
		return handshake{}, fmt.Errorf("reading open packet: %w", err)
	}
	hs, err := parseHandshake(p)
	if err != nil {
		return handshake{}, err
	}
	if hs.MaxPayload > 0 {
		conn.SetReadLimit(hs.MaxPayload)
	}

	var token string
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	connect, err := encodeConnect(token)
	if err != nil {
		return handshake{}, err
	}
	if err := conn.Write(ctx, websocket.MessageText, connect); err != nil {
		return handshake{}, fmt.Errorf("sending connect: %w", err)
	}

	for {
		p, err := readPacket(ctx, conn)
		if err != nil {
			return handshake{}, fmt.Errorf("awaiting connect ack: %w", err)
		}
		switch {
		case p.engine == enginePing:
			if err := conn.Write(ctx, websocket.MessageText, []byte{enginePong}); err != nil {
				return handshake{}, fmt.Errorf("sending pong: %w", err)
			}
		case p.engine == engineMessage && p.socket == socketConnect:
			return hs, nil
		case p.engine == engineMessage && p.socket == socketConnectError:
			return handshake{}, fmt.Errorf("realtime connect refused: %s", connectErrorMessage(p.data))
		case p.engine == engineClose:
			return handshake{}, errors.New("realtime server closed during handshake")
		}
	}
}

// frameError is a frame that arrived intact but cannot be decoded. The
// connection itself is still usable.
type frameError struct {
	err error
}

func (e *frameError) Error() string { return e.err.Error() }

func (e *frameError) Unwrap() error { return e.err }

func readPacket(ctx context.Context, conn *websocket.Conn) (packet, error) {
	typ, b, err := conn.Read(ctx)
	if err != nil {
		return packet{}, err
	}
	if typ != websocket.MessageText {
		return packet{}, &frameError{errors.New("unexpected binary frame")}
	}
	p, err := parsePacket(b)
	if err != nil {
		return packet{}, &frameError{err}
	}
	return p, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, liveness time.Duration) {
	defer c.finish(conn)

	for {
		rctx, cancel := ctx, context.CancelFunc(func() {})
		if liveness > 0 {
			rctx, cancel = context.WithTimeout(ctx, liveness)
		}
		p, err := readPacket(rctx, conn)
		cancel()
		var fe *frameError
		if errors.As(err, &fe) {
			slog.Warn("realtime frame dropped", "error", err)
			continue
		}
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				slog.Warn("realtime read failed", "error", err)
			}
			return
		}

		switch p.engine {
		case enginePing:
			if err := conn.Write(ctx, websocket.MessageText, []byte{enginePong}); err != nil {
				slog.Warn("realtime pong failed", "error", err)
				return
			}
		case engineClose:
			slog.Info("realtime server closed the connection")
			return
		case engineMessage:
			switch p.socket {
			case socketEvent:
				c.handleEvent(p)
			case socketDisconnect:
				slog.Info("realtime server disconnected the namespace")
				return
			}
		}
	}
}

func (c *Client) handleEvent(p packet) {
	if p.namespace != "/" {
		return
	}
	name, args, err := decodeEvent(p.data)
	if err != nil {
		slog.Warn("realtime event dropped", "error", err)
		return
	}
	if name != AuthEvent {
		slog.Debug("realtime event ignored", "event", name)
		return
	}
	if len(args) == 0 {
		slog.Warn("realtime event dropped", "event", name, "error", "no payload")
		return
	}
	ev, err := decodeAuthEvent(args[0], c.now())
	if err != nil {
		slog.Warn("realtime event dropped", "event", name, "error", err)
		return
	}

	c.mu.Lock()
	c.last = &ev
	handlers := make([]Handler, 0, len(c.handlers))
	for id := 0; id < c.nextID; id++ {
		if h, ok := c.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (c *Client) finish(conn *websocket.Conn) {
	c.mu.Lock()
	c.connected = false
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
	close(c.done)
	slog.Info("realtime disconnected")
}

// Subscribe registers h for every surfaced event and returns a function that
// removes it. Handlers run in subscription order.
func (c *Client) Subscribe(h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Connected reports whether the namespace connection is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// LastEvent returns the most recently received event.
func (c *Client) LastEvent() (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Event{}, false
	}
	return *c.last, true
}

// Done is closed when the read loop has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close disconnects and waits briefly for the read loop to stop. Closing a
// client that never started is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	ctx, done := context.WithTimeout(context.Background(), defaultCloseGrace)
	defer done()
	_ = conn.Write(ctx, websocket.MessageText, []byte{engineMessage, socketDisconnect})
	cancel()

	select {
	case <-c.done:
	case <-ctx.Done():
	}
	return nil
}
