package stomp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State of the channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// EventType tags a channel transition or delivery.
type EventType int

const (
	EventConnected EventType = iota + 1
	EventDisconnected
	EventError
	EventMessage
)

// Event is published on Client.Events in the order things happened.
type Event struct {
	Type         EventType
	Destination  string
	Subscription string
	Body         []byte
	// Message is the "message" header of an ERROR frame.
	Message string
	Err     error
}

var (
	ErrClosed       = errors.New("stomp: client closed")
	ErrNotConnected = errors.New("stomp: not connected")
)

// Options configures a Client.
type Options struct {
	URL string
	// Login is sent in the CONNECT frame and identifies the participant.
	Login string
	// Reconnect decides the wait before each reconnection attempt.
	Reconnect backoff.BackOff
	Dialer    *websocket.Dialer
	Logger    *zap.Logger
}

// Client is a STOMP-over-websocket client that keeps reconnecting until Close.
// Subscriptions do not survive a reconnect; consumers re-subscribe on every
// EventConnected.
type Client struct {
	url       string
	login     string
	reconnect backoff.BackOff
	dialer    *websocket.Dialer
	log       *zap.Logger

	events chan Event

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	writeMu sync.Mutex

	subSeq    atomic.Int64
	started   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(opts Options) *Client {
	if opts.Reconnect == nil {
		opts.Reconnect = backoff.NewConstantBackOff(5 * time.Second)
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		url:       opts.URL,
		login:     opts.Login,
		reconnect: opts.Reconnect,
		dialer:    opts.Dialer,
		log:       opts.Logger.Named("stomp"),
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
	}
}

// Events returns the event stream. It is closed once the client stops.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate starts connecting in the background. Calling it more than once has
// no effect.
func (c *Client) Activate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

// Close stops the client and waits for the background loop to exit. No
// reconnection happens after Close returns.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		cancel := c.cancel
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			c.writeMu.Lock()
			_ = WriteFrame(conn, frame.New(frame.DISCONNECT))
			c.writeMu.Unlock()
		}
		if cancel == nil {
			close(c.events)
			close(c.done)
			return
		}
		cancel()
	})
	<-c.done
	return nil
}

// Subscribe registers for MESSAGE frames sent to destination and returns the
// subscription id.
func (c *Client) Subscribe(destination string) (string, error) {
	id := "sub-" + strconv.FormatInt(c.subSeq.Add(1), 10)
	f := frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, destination,
		frame.Ack, "auto",
	)
	if err := c.write(f); err != nil {
		return "", fmt.Errorf("subscribe %s: %w", destination, err)
	}
	return id, nil
}

// Publish sends body to destination. Delivery is at most once; nothing is
// retried.
func (c *Client) Publish(destination string, body []byte) error {
	f := frame.New(frame.SEND,
		frame.Destination, destination,
		frame.ContentType, "application/json",
	)
	f.Body = body
	if err := c.write(f); err != nil {
		return fmt.Errorf("publish %s: %w", destination, err)
	}
	return nil
}

func (c *Client) write(f *frame.Frame) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if conn == nil || state != Connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(conn, f)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)
	defer c.setState(Disconnected)

	c.reconnect.Reset()
	for {
		c.setState(Connecting)
		err := c.session(ctx)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}

		c.emit(ctx, Event{Type: EventDisconnected, Err: err})
		wait := c.reconnect.NextBackOff()
		if wait == backoff.Stop {
			c.log.Warn("connection lost, reconnect policy gave up", zap.Error(err))
			return
		}
		c.log.Warn("connection lost, reconnecting", zap.Duration("delay", wait), zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// session runs one connection from dial to close.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)

	host := ""
	if u, err := url.Parse(c.url); err == nil {
		host = u.Hostname()
	}
	connect := frame.New(frame.CONNECT,
		frame.AcceptVersion, "1.2",
		frame.Host, host,
		frame.HeartBeat, "0,0",
	)
	if c.login != "" {
		connect.Header.Add(frame.Login, c.login)
	}
	if err := WriteFrame(conn, connect); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	reply, err := ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("await CONNECTED: %w", err)
	}
	if reply == nil || reply.Command != frame.CONNECTED {
		msg := ""
		if reply != nil {
			msg = reply.Header.Get(frame.Message)
		}
		return fmt.Errorf("handshake rejected: %s", msg)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	c.mu.Lock()
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	c.reconnect.Reset()
	c.log.Info("connected", zap.String("url", c.url), zap.String("server_version", reply.Header.Get(frame.Version)))
	c.emit(ctx, Event{Type: EventConnected})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.ping(conn, pingDone)

	for {
		f, err := ReadFrame(conn)
		if err != nil {
			return err
		}
		if f == nil {
			continue
		}
		switch f.Command {
		case frame.MESSAGE:
			c.emit(ctx, Event{
				Type:         EventMessage,
				Destination:  f.Header.Get(frame.Destination),
				Subscription: f.Header.Get(frame.Subscription),
				Body:         f.Body,
			})
		case frame.ERROR:
			c.emit(ctx, Event{
				Type:    EventError,
				Message: f.Header.Get(frame.Message),
				Body:    f.Body,
			})
		case frame.RECEIPT:
		default:
			c.log.Debug("ignoring frame", zap.String("command", f.Command))
		}
	}
}

func (c *Client) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
