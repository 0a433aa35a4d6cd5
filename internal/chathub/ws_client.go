package chathub

import (
	"anonchat/app/internal/config"
	"anonchat/app/internal/models"
	"anonchat/app/internal/stomp"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// WebSocketClient is a STOMP session on one websocket. The handshake has
// already happened when it is created.
type WebSocketClient struct {
	ParticipantID string
	Conn          *websocket.Conn
	Hub           *ManagerService
	Send          chan models.ChatMessage

	frames  chan *frame.Frame
	limiter *rate.Limiter
	log     *zap.Logger

	mu   sync.Mutex
	subs map[string]string // subscription id -> destination

	closeOnce sync.Once
	closed    chan struct{}
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, participantID string, limiter *rate.Limiter, log *zap.Logger) *WebSocketClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketClient{
		ParticipantID: participantID,
		Conn:          conn,
		Hub:           hub,
		Send:          make(chan models.ChatMessage, 256),
		frames:        make(chan *frame.Frame, 16),
		limiter:       limiter,
		log:           log.Named("ws").With(zap.String("participant_id", participantID)),
		subs:          make(map[string]string),
		closed:        make(chan struct{}),
	}
}

func (c *WebSocketClient) GetParticipantID() string                  { return c.ParticipantID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChatMessage { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close зупиняє writePump, який закриває з'єднання. Можна викликати кілька разів.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// inboxPrefix is the only destination prefix this participant may subscribe to.
func (c *WebSocketClient) inboxPrefix() string {
	return "/user/" + c.ParticipantID + "/queue/chat."
}

func (c *WebSocketClient) subscriptionFor(dest string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, d := range c.subs {
		if d == dest {
			return id, true
		}
	}
	return "", false
}

func (c *WebSocketClient) reply(f *frame.Frame) {
	select {
	case c.frames <- f:
	case <-c.closed:
	default:
		c.log.Warn("control frame dropped", zap.String("command", f.Command))
	}
}

func (c *WebSocketClient) protocolError(msg string, cause *frame.Frame) {
	f := frame.New(frame.ERROR, frame.Message, msg)
	if cause != nil {
		if r := cause.Header.Get(frame.Receipt); r != "" {
			f.Header.Add(frame.ReceiptId, r)
		}
	}
	c.reply(f)
}

func (c *WebSocketClient) receipt(f *frame.Frame) {
	if r := f.Header.Get(frame.Receipt); r != "" {
		c.reply(frame.New(frame.RECEIPT, frame.ReceiptId, r))
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		f, err := stomp.ReadFrame(c.Conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("read failed", zap.Error(err))
			}
			return
		}
		if f == nil {
			continue
		}

		switch f.Command {
		case frame.SUBSCRIBE:
			c.handleSubscribe(f)
		case frame.UNSUBSCRIBE:
			c.mu.Lock()
			delete(c.subs, f.Header.Get(frame.Id))
			c.mu.Unlock()
			c.receipt(f)
		case frame.SEND:
			c.handleSend(f)
		case frame.DISCONNECT:
			c.receipt(f)
			return
		default:
			c.protocolError("unsupported command "+f.Command, f)
		}
	}
}

func (c *WebSocketClient) handleSubscribe(f *frame.Frame) {
	id := f.Header.Get(frame.Id)
	dest := f.Header.Get(frame.Destination)
	if id == "" {
		c.protocolError("subscription id required", f)
		return
	}
	if !strings.HasPrefix(dest, c.inboxPrefix()) || len(dest) == len(c.inboxPrefix()) {
		c.protocolError("forbidden destination "+dest, f)
		return
	}

	c.mu.Lock()
	c.subs[id] = dest
	c.mu.Unlock()
	c.log.Debug("subscribed", zap.String("destination", dest), zap.String("subscription", id))
	c.receipt(f)
}

func (c *WebSocketClient) handleSend(f *frame.Frame) {
	if dest := f.Header.Get(frame.Destination); dest != config.SendDestination {
		c.protocolError("unknown destination "+dest, f)
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.protocolError("rate limit exceeded", f)
		return
	}

	var msg models.ChatMessage
	if err := json.Unmarshal(f.Body, &msg); err != nil {
		c.protocolError("malformed message", f)
		return
	}
	// відправник завжди той, хто автентифікувався в CONNECT
	msg.SenderID = c.ParticipantID
	msg.Timestamp = nil

	if !c.Hub.Submit(msg) {
		return
	}
	c.receipt(f)
}

// writePump пише MESSAGE-фрейми для доставлених повідомлень, контрольні фрейми
// та ping. Лише він пише в з'єднання.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.Send:
			dest := stomp.UserQueue(c.ParticipantID, msg.SessionID)
			subID, ok := c.subscriptionFor(dest)
			if !ok {
				c.log.Debug("no subscription for message, dropping", zap.String("destination", dest))
				continue
			}
			body, err := json.Marshal(msg)
			if err != nil {
				c.log.Error("encoding message", zap.Error(err))
				continue
			}
			out := frame.New(frame.MESSAGE,
				frame.Destination, dest,
				frame.Subscription, subID,
				frame.MessageId, uuid.New().String(),
				frame.ContentType, "application/json",
			)
			out.Body = body
			if err := stomp.WriteFrame(c.Conn, out); err != nil {
				return
			}

		case f := <-c.frames:
			if err := stomp.WriteFrame(c.Conn, f); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
