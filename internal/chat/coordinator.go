// Package chat owns the realtime channel for one session handle: guard,
// reload recovery, subscribe on every connect, receive and send.
package chat

import (
	"anonchat/app/internal/config"
	"anonchat/app/internal/models"
	"anonchat/app/internal/sessionstore"
	"anonchat/app/internal/stomp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrInvalidSession = errors.New("chat: no valid session handle")
	ErrNotConnected   = errors.New("chat: channel is not connected")
	ErrEmptyMessage   = errors.New("chat: empty message")
)

// Channel is the realtime transport. *stomp.Client implements it.
type Channel interface {
	Activate(ctx context.Context)
	Events() <-chan stomp.Event
	Subscribe(destination string) (string, error)
	Publish(destination string, body []byte) error
	State() stomp.State
	Close() error
}

// ChannelFactory opens a channel on behalf of the local participant.
type ChannelFactory func(local models.Participant) Channel

// HistoryFetcher is the chat-history part of the matching service.
type HistoryFetcher interface {
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}

// ReloadDetector tells whether the current activation is a reload of the chat
// screen rather than a fresh arrival from the match hand-off.
type ReloadDetector interface {
	WasReloaded() bool
}

// ReloadFunc adapts a plain function to ReloadDetector.
type ReloadFunc func() bool

func (f ReloadFunc) WasReloaded() bool { return f() }

// InboundDestination is the per-participant-per-session queue the coordinator
// subscribes to.
func InboundDestination(localID, sessionID string) string {
	return stomp.UserQueue(localID, sessionID)
}

// Entry is one transcript line. FromSelf drives peer-vs-self styling.
type Entry struct {
	models.ChatMessage
	FromSelf bool
}

type Coordinator struct {
	store   sessionstore.Store
	history HistoryFetcher
	dial    ChannelFactory
	reload  ReloadDetector
	log     *zap.Logger

	mu         sync.Mutex
	handle     models.SessionHandle
	ch         Channel
	subID      string
	transcript []Entry
	draft      string
	closed     bool

	updates chan struct{}
}

func NewCoordinator(store sessionstore.Store, history HistoryFetcher, dial ChannelFactory, reload ReloadDetector, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store:   store,
		history: history,
		dial:    dial,
		reload:  reload,
		log:     log.Named("chat"),
		updates: make(chan struct{}, 1),
	}
}

// Activate resolves the session handle and opens the channel. A non-nil
// transient handle (the match hand-off) wins over the persisted one. When no
// valid handle is found it returns ErrInvalidSession without touching the
// network or the channel.
func (c *Coordinator) Activate(ctx context.Context, transient *models.SessionHandle) error {
	h, err := c.resolve(ctx, transient)
	if err != nil {
		return err
	}

	if err := sessionstore.SaveHandle(ctx, c.store, h); err != nil {
		c.log.Warn("re-persisting session handle", zap.Error(err))
	}

	var seed []Entry
	switch {
	case c.reload == nil || !c.reload.WasReloaded():
	case c.history == nil:
		c.log.Warn("reloaded without a history source, starting with an empty transcript",
			zap.String("session_id", h.SessionID))
	default:
		msgs, err := c.history.History(ctx, h.SessionID)
		if err != nil {
			c.log.Warn("history fetch failed, starting with an empty transcript",
				zap.String("session_id", h.SessionID), zap.Error(err))
		}
		for _, m := range msgs {
			seed = append(seed, entryFor(m, h.LocalParticipant.ParticipantID))
		}
	}

	c.mu.Lock()
	prev, prevClosed := c.ch, c.closed
	c.mu.Unlock()
	if prev != nil && !prevClosed {
		_ = prev.Close()
	}

	ch := c.dial(h.LocalParticipant)

	c.mu.Lock()
	c.handle = h
	c.ch = ch
	c.transcript = seed
	c.subID = ""
	c.closed = false
	c.mu.Unlock()

	c.notify()
	ch.Activate(ctx)
	c.log.Info("session activated",
		zap.String("session_id", h.SessionID),
		zap.String("peer_id", h.PeerParticipant.ParticipantID),
		zap.Int("history", len(seed)))
	return nil
}

func (c *Coordinator) resolve(ctx context.Context, transient *models.SessionHandle) (models.SessionHandle, error) {
	if transient != nil {
		if !transient.Valid() {
			return models.SessionHandle{}, ErrInvalidSession
		}
		return *transient, nil
	}

	h, found, err := sessionstore.LoadHandle(ctx, c.store)
	if err != nil {
		return models.SessionHandle{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !found || !h.Valid() {
		return models.SessionHandle{}, ErrInvalidSession
	}
	return h, nil
}

// Run consumes channel events until ctx is done or the channel stops. The
// channel is closed on return.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return ErrInvalidSession
	}
	defer c.Close()

	events := ch.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.dispatch(ch, ev)
		}
	}
}

func (c *Coordinator) dispatch(ch Channel, ev stomp.Event) {
	switch ev.Type {
	case stomp.EventConnected:
		c.subscribe(ch)
	case stomp.EventDisconnected:
		c.mu.Lock()
		c.subID = ""
		c.mu.Unlock()
		c.log.Warn("channel disconnected", zap.Error(ev.Err))
		c.notify()
	case stomp.EventError:
		c.log.Error("protocol error", zap.String("message", ev.Message), zap.ByteString("body", ev.Body))
	case stomp.EventMessage:
		c.receive(ev)
	}
}

func (c *Coordinator) subscribe(ch Channel) {
	c.mu.Lock()
	dest := InboundDestination(c.handle.LocalParticipant.ParticipantID, c.handle.SessionID)
	c.mu.Unlock()

	id, err := ch.Subscribe(dest)
	if err != nil {
		c.log.Error("subscribe failed", zap.String("destination", dest), zap.Error(err))
		return
	}

	c.mu.Lock()
	c.subID = id
	c.mu.Unlock()
	c.log.Debug("subscribed", zap.String("destination", dest), zap.String("subscription", id))
	c.notify()
}

func (c *Coordinator) receive(ev stomp.Event) {
	var msg models.ChatMessage
	if err := json.Unmarshal(ev.Body, &msg); err != nil {
		c.log.Warn("dropping undecodable message", zap.Error(err))
		return
	}

	c.mu.Lock()
	if ev.Subscription != "" && ev.Subscription != c.subID {
		c.mu.Unlock()
		c.log.Debug("dropping message from stale subscription", zap.String("subscription", ev.Subscription))
		return
	}
	c.transcript = append(c.transcript, entryFor(msg, c.handle.LocalParticipant.ParticipantID))
	c.mu.Unlock()
	c.notify()
}

// SendMessage publishes content to the peer. The message is appended to the
// transcript before the publish and the draft is cleared whether or not the
// publish succeeded. Rejected sends leave transcript and draft alone.
func (c *Coordinator) SendMessage(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		c.log.Debug("ignoring empty message")
		return ErrEmptyMessage
	}

	c.mu.Lock()
	h, ch := c.handle, c.ch
	c.mu.Unlock()

	if !h.Valid() {
		c.log.Warn("send without a valid session handle")
		return ErrInvalidSession
	}
	if ch == nil || ch.State() != stomp.Connected {
		c.log.Warn("send while not connected")
		return ErrNotConnected
	}

	msg := models.ChatMessage{
		SessionID:   h.SessionID,
		SenderID:    h.LocalParticipant.ParticipantID,
		RecipientID: h.PeerParticipant.ParticipantID,
		Content:     content,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, Entry{ChatMessage: msg, FromSelf: true})
	c.mu.Unlock()

	err = ch.Publish(config.SendDestination, body)

	c.mu.Lock()
	c.draft = ""
	c.mu.Unlock()
	c.notify()

	if err != nil {
		c.log.Warn("publish failed", zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// SetDraft replaces the compose input.
func (c *Coordinator) SetDraft(s string) {
	c.mu.Lock()
	c.draft = s
	c.mu.Unlock()
}

func (c *Coordinator) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SendDraft sends the compose input.
func (c *Coordinator) SendDraft() error {
	return c.SendMessage(c.Draft())
}

// Transcript returns a copy of the transcript in arrival order.
func (c *Coordinator) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Updates signals transcript or connection changes. Signals coalesce.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.updates
}

// State reports the channel state; Disconnected before Activate.
func (c *Coordinator) State() stomp.State {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return stomp.Disconnected
	}
	return ch.State()
}

// Handle returns the active session handle and whether one is set.
func (c *Coordinator) Handle() (models.SessionHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, c.handle.Valid()
}

// Close tears the channel down. Safe to call more than once.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed || c.ch == nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ch := c.ch
	c.mu.Unlock()

	c.log.Info("closing channel")
	return ch.Close()
}

func (c *Coordinator) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func entryFor(m models.ChatMessage, localID string) Entry {
	return Entry{ChatMessage: m, FromSelf: m.SenderID == localID}
}
