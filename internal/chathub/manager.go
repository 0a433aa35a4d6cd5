package chathub

import (
	"anonchat/app/internal/models"
	"anonchat/app/internal/storage"
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotRoomMember = errors.New("sender is not a member of the room")
	ErrRoomClosed    = errors.New("room is closed")
)

// ManagerService is the hub: it owns the connected clients and routes every
// message. All map access happens on the Run goroutine.
type ManagerService struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan models.ChatMessage
	PubSubCh     chan models.ChatMessage

	Storage storage.Storage
	log     *zap.Logger
	done    chan struct{}
}

func NewManagerService(s storage.Storage, log *zap.Logger) *ManagerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan models.ChatMessage, 64),
		PubSubCh:     make(chan models.ChatMessage, 64),
		Storage:      s,
		log:          log.Named("hub"),
		done:         make(chan struct{}),
	}
}

// Register hands c to the hub. It reports false once the hub has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c if it is still the participant's current connection.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Submit queues a message received from a client for routing.
func (m *ManagerService) Submit(msg models.ChatMessage) bool {
	select {
	case m.IncomingCh <- msg:
		return true
	case <-m.done:
		return false
	}
}

// Run обробляє реєстрацію клієнтів та маршрутизацію повідомлень до ctx.Done().
func (m *ManagerService) Run(ctx context.Context) {
	m.log.Info("hub started")
	defer close(m.done)
	defer func() {
		for id, c := range m.Clients {
			c.Close()
			delete(m.Clients, id)
		}
		m.log.Info("hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.RegisterCh:
			id := client.GetParticipantID()
			if old, ok := m.Clients[id]; ok && old != client {
				// одна сесія на учасника: старе з'єднання закриваємо
				m.log.Info("replacing connection", zap.String("participant_id", id))
				old.Close()
			}
			m.Clients[id] = client

		case client := <-m.UnregisterCh:
			id := client.GetParticipantID()
			if current, ok := m.Clients[id]; ok && current == client {
				delete(m.Clients, id)
				client.Close()
			}

		case msg := <-m.IncomingCh:
			if err := m.handleIncomingMessage(ctx, msg); err != nil {
				m.log.Warn("dropping message",
					zap.String("session_id", msg.SessionID),
					zap.String("sender_id", msg.SenderID),
					zap.Error(err))
			}

		case msg := <-m.PubSubCh:
			m.deliver(msg)
		}
	}
}

// handleIncomingMessage перевіряє кімнату, зберігає повідомлення в історію та
// публікує його для доставки одержувачу.
func (m *ManagerService) handleIncomingMessage(ctx context.Context, msg models.ChatMessage) error {
	msg.Content = strings.TrimSpace(msg.Content)
	if msg.Content == "" {
		return errors.New("empty content")
	}

	room, err := m.Storage.GetRoomByID(ctx, msg.SessionID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(msg.SenderID) {
		return ErrNotRoomMember
	}
	if !room.IsActive {
		return ErrRoomClosed
	}
	// одержувач завжди партнер по кімнаті, а не те, що прислав клієнт
	msg.RecipientID = room.PartnerOf(msg.SenderID)

	history := models.ChatHistory{
		RoomID:      room.RoomID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
	}
	if err := m.Storage.SaveMessage(ctx, &history); err != nil {
		return err
	}
	ts := history.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	msg.Timestamp = &ts

	return m.Storage.PublishMessage(ctx, msg)
}

// deliver sends msg to the recipient only, if it is connected to this
// instance. A client that cannot keep up is dropped.
func (m *ManagerService) deliver(msg models.ChatMessage) {
	client, ok := m.Clients[msg.RecipientID]
	if !ok {
		return
	}
	select {
	case client.GetSendChannel() <- msg:
	default:
		m.log.Warn("client send buffer full, disconnecting", zap.String("participant_id", msg.RecipientID))
		delete(m.Clients, msg.RecipientID)
		client.Close()
	}
}
