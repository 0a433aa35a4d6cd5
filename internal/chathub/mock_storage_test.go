package chathub_test

import (
	"anonchat/app/internal/models"
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveProfile(ctx context.Context, p *models.QueuedProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockStorage) GetProfile(ctx context.Context, participantID string) (*models.QueuedProfile, error) {
	args := m.Called(ctx, participantID)
	p, _ := args.Get(0).(*models.QueuedProfile)
	return p, args.Error(1)
}

func (m *MockStorage) AddToSearchQueue(ctx context.Context, participantID string, at time.Time) error {
	args := m.Called(ctx, participantID, at)
	return args.Error(0)
}

func (m *MockStorage) RemoveFromSearchQueue(ctx context.Context, participantIDs ...string) error {
	args := m.Called(ctx, participantIDs)
	return args.Error(0)
}

func (m *MockStorage) GetSearchingParticipants(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockStorage) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStorage) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*models.ChatRoom)
	return room, args.Error(1)
}

func (m *MockStorage) GetActiveRoomIDForParticipant(ctx context.Context, participantID string) (string, error) {
	args := m.Called(ctx, participantID)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) CloseRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockStorage) SaveMessage(ctx context.Context, h *models.ChatHistory) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockStorage) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error) {
	args := m.Called(ctx, roomID)
	h, _ := args.Get(0).([]models.ChatHistory)
	return h, args.Error(1)
}

func (m *MockStorage) PublishMessage(ctx context.Context, msg models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) SubscribeMessages(ctx context.Context) (<-chan models.ChatMessage, error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(chan models.ChatMessage)
	return ch, args.Error(1)
}
