package storage

import (
	"anonchat/app/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	searchQueueKey  = "search_queue"
	messagesChannel = "chat:messages"
)

var (
	ErrRoomNotFound    = errors.New("chat room not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// Storage is everything the reference backend persists: profiles and rooms
// in PostgreSQL, the search queue and message fan-out in Redis.
type Storage interface {
	SaveProfile(ctx context.Context, p *models.QueuedProfile) error
	GetProfile(ctx context.Context, participantID string) (*models.QueuedProfile, error)

	AddToSearchQueue(ctx context.Context, participantID string, at time.Time) error
	RemoveFromSearchQueue(ctx context.Context, participantIDs ...string) error
	GetSearchingParticipants(ctx context.Context) ([]string, error)

	SaveRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetActiveRoomIDForParticipant(ctx context.Context, participantID string) (string, error)
	CloseRoom(ctx context.Context, roomID string) error

	SaveMessage(ctx context.Context, h *models.ChatHistory) error
	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error)

	PublishMessage(ctx context.Context, msg models.ChatMessage) error
	SubscribeMessages(ctx context.Context) (<-chan models.ChatMessage, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Log   *zap.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{DB: db, Redis: rdb, Log: log.Named("storage")}
}

// Migrate створює таблиці для всіх моделей сервера
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.QueuedProfile{},
		&models.ChatRoom{},
		&models.ChatHistory{},
	)
}

// SaveProfile зберігає (або оновлює) профіль учасника
func (s *Service) SaveProfile(ctx context.Context, p *models.QueuedProfile) error {
	return s.DB.WithContext(ctx).Save(p).Error
}

func (s *Service) GetProfile(ctx context.Context, participantID string) (*models.QueuedProfile, error) {
	var p models.QueuedProfile
	err := s.DB.WithContext(ctx).Where("participant_id = ?", participantID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddToSearchQueue додає учасника до черги пошуку. Score = час входу, тому
// черга впорядкована FIFO.
func (s *Service) AddToSearchQueue(ctx context.Context, participantID string, at time.Time) error {
	return s.Redis.ZAdd(ctx, searchQueueKey, redis.Z{
		Score:  float64(at.UnixNano()),
		Member: participantID,
	}).Err()
}

func (s *Service) RemoveFromSearchQueue(ctx context.Context, participantIDs ...string) error {
	if len(participantIDs) == 0 {
		return nil
	}
	members := make([]any, len(participantIDs))
	for i, id := range participantIDs {
		members[i] = id
	}
	return s.Redis.ZRem(ctx, searchQueueKey, members...).Err()
}

// GetSearchingParticipants повертає всіх, хто шукає пару, від найстаршого запиту
func (s *Service) GetSearchingParticipants(ctx context.Context) ([]string, error) {
	return s.Redis.ZRange(ctx, searchQueueKey, 0, -1).Result()
}

// SaveRoom зберігає кімнату в PostgreSQL
func (s *Service) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	return s.DB.WithContext(ctx).Save(room).Error
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &room, nil
}

// GetActiveRoomIDForParticipant знаходить активну кімнату учасника, "" якщо її немає.
func (s *Service) GetActiveRoomIDForParticipant(ctx context.Context, participantID string) (string, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Where("user1_id = ? OR user2_id = ?", participantID, participantID).
		Order("started_at desc").
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return room.RoomID, nil
}

// CloseRoom закриває кімнату, встановлюючи IsActive = false та EndedAt
func (s *Service) CloseRoom(ctx context.Context, roomID string) error {
	return s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		}).Error
}

// SaveMessage зберігає повідомлення; після Create заповнені ID та CreatedAt.
func (s *Service) SaveMessage(ctx context.Context, h *models.ChatHistory) error {
	if err := s.DB.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("save message for room %s: %w", h.RoomID, err)
	}
	return nil
}

// GetChatHistory отримує історію кімнати у порядку створення
func (s *Service) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error) {
	history := []models.ChatHistory{}
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at asc, id asc").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// PublishMessage публікує повідомлення в Redis Pub/Sub, щоб його доставив той
// інстанс сервера, до якого під'єднаний одержувач.
func (s *Service) PublishMessage(ctx context.Context, msg models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, messagesChannel, payload).Err()
}

// SubscribeMessages слухає канал повідомлень до завершення ctx.
func (s *Service) SubscribeMessages(ctx context.Context) (<-chan models.ChatMessage, error) {
	pubsub := s.Redis.Subscribe(ctx, messagesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", messagesChannel, err)
	}

	out := make(chan models.ChatMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var chatMsg models.ChatMessage
				if err := json.Unmarshal([]byte(msg.Payload), &chatMsg); err != nil {
					s.Log.Warn("dropping undecodable pub/sub message", zap.Error(err))
					continue
				}
				select {
				case out <- chatMsg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
