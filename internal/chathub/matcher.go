package chathub

import (
	"anonchat/app/internal/models"
	"anonchat/app/internal/storage"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatcherService відповідає за алгоритм пошуку співрозмовників.
type MatcherService struct {
	Storage  storage.Storage
	Interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewMatcherService створює новий Matcher.
func NewMatcherService(s storage.Storage, interval time.Duration, log *zap.Logger) *MatcherService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MatcherService{
		Storage:  s,
		Interval: interval,
		log:      log.Named("matcher"),
		now:      time.Now,
	}
}

// Run запускає MatchOnce кожні Interval до завершення ctx.
func (m *MatcherService) Run(ctx context.Context) {
	m.log.Info("matcher started", zap.Duration("interval", m.Interval))
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.MatchOnce(ctx); err != nil && ctx.Err() == nil {
				m.log.Warn("match pass failed", zap.Error(err))
			}
		}
	}
}

// MatchOnce walks the queue oldest first and pairs each participant with the
// oldest compatible one behind it. It returns the rooms it created.
func (m *MatcherService) MatchOnce(ctx context.Context) ([]models.ChatRoom, error) {
	ids, err := m.Storage.GetSearchingParticipants(ctx)
	if err != nil {
		return nil, err
	}

	queue := make([]*models.QueuedProfile, 0, len(ids))
	for _, id := range ids {
		p, err := m.Storage.GetProfile(ctx, id)
		if errors.Is(err, storage.ErrProfileNotFound) {
			// у черзі без профілю: прибираємо
			_ = m.Storage.RemoveFromSearchQueue(ctx, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		queue = append(queue, p)
	}

	var rooms []models.ChatRoom
	taken := make(map[string]bool)
	for i, a := range queue {
		if taken[a.ParticipantID] {
			continue
		}
		for _, b := range queue[i+1:] {
			if taken[b.ParticipantID] || !Compatible(a, b) {
				continue
			}

			room := models.ChatRoom{
				RoomID:    uuid.New().String(),
				User1ID:   a.ParticipantID,
				User2ID:   b.ParticipantID,
				IsActive:  true,
				StartedAt: m.now().UTC(),
			}
			if err := m.Storage.SaveRoom(ctx, &room); err != nil {
				return rooms, err
			}
			if err := m.Storage.RemoveFromSearchQueue(ctx, a.ParticipantID, b.ParticipantID); err != nil {
				return rooms, err
			}
			taken[a.ParticipantID] = true
			taken[b.ParticipantID] = true
			rooms = append(rooms, room)

			m.log.Info("match found",
				zap.String("session_id", room.RoomID),
				zap.String("user1", a.ParticipantID),
				zap.String("user2", b.ParticipantID))
			break
		}
	}
	return rooms, nil
}

// Compatible reports whether a and b may be paired: different participants,
// neither blocks the other, each one's gender preference accepts the other,
// and, when both enabled the interest filter, at least one shared interest.
func Compatible(a, b *models.QueuedProfile) bool {
	if a.ParticipantID == b.ParticipantID {
		return false
	}
	if slices.Contains(a.BlockedUsers, b.ParticipantID) || slices.Contains(b.BlockedUsers, a.ParticipantID) {
		return false
	}
	if !accepts(a.GenderPreference, b.Gender) || !accepts(b.GenderPreference, a.Gender) {
		return false
	}
	if a.InterestFilterEnabled && b.InterestFilterEnabled {
		return sharesInterest(a.Interests, b.Interests)
	}
	return true
}

func accepts(pref models.GenderPreference, g models.Gender) bool {
	switch pref {
	case models.PreferMale:
		return g == models.GenderMale
	case models.PreferFemale:
		return g == models.GenderFemale
	}
	return true
}

func sharesInterest(a, b []string) bool {
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[strings.ToLower(strings.TrimSpace(s))]; ok {
			return true
		}
	}
	return false
}
