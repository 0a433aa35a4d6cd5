package handler

import (
	"anonchat/app/internal/chathub"
	"anonchat/app/internal/config"
	"anonchat/app/internal/models"
	"anonchat/app/internal/storage"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler serves the matching, history and realtime endpoints.
type Handler struct {
	Hub     *chathub.ManagerService
	Storage storage.Storage

	sendRate  rate.Limit
	sendBurst int
	log       *zap.Logger
	now       func() time.Time
}

func NewHandler(hub *chathub.ManagerService, s storage.Storage, cfg *config.ServerConfig, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		Hub:       hub,
		Storage:   s,
		sendRate:  rate.Inf,
		sendBurst: 1,
		log:       log.Named("api"),
		now:       time.Now,
	}
	if cfg != nil && cfg.SendRatePerMinute > 0 {
		h.sendRate = rate.Every(time.Minute / time.Duration(cfg.SendRatePerMinute))
		h.sendBurst = max(cfg.SendBurst, 1)
	}
	return h
}

// Register mounts all routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/enqueue", h.Enqueue)
	r.GET("/getMatch", h.GetMatch)
	r.GET("/messages/:sessionId", h.GetMessages)
	r.GET(config.RealtimePath, h.ServeWebSocket)
}

// Enqueue зберігає профіль і ставить учасника в чергу пошуку. Попередня
// активна кімната учасника закривається.
func (h *Handler) Enqueue(c *gin.Context) {
	var p models.QueuedProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile"})
		return
	}
	p.ParticipantID = strings.TrimSpace(p.ParticipantID)
	if p.ParticipantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participantId is required"})
		return
	}
	gender, ok := models.NormalizeGender(string(p.Gender))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gender"})
		return
	}
	pref, ok := models.NormalizeGenderPreference(string(p.GenderPreference))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid genderPreference"})
		return
	}
	// матчер порівнює з константами MALE/FEMALE/BOTH
	p.Gender, p.GenderPreference = gender, pref

	ctx := c.Request.Context()
	roomID, err := h.Storage.GetActiveRoomIDForParticipant(ctx, p.ParticipantID)
	if err != nil {
		h.fail(c, "lookup active room", err)
		return
	}
	if roomID != "" {
		if err := h.Storage.CloseRoom(ctx, roomID); err != nil {
			h.fail(c, "close previous room", err)
			return
		}
	}

	p.QueuedAt = h.now().UTC()
	if err := h.Storage.SaveProfile(ctx, &p); err != nil {
		h.fail(c, "save profile", err)
		return
	}
	if err := h.Storage.AddToSearchQueue(ctx, p.ParticipantID, p.QueuedAt); err != nil {
		h.fail(c, "enqueue", err)
		return
	}

	h.log.Info("participant queued", zap.String("participant_id", p.ParticipantID))
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// GetMatch reports the participant's active room, if any.
func (h *Handler) GetMatch(c *gin.Context) {
	id := strings.TrimSpace(c.Query("participantId"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participantId is required"})
		return
	}

	ctx := c.Request.Context()
	roomID, err := h.Storage.GetActiveRoomIDForParticipant(ctx, id)
	if err != nil {
		h.fail(c, "lookup active room", err)
		return
	}
	if roomID == "" {
		c.JSON(http.StatusOK, models.MatchResponse{MatchFound: false})
		return
	}

	room, err := h.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		h.fail(c, "load room", err)
		return
	}
	user1, err := h.Storage.GetProfile(ctx, room.User1ID)
	if err != nil {
		h.fail(c, "load profile", err)
		return
	}
	user2, err := h.Storage.GetProfile(ctx, room.User2ID)
	if err != nil {
		h.fail(c, "load profile", err)
		return
	}

	c.JSON(http.StatusOK, models.MatchResponse{
		MatchFound: true,
		SessionID:  room.RoomID,
		User1:      user1,
		User2:      user2,
	})
}

// GetMessages returns the session history, oldest first.
func (h *Handler) GetMessages(c *gin.Context) {
	sessionID := c.Param("sessionId")

	history, err := h.Storage.GetChatHistory(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, "load history", err)
		return
	}

	out := make([]models.ChatMessage, 0, len(history))
	for _, row := range history {
		out = append(out, row.ToMessage())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrRoomNotFound) || errors.Is(err, storage.ErrProfileNotFound) {
		status = http.StatusNotFound
	}
	h.log.Error(op, zap.Error(err))
	c.JSON(status, gin.H{"error": op + " failed"})
}
