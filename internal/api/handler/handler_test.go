package handler_test

import (
	"anonchat/app/internal/api/handler"
	"anonchat/app/internal/chathub"
	"anonchat/app/internal/config"
	"anonchat/app/internal/models"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(s *MockStorage) *gin.Engine {
	hub := chathub.NewManagerService(s, nil)
	h := handler.NewHandler(hub, s, &config.ServerConfig{SendRatePerMinute: 600, SendBurst: 5}, nil)
	r := gin.New()
	h.Register(r)
	return r
}

func do(r http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func queuedJSON(t *testing.T, mutate func(p *models.QueuedProfile)) []byte {
	p := models.NewQueuedProfile(models.Participant{
		ParticipantID:    "user_A",
		DisplayName:      "Ann",
		BirthYear:        1998,
		Gender:           models.GenderFemale,
		GenderPreference: models.PreferBoth,
	}, "EU", "UA")
	if mutate != nil {
		mutate(&p)
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return data
}

func TestEnqueue(t *testing.T) {
	s := new(MockStorage)
	s.On("GetActiveRoomIDForParticipant", mock.Anything, "user_A").Return("", nil)
	s.On("SaveProfile", mock.Anything, mock.MatchedBy(func(p *models.QueuedProfile) bool {
		return p.ParticipantID == "user_A" && p.Name == "Ann" && !p.QueuedAt.IsZero()
	})).Return(nil)
	s.On("AddToSearchQueue", mock.Anything, "user_A", mock.AnythingOfType("time.Time")).Return(nil)

	w := do(newRouter(s), http.MethodPost, "/enqueue", queuedJSON(t, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	s.AssertExpectations(t)
	s.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
}

// TestEnqueue_StoresNormalizedGenders verifies free-form genders are saved in
// the form the matcher compares against.
func TestEnqueue_StoresNormalizedGenders(t *testing.T) {
	var saved *models.QueuedProfile
	s := new(MockStorage)
	s.On("GetActiveRoomIDForParticipant", mock.Anything, "user_A").Return("", nil)
	s.On("SaveProfile", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.QueuedProfile)
	}).Return(nil)
	s.On("AddToSearchQueue", mock.Anything, "user_A", mock.Anything).Return(nil)

	body := queuedJSON(t, func(p *models.QueuedProfile) {
		p.Gender = "woman"
		p.GenderPreference = "man"
	})
	w := do(newRouter(s), http.MethodPost, "/enqueue", body)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, saved)
	assert.Equal(t, models.GenderFemale, saved.Gender)
	assert.Equal(t, models.PreferMale, saved.GenderPreference)

	peer := &models.QueuedProfile{ParticipantID: "user_B", Gender: models.GenderMale, GenderPreference: models.PreferBoth}
	assert.True(t, chathub.Compatible(saved, peer))
}

func TestEnqueue_ClosesPreviousRoom(t *testing.T) {
	s := new(MockStorage)
	s.On("GetActiveRoomIDForParticipant", mock.Anything, "user_A").Return("old-room", nil)
	s.On("CloseRoom", mock.Anything, "old-room").Return(nil).Once()
	s.On("SaveProfile", mock.Anything, mock.Anything).Return(nil)
	s.On("AddToSearchQueue", mock.Anything, "user_A", mock.Anything).Return(nil)

	w := do(newRouter(s), http.MethodPost, "/enqueue", queuedJSON(t, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	s.AssertExpectations(t)
}

func TestEnqueue_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("{")},
		{"missing id", queuedJSON(t, func(p *models.QueuedProfile) { p.ParticipantID = " " })},
		{"bad gender", queuedJSON(t, func(p *models.QueuedProfile) { p.Gender = "robot" })},
		{"bad preference", queuedJSON(t, func(p *models.QueuedProfile) { p.GenderPreference = "" })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockStorage)

			w := do(newRouter(s), http.MethodPost, "/enqueue", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			s.AssertNotCalled(t, "SaveProfile", mock.Anything, mock.Anything)
		})
	}
}

func TestEnqueue_StorageFailure(t *testing.T) {
	s := new(MockStorage)
	s.On("GetActiveRoomIDForParticipant", mock.Anything, "user_A").Return("", nil)
	s.On("SaveProfile", mock.Anything, mock.Anything).Return(errors.New("db down"))

	w := do(newRouter(s), http.MethodPost, "/enqueue", queuedJSON(t, nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	s.AssertNotCalled(t, "AddToSearchQueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMatch_NotYet(t *testing.T) {
	s := new(MockStorage)
	s.On("GetActiveRoomIDForParticipant", mock.Anything, "user_A").Return("", nil)

	w := do(newRouter(s), http.MethodGet, "/getMatch?participantId=user_A", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matchFound":false}`, w.Body.String())
}

func TestGetMatch_Found(t *testing.T) {
	s := new(MockStorage)
	s.On("GetActiveRoomIDForParticipant", mock.Anything, "user_B").Return("room1", nil)
	s.On("GetRoomByID", mock.Anything, "room1").Return(&models.ChatRoom{RoomID: "room1", User1ID: "user_A", User2ID: "user_B", IsActive: true}, nil)
	s.On("GetProfile", mock.Anything, "user_A").Return(&models.QueuedProfile{ParticipantID: "user_A", Name: "Ann", Interests: pq.StringArray{}}, nil)
	s.On("GetProfile", mock.Anything, "user_B").Return(&models.QueuedProfile{ParticipantID: "user_B", Name: "Bob"}, nil)

	w := do(newRouter(s), http.MethodGet, "/getMatch?participantId=user_B", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.MatchFound)
	assert.Equal(t, "room1", resp.SessionID)
	require.NotNil(t, resp.User1)
	require.NotNil(t, resp.User2)
	assert.Equal(t, "user_A", resp.User1.ParticipantID)
	assert.Equal(t, "Bob", resp.User2.Name)
}

func TestGetMatch_MissingParticipant(t *testing.T) {
	w := do(newRouter(new(MockStorage)), http.MethodGet, "/getMatch", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessages(t *testing.T) {
	first := models.ChatHistory{RoomID: "room1", SenderID: "user_A", RecipientID: "user_B", Content: "one"}
	first.CreatedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	second := models.ChatHistory{RoomID: "room1", SenderID: "user_B", RecipientID: "user_A", Content: "two"}
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	s := new(MockStorage)
	s.On("GetChatHistory", mock.Anything, "room1").Return([]models.ChatHistory{first, second}, nil)
	s.On("GetChatHistory", mock.Anything, "empty").Return([]models.ChatHistory{}, nil)
	s.On("GetChatHistory", mock.Anything, "broken").Return(nil, errors.New("db down"))
	r := newRouter(s)

	w := do(r, http.MethodGet, "/messages/room1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "user_B", msgs[1].SenderID)
	require.NotNil(t, msgs[0].Timestamp)
	assert.True(t, msgs[0].Timestamp.Equal(first.CreatedAt))

	w = do(r, http.MethodGet, "/messages/empty", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodGet, "/messages/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
