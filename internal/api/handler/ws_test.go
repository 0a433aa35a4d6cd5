package handler_test

import (
	"anonchat/app/internal/api/handler"
	"anonchat/app/internal/chathub"
	"anonchat/app/internal/config"
	"anonchat/app/internal/models"
	"anonchat/app/internal/stomp"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// startServer runs the hub and the routes over a storage mock whose pub/sub
// loops published messages straight back to the hub.
func startServer(t *testing.T) (wsURL string, s *MockStorage) {
	feed := make(chan models.ChatMessage, 16)
	s = new(MockStorage)
	s.On("SubscribeMessages", mock.Anything).Return(feed, nil)
	s.On("GetRoomByID", mock.Anything, "room1").
		Return(&models.ChatRoom{RoomID: "room1", User1ID: "user_A", User2ID: "user_B", IsActive: true}, nil)
	s.On("SaveMessage", mock.Anything, mock.Anything).Return(nil)
	s.On("PublishMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { feed <- args.Get(1).(models.ChatMessage) }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := chathub.NewManagerService(s, nil)
	require.NoError(t, hub.Start(ctx))

	r := gin.New()
	handler.NewHandler(hub, s, &config.ServerConfig{SendRatePerMinute: 6000, SendBurst: 50}, nil).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + config.RealtimePath, s
}

func connect(t *testing.T, url, login string) *stomp.Client {
	c := stomp.NewClient(stomp.Options{URL: url, Login: login})
	c.Activate(context.Background())
	t.Cleanup(func() { c.Close() })
	_, ok := nextEvent(t, c, stomp.EventConnected, time.Second)
	require.True(t, ok, "%s did not connect", login)
	return c
}

func nextEvent(t *testing.T, c *stomp.Client, want stomp.EventType, within time.Duration) (stomp.Event, bool) {
	t.Helper()
	timeout := time.After(within)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return stomp.Event{}, false
			}
			if ev.Type == want {
				return ev, true
			}
		case <-timeout:
			return stomp.Event{}, false
		}
	}
}

func TestRealtime_MessageReachesOnlyRecipient(t *testing.T) {
	url, _ := startServer(t)
	alice := connect(t, url, "user_A")
	bob := connect(t, url, "user_B")

	_, err := alice.Subscribe(stomp.UserQueue("user_A", "room1"))
	require.NoError(t, err)
	_, err = bob.Subscribe(stomp.UserQueue("user_B", "room1"))
	require.NoError(t, err)

	body, err := json.Marshal(models.ChatMessage{SessionID: "room1", SenderID: "spoofed", RecipientID: "user_B", Content: "hello"})
	require.NoError(t, err)

	// bob's SUBSCRIBE travels on another connection, so retry until it is in place
	var got stomp.Event
	var ok bool
	for i := 0; i < 20 && !ok; i++ {
		require.NoError(t, alice.Publish(config.SendDestination, body))
		got, ok = nextEvent(t, bob, stomp.EventMessage, 100*time.Millisecond)
	}
	require.True(t, ok, "bob never received the message")

	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(got.Body, &msg))
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "user_A", msg.SenderID, "sender comes from the CONNECT login")
	assert.Equal(t, "user_B", msg.RecipientID)
	assert.Equal(t, stomp.UserQueue("user_B", "room1"), got.Destination)
	assert.NotNil(t, msg.Timestamp)

	_, echoed := nextEvent(t, alice, stomp.EventMessage, 100*time.Millisecond)
	assert.False(t, echoed, "the sender does not get its own message back")
}

func TestRealtime_ForbiddenSubscription(t *testing.T) {
	url, _ := startServer(t)
	alice := connect(t, url, "user_A")

	_, err := alice.Subscribe(stomp.UserQueue("user_B", "room1"))
	require.NoError(t, err)

	ev, ok := nextEvent(t, alice, stomp.EventError, time.Second)
	require.True(t, ok)
	assert.Contains(t, ev.Message, "forbidden destination")
	assert.Equal(t, stomp.Connected, alice.State(), "protocol errors keep the connection")
}

func TestRealtime_ConnectWithoutLoginIsRejected(t *testing.T) {
	url, _ := startServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, stomp.WriteFrame(conn, frame.New(frame.CONNECT, frame.AcceptVersion, "1.2")))
	reply, err := stomp.ReadFrame(conn)

	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, frame.ERROR, reply.Command)
	assert.Equal(t, "login header required", reply.Header.Get(frame.Message))
}
