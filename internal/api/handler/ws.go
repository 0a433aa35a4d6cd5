package handler

import (
	"anonchat/app/internal/chathub"
	"anonchat/app/internal/stomp"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const handshakeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket, проводить STOMP
// CONNECT і реєструє клієнта в хабі. Учасник визначається заголовком login.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	participantID, err := h.handshake(conn)
	if err != nil {
		h.log.Info("handshake rejected", zap.Error(err))
		conn.Close()
		return
	}

	limiter := rate.NewLimiter(h.sendRate, h.sendBurst)
	client := chathub.NewWebSocketClient(h.Hub, conn, participantID, limiter, h.log)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}

type handshakeError string

func (e handshakeError) Error() string { return string(e) }

func (h *Handler) handshake(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	f, err := stomp.ReadFrame(conn)
	if err != nil {
		return "", err
	}
	if f == nil || (f.Command != frame.CONNECT && f.Command != frame.STOMP) {
		stomp.WriteFrame(conn, frame.New(frame.ERROR, frame.Message, "expected CONNECT"))
		return "", handshakeError("expected CONNECT")
	}

	login := strings.TrimSpace(f.Header.Get(frame.Login))
	if login == "" {
		stomp.WriteFrame(conn, frame.New(frame.ERROR, frame.Message, "login header required"))
		return "", handshakeError("missing login")
	}

	reply := frame.New(frame.CONNECTED,
		frame.Version, "1.2",
		frame.HeartBeat, "0,0",
		frame.Server, "anonchat/1.0",
	)
	if err := stomp.WriteFrame(conn, reply); err != nil {
		return "", err
	}
	conn.SetReadDeadline(time.Time{})
	return login, nil
}
