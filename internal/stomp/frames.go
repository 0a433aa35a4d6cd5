// Package stomp implements the realtime channel: STOMP 1.2 frames carried
// one per websocket text message.
package stomp

import (
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ReadFrame reads the next frame from the websocket. A nil frame with a nil
// error is a heart-beat.
func ReadFrame(conn *websocket.Conn) (*frame.Frame, error) {
	_, r, err := conn.NextReader()
	if err != nil {
		return nil, err
	}
	return frame.NewReader(r).Read()
}

// WriteFrame writes one frame as one websocket text message. Callers must not
// write concurrently on the same connection.
func WriteFrame(conn *websocket.Conn, f *frame.Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if err := frame.NewWriter(w).Write(f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// UserQueue is the per-participant-per-session inbound address.
func UserQueue(participantID, sessionID string) string {
	return "/user/" + participantID + "/queue/chat." + sessionID
}
