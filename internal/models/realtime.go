package models

import "time"

// ChatMessage is a single chat line exchanged over the realtime channel and
// returned by the history endpoint.
type ChatMessage struct {
	SessionID   string     `json:"sessionId"`
	SenderID    string     `json:"senderId"`
	RecipientID string     `json:"recipientId"`
	Content     string     `json:"content"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// MatchResponse is the body of GET /getMatch.
type MatchResponse struct {
	MatchFound bool           `json:"matchFound"`
	SessionID  string         `json:"sessionId,omitempty"`
	User1      *QueuedProfile `json:"user1,omitempty"`
	User2      *QueuedProfile `json:"user2,omitempty"`
}
