package models

import (
	"strings"
	"time"
)

// PeerParticipant is the partner side of a session handle.
type PeerParticipant struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

// SessionHandle binds the local participant and its peer into one chat session.
// It is the only source of truth for "is there an active session".
type SessionHandle struct {
	SessionID        string          `json:"sessionId"`
	LocalParticipant Participant     `json:"localParticipant"`
	PeerParticipant  PeerParticipant `json:"peerParticipant"`
}

// Valid reports whether the handle carries the session ID and both participant IDs.
func (h *SessionHandle) Valid() bool {
	if h == nil {
		return false
	}
	return strings.TrimSpace(h.SessionID) != "" &&
		strings.TrimSpace(h.LocalParticipant.ParticipantID) != "" &&
		strings.TrimSpace(h.PeerParticipant.ParticipantID) != ""
}

// ChatRoom represents a 1-on-1 chat session between two participants on the
// reference server. RoomID is the session ID handed to clients.
type ChatRoom struct {
	// RoomID is the unique identifier for the chat room (UUID).
	RoomID string `gorm:"primaryKey"`
	// User1ID is the participant ID of the first participant.
	User1ID string `gorm:"index"`
	// User2ID is the participant ID of the second participant.
	User2ID string `gorm:"index"`
	// IsActive indicates whether the chat room is currently active.
	IsActive bool
	// StartedAt is the timestamp when the chat room was created.
	StartedAt time.Time
	// EndedAt is the timestamp when the chat room was closed.
	EndedAt *time.Time
}

// HasParticipant reports whether id is one of the two room members.
func (r *ChatRoom) HasParticipant(id string) bool {
	return id != "" && (r.User1ID == id || r.User2ID == id)
}

// PartnerOf returns the other member of the room, or "" if id is not a member.
func (r *ChatRoom) PartnerOf(id string) string {
	switch id {
	case r.User1ID:
		return r.User2ID
	case r.User2ID:
		return r.User1ID
	}
	return ""
}
