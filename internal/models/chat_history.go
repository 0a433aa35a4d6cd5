package models

import "gorm.io/gorm"

// ChatHistory represents a saved chat message in the PostgreSQL database.
// The embedded gorm.Model provides ID, CreatedAt, UpdatedAt, and DeletedAt fields,
// which serve as the message ID and timestamps.
type ChatHistory struct {
	gorm.Model

	// RoomID is the identifier of the session where the message was sent.
	RoomID string `gorm:"type:uuid;not null;index:idx_room_msg"`
	// SenderID is the participant ID of the author.
	SenderID string `gorm:"type:text;not null;index:idx_room_msg"`
	// RecipientID is the participant ID of the partner.
	RecipientID string `gorm:"type:text;not null"`
	// Content is the message text.
	Content string `gorm:"type:text;not null"`
}

// ToMessage converts a stored row into the wire message.
func (h ChatHistory) ToMessage() ChatMessage {
	ts := h.CreatedAt
	return ChatMessage{
		SessionID:   h.RoomID,
		SenderID:    h.SenderID,
		RecipientID: h.RecipientID,
		Content:     h.Content,
		Timestamp:   &ts,
	}
}
