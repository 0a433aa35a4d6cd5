package chathub

import "anonchat/app/internal/models"

// Client is one realtime connection of one participant.
type Client interface {
	// GetParticipantID returns the participant the connection authenticated as.
	GetParticipantID() string

	// GetSendChannel returns the channel the hub uses to deliver messages
	// addressed to this participant.
	GetSendChannel() chan<- models.ChatMessage

	// Run starts the read and write pumps.
	Run()
	// Close stops the write pump, which closes the connection.
	Close()
}
