package chathub_test

import (
	"anonchat/app/internal/models"
	"sync/atomic"
)

type MockClient struct {
	participantID string
	RecvChannel   chan models.ChatMessage
	closed        atomic.Int32
}

func newMockClient(participantID string) *MockClient {
	return &MockClient{
		participantID: participantID,
		RecvChannel:   make(chan models.ChatMessage, 10),
	}
}

func (c *MockClient) GetParticipantID() string { return c.participantID }

func (c *MockClient) GetSendChannel() chan<- models.ChatMessage { return c.RecvChannel }

func (c *MockClient) Run() {}

func (c *MockClient) Close() { c.closed.Add(1) }

func (c *MockClient) Closed() int { return int(c.closed.Load()) }
