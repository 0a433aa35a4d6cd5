package chathub

import (
	"context"
	"fmt"
)

// StartPubSubListener підписується на канал повідомлень у Redis і передає все
// отримане в PubSubCh, звідки Run доставляє одержувачам на цьому інстансі.
func (m *ManagerService) StartPubSubListener(ctx context.Context) error {
	ch, err := m.Storage.SubscribeMessages(ctx)
	if err != nil {
		return fmt.Errorf("pub/sub listener: %w", err)
	}

	go func() {
		for msg := range ch {
			select {
			case m.PubSubCh <- msg:
			case <-ctx.Done():
				return
			}
		}
		m.log.Info("pub/sub listener stopped")
	}()
	m.log.Info("pub/sub listener started")
	return nil
}

// Start runs the pub/sub listener and the hub loop.
func (m *ManagerService) Start(ctx context.Context) error {
	if err := m.StartPubSubListener(ctx); err != nil {
		return err
	}
	go m.Run(ctx)
	return nil
}
