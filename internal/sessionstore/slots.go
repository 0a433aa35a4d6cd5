package sessionstore

import (
	"anonchat/app/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LoadIdentity reads the participant identity. found is false when the slot is empty.
func LoadIdentity(ctx context.Context, s Store) (p models.Participant, found bool, err error) {
	found, err = load(ctx, s, SlotParticipantIdentity, &p)
	return p, found, err
}

// SaveIdentity writes the participant identity.
func SaveIdentity(ctx context.Context, s Store, p models.Participant) error {
	return save(ctx, s, SlotParticipantIdentity, p)
}

// LoadHandle reads the current session handle. found is false when the slot is
// empty. The handle is returned as stored; callers check Valid themselves.
func LoadHandle(ctx context.Context, s Store) (h models.SessionHandle, found bool, err error) {
	found, err = load(ctx, s, SlotSessionHandle, &h)
	return h, found, err
}

// SaveHandle writes the current session handle.
func SaveHandle(ctx context.Context, s Store, h models.SessionHandle) error {
	return save(ctx, s, SlotSessionHandle, h)
}

// ClearHandle removes the session handle. Clearing an empty slot is not an error.
func ClearHandle(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, SlotSessionHandle); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear %s: %w", SlotSessionHandle, err)
	}
	return nil
}

func load(ctx context.Context, s Store, slot Slot, dst any) (bool, error) {
	data, err := s.Get(ctx, slot)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", slot, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, slot, err)
	}
	return true, nil
}

func save(ctx context.Context, s Store, slot Slot, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	if err := s.Set(ctx, slot, data); err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	return nil
}
