// Package sessionstore is the durable key-value store that survives client
// restarts. It holds exactly two slots: the participant identity and the
// current session handle.
package sessionstore

import (
	"context"
	"errors"
)

// Slot names one value in the store.
type Slot string

const (
	SlotParticipantIdentity Slot = "participantIdentity"
	SlotSessionHandle       Slot = "sessionHandle"
)

var (
	// ErrNotFound is returned when a slot has never been written or was deleted.
	ErrNotFound = errors.New("sessionstore: slot is empty")
	// ErrCorrupt is returned when a slot holds data that cannot be decoded.
	ErrCorrupt = errors.New("sessionstore: slot data is corrupt")
)

// Store is the persistence used by profile submission, the match loop and the
// chat coordinator. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, slot Slot) ([]byte, error)
	Set(ctx context.Context, slot Slot, value []byte) error
	Delete(ctx context.Context, slot Slot) error
}
