// Package profile collects the participant profile, keeps the participant
// identity stable across runs and enqueues the profile with the matching service.
package profile

import (
	"anonchat/app/internal/models"
	"anonchat/app/internal/sessionstore"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrIncomplete means a required field is missing or invalid.
	ErrIncomplete = errors.New("profile is incomplete")
	// ErrEnqueueFailed means the matching service did not accept the profile.
	// The user is expected to retry.
	ErrEnqueueFailed = errors.New("could not join the matching queue")
)

// Enqueuer is the part of the matching service used here.
type Enqueuer interface {
	Enqueue(ctx context.Context, profile models.QueuedProfile) error
}

// Submitter owns the participant identity slot of the session store.
type Submitter struct {
	store   sessionstore.Store
	api     Enqueuer
	region  string
	country string
	log     *zap.Logger
}

func NewSubmitter(store sessionstore.Store, api Enqueuer, region, country string, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{
		store:   store,
		api:     api,
		region:  region,
		country: country,
		log:     log.Named("profile"),
	}
}

// Prefill returns a form populated from the persisted identity, or an empty
// form on first use.
func (s *Submitter) Prefill(ctx context.Context) Form {
	p, found, err := sessionstore.LoadIdentity(ctx, s.store)
	if err != nil {
		s.log.Warn("could not read identity, starting with an empty form", zap.Error(err))
		return Form{}
	}
	if !found {
		return Form{}
	}
	return FormFromParticipant(p)
}

// Submit validates the form, persists the merged identity and then enqueues
// the profile. The identity is written before the request so a failed request
// never loses what the user typed. On ErrEnqueueFailed the returned identity
// is still the persisted one.
func (s *Submitter) Submit(ctx context.Context, f Form) (models.Participant, error) {
	if err := f.Validate(); err != nil {
		return models.Participant{}, fmt.Errorf("%w: %v", ErrIncomplete, err)
	}

	identity, err := s.loadOrCreate(ctx)
	if err != nil {
		return models.Participant{}, err
	}
	identity = f.apply(identity)

	if err := sessionstore.SaveIdentity(ctx, s.store, identity); err != nil {
		return identity, fmt.Errorf("persist identity: %w", err)
	}

	queued := models.NewQueuedProfile(identity, s.region, s.country)
	if err := s.api.Enqueue(ctx, queued); err != nil {
		s.log.Warn("enqueue failed", zap.String("participant_id", identity.ParticipantID), zap.Error(err))
		return identity, fmt.Errorf("%w: %w", ErrEnqueueFailed, err)
	}

	s.log.Info("profile enqueued",
		zap.String("participant_id", identity.ParticipantID),
		zap.String("gender", string(queued.Gender)),
		zap.String("preference", string(queued.GenderPreference)),
		zap.Int("interests", len(queued.Interests)),
	)
	return identity, nil
}

// loadOrCreate returns the persisted identity, generating an ID on first use.
// An unreadable store aborts instead of minting a new identity, since that
// would silently change who the participant is.
func (s *Submitter) loadOrCreate(ctx context.Context) (models.Participant, error) {
	identity, found, err := sessionstore.LoadIdentity(ctx, s.store)
	switch {
	case errors.Is(err, sessionstore.ErrCorrupt):
		s.log.Warn("stored identity is corrupt, creating a new one", zap.Error(err))
		found = false
	case err != nil:
		return models.Participant{}, fmt.Errorf("load identity: %w", err)
	}

	if !found {
		identity = models.Participant{}
	}
	if identity.EnsureID() {
		s.log.Info("new participant identity", zap.String("participant_id", identity.ParticipantID))
	}
	return identity, nil
}
