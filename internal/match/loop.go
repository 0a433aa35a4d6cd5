// Package match polls the matching service until the local participant is
// paired, then produces and persists the session handle.
package match

import (
	"anonchat/app/internal/config"
	"anonchat/app/internal/models"
	"anonchat/app/internal/sessionstore"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// State of the loop.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateMatched
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateMatched:
		return "matched"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNoIdentity = errors.New("match: local participant has no id")
	// ErrGaveUp is returned only when a custom backoff returns backoff.Stop.
	ErrGaveUp = errors.New("match: backoff stopped polling")
)

// Querier is the match-status part of the matching service.
type Querier interface {
	GetMatch(ctx context.Context, participantID string) (models.MatchResponse, error)
}

// Loop runs one match acquisition at a time. Only the goroutine calling Run
// issues queries, so there is never more than one request in flight.
type Loop struct {
	store    sessionstore.Store
	api      Querier
	debounce time.Duration
	backoff  backoff.BackOff
	log      *zap.Logger

	mu       sync.Mutex
	state    State
	attempts int
}

type Option func(*Loop)

// WithDebounce sets the wait between entering the loop and the first query.
func WithDebounce(d time.Duration) Option {
	return func(l *Loop) { l.debounce = d }
}

// WithBackOff sets the wait strategy between unsuccessful queries.
func WithBackOff(b backoff.BackOff) Option {
	return func(l *Loop) { l.backoff = b }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Loop) { l.log = log.Named("match") }
}

func NewLoop(store sessionstore.Store, api Querier, opts ...Option) *Loop {
	l := &Loop{
		store:    store,
		api:      api,
		debounce: config.DefaultMatchDebounce,
		backoff:  backoff.NewConstantBackOff(config.DefaultMatchPollInterval),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current loop state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attempts returns how many queries the current run has issued.
func (l *Loop) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run polls until a match is found or ctx is cancelled. Query failures are
// logged and treated as "no match yet"; there is no retry cap. When ctx is
// cancelled, a response that arrives late is discarded and the session store
// is left untouched.
func (l *Loop) Run(ctx context.Context, local models.Participant) (models.SessionHandle, error) {
	if local.ParticipantID == "" {
		return models.SessionHandle{}, ErrNoIdentity
	}

	l.mu.Lock()
	l.state = StatePolling
	l.attempts = 0
	l.mu.Unlock()
	l.backoff.Reset()

	log := l.log.With(zap.String("participant_id", local.ParticipantID))

	if err := sleep(ctx, l.debounce); err != nil {
		l.setState(StateIdle)
		return models.SessionHandle{}, err
	}

	for {
		l.mu.Lock()
		l.attempts++
		attempt := l.attempts
		l.mu.Unlock()

		resp, err := l.api.GetMatch(ctx, local.ParticipantID)
		if ctx.Err() != nil {
			l.setState(StateIdle)
			return models.SessionHandle{}, ctx.Err()
		}
		if err != nil {
			log.Warn("match query failed, will retry", zap.Int("attempt", attempt), zap.Error(err))
			resp = models.MatchResponse{}
		}

		if resp.MatchFound {
			handle, err := BuildHandle(local, resp)
			if err == nil {
				if err := sessionstore.SaveHandle(ctx, l.store, handle); err != nil {
					// The handle is still handed off in memory; only reload recovery is lost.
					log.Error("could not persist session handle", zap.Error(err))
				}
				l.setState(StateMatched)
				log.Info("match found",
					zap.String("session_id", handle.SessionID),
					zap.String("peer_id", handle.PeerParticipant.ParticipantID),
					zap.Int("attempts", attempt),
				)
				return handle, nil
			}
			log.Warn("ignoring malformed match response", zap.Error(err))
		}

		wait := l.backoff.NextBackOff()
		if wait == backoff.Stop {
			l.setState(StateIdle)
			return models.SessionHandle{}, ErrGaveUp
		}
		if err := sleep(ctx, wait); err != nil {
			l.setState(StateIdle)
			return models.SessionHandle{}, err
		}
	}
}

// ResolvePeer picks the side of the match that is not the local participant:
// if user1 is local the peer is user2, otherwise it is user1.
func ResolvePeer(localID string, resp models.MatchResponse) (models.PeerParticipant, error) {
	if resp.User1 == nil || resp.User2 == nil {
		return models.PeerParticipant{}, errors.New("match response is missing a participant")
	}
	if resp.User1.ParticipantID == localID {
		return resp.User2.Peer(), nil
	}
	return resp.User1.Peer(), nil
}

// BuildHandle turns a positive match response into a valid session handle.
func BuildHandle(local models.Participant, resp models.MatchResponse) (models.SessionHandle, error) {
	peer, err := ResolvePeer(local.ParticipantID, resp)
	if err != nil {
		return models.SessionHandle{}, err
	}
	handle := models.SessionHandle{
		SessionID:        resp.SessionID,
		LocalParticipant: local,
		PeerParticipant:  peer,
	}
	if !handle.Valid() {
		return models.SessionHandle{}, fmt.Errorf("match response produced an incomplete session handle (session %q, peer %q)", resp.SessionID, peer.ParticipantID)
	}
	return handle, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
