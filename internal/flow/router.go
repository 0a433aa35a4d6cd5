// Package flow routes between the three screens and carries the session
// handle from the match loop to the chat coordinator.
package flow

import (
	"anonchat/app/internal/models"
	"anonchat/app/internal/sessionstore"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Screen int

const (
	ScreenProfile Screen = iota
	ScreenMatching
	ScreenChat
)

func (s Screen) String() string {
	switch s {
	case ScreenProfile:
		return "profile"
	case ScreenMatching:
		return "matching"
	case ScreenChat:
		return "chat"
	}
	return fmt.Sprintf("Screen(%d)", int(s))
}

// Router holds the current screen and the transient hand-off handle. Control
// only moves forward, except that chat may send the user back to profile.
type Router struct {
	store sessionstore.Store
	log   *zap.Logger

	mu        sync.Mutex
	screen    Screen
	transient *models.SessionHandle
}

func NewRouter(store sessionstore.Store, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{store: store, log: log.Named("flow")}
}

// Initial decides the first screen from the session store: a valid stored
// handle resumes the chat, anything else starts at the profile form.
func (r *Router) Initial(ctx context.Context) Screen {
	h, found, err := sessionstore.LoadHandle(ctx, r.store)
	if err != nil {
		r.log.Warn("stored session handle is unreadable", zap.Error(err))
	}
	screen := ScreenProfile
	if err == nil && found && h.Valid() {
		screen = ScreenChat
	}
	r.goTo(screen)
	return screen
}

// Current returns the active screen.
func (r *Router) Current() Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screen
}

// ProfileSubmitted moves from the form to the match loop.
func (r *Router) ProfileSubmitted() Screen {
	return r.goTo(ScreenMatching)
}

// Matched hands the fresh handle to the chat screen.
func (r *Router) Matched(h models.SessionHandle) Screen {
	r.mu.Lock()
	r.transient = &h
	r.mu.Unlock()
	return r.goTo(ScreenChat)
}

// Transient returns the hand-off handle, nil when chat was entered without one.
func (r *Router) Transient() *models.SessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transient == nil {
		return nil
	}
	h := *r.transient
	return &h
}

// WasReloaded reports whether the chat screen is being entered without a
// hand-off from the match loop, which only happens on a restart.
func (r *Router) WasReloaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transient == nil
}

// SessionInvalid sends the user back to the profile form. The store is not
// repaired.
func (r *Router) SessionInvalid() Screen {
	r.mu.Lock()
	r.transient = nil
	r.mu.Unlock()
	r.log.Info("no valid session, back to profile")
	return r.goTo(ScreenProfile)
}

// Leave ends the chat on purpose: the handle slot is cleared so the next
// start does not resume it. The participant identity is kept.
func (r *Router) Leave(ctx context.Context) (Screen, error) {
	r.mu.Lock()
	r.transient = nil
	r.mu.Unlock()
	err := sessionstore.ClearHandle(ctx, r.store)
	return r.goTo(ScreenProfile), err
}

func (r *Router) goTo(s Screen) Screen {
	r.mu.Lock()
	prev := r.screen
	r.screen = s
	r.mu.Unlock()
	if prev != s {
		r.log.Debug("screen change", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
	return s
}
