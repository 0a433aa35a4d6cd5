package flow_test

import (
	"anonchat/app/internal/flow"
	"anonchat/app/internal/models"
	"anonchat/app/internal/sessionstore"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle() models.SessionHandle {
	return models.SessionHandle{
		SessionID:        "s-1",
		LocalParticipant: models.Participant{ParticipantID: "me"},
		PeerParticipant:  models.PeerParticipant{ParticipantID: "peer"},
	}
}

func TestInitial(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		r := flow.NewRouter(sessionstore.NewMemory(), nil)
		assert.Equal(t, flow.ScreenProfile, r.Initial(ctx))
	})

	t.Run("valid stored handle resumes chat", func(t *testing.T) {
		store := sessionstore.NewMemory()
		require.NoError(t, sessionstore.SaveHandle(ctx, store, handle()))
		r := flow.NewRouter(store, nil)

		assert.Equal(t, flow.ScreenChat, r.Initial(ctx))
		assert.True(t, r.WasReloaded())
		assert.Nil(t, r.Transient())
	})

	t.Run("invalid stored handle", func(t *testing.T) {
		store := sessionstore.NewMemory()
		h := handle()
		h.PeerParticipant.ParticipantID = ""
		require.NoError(t, sessionstore.SaveHandle(ctx, store, h))

		assert.Equal(t, flow.ScreenProfile, flow.NewRouter(store, nil).Initial(ctx))
	})

	t.Run("corrupt stored handle", func(t *testing.T) {
		store := sessionstore.NewMemory()
		require.NoError(t, store.Set(ctx, sessionstore.SlotSessionHandle, []byte("[1]")))

		assert.Equal(t, flow.ScreenProfile, flow.NewRouter(store, nil).Initial(ctx))
	})
}

func TestForwardPath(t *testing.T) {
	r := flow.NewRouter(sessionstore.NewMemory(), nil)
	r.Initial(context.Background())

	assert.Equal(t, flow.ScreenMatching, r.ProfileSubmitted())
	assert.Equal(t, flow.ScreenChat, r.Matched(handle()))
	assert.Equal(t, flow.ScreenChat, r.Current())
	assert.False(t, r.WasReloaded(), "arriving from the match loop is not a reload")
	require.NotNil(t, r.Transient())
	assert.Equal(t, "s-1", r.Transient().SessionID)
}

func TestSessionInvalid(t *testing.T) {
	r := flow.NewRouter(sessionstore.NewMemory(), nil)
	r.Matched(handle())

	assert.Equal(t, flow.ScreenProfile, r.SessionInvalid())
	assert.Nil(t, r.Transient())
}

func TestLeaveClearsHandleKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := sessionstore.NewMemory()
	require.NoError(t, sessionstore.SaveIdentity(ctx, store, models.Participant{ParticipantID: "me"}))
	require.NoError(t, sessionstore.SaveHandle(ctx, store, handle()))
	r := flow.NewRouter(store, nil)
	r.Matched(handle())

	screen, err := r.Leave(ctx)

	require.NoError(t, err)
	assert.Equal(t, flow.ScreenProfile, screen)
	_, found, err := sessionstore.LoadHandle(ctx, store)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = sessionstore.LoadIdentity(ctx, store)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, flow.ScreenProfile, flow.NewRouter(store, nil).Initial(ctx))
}

func TestScreenString(t *testing.T) {
	assert.Equal(t, "matching", flow.ScreenMatching.String())
	assert.Equal(t, "Screen(9)", flow.Screen(9).String())
}
