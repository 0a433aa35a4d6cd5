package chathub_test

import (
	"anonchat/app/internal/chathub"
	"anonchat/app/internal/models"
	"anonchat/app/internal/storage"
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func profile(id string, g models.Gender, pref models.GenderPreference) *models.QueuedProfile {
	return &models.QueuedProfile{ParticipantID: id, Name: id, Gender: g, GenderPreference: pref}
}

func TestCompatible(t *testing.T) {
	man := profile("a", models.GenderMale, models.PreferFemale)
	woman := profile("b", models.GenderFemale, models.PreferBoth)
	otherMan := profile("c", models.GenderMale, models.PreferMale)

	assert.True(t, chathub.Compatible(man, woman))
	assert.True(t, chathub.Compatible(woman, man), "compatibility is symmetric")
	assert.False(t, chathub.Compatible(man, otherMan), "man only wants women")
	assert.False(t, chathub.Compatible(man, man), "no self match")

	blocked := *woman
	blocked.BlockedUsers = pq.StringArray{"a"}
	assert.False(t, chathub.Compatible(man, &blocked))
}

func TestCompatible_Interests(t *testing.T) {
	a := profile("a", models.GenderOther, models.PreferBoth)
	b := profile("b", models.GenderOther, models.PreferBoth)
	a.Interests = pq.StringArray{"Music", "chess"}
	b.Interests = pq.StringArray{"hiking"}

	assert.True(t, chathub.Compatible(a, b), "filter off on both sides")

	a.InterestFilterEnabled = true
	assert.True(t, chathub.Compatible(a, b), "filter only matters when both enable it")

	b.InterestFilterEnabled = true
	assert.False(t, chathub.Compatible(a, b))

	b.Interests = append(b.Interests, " music ")
	assert.True(t, chathub.Compatible(a, b))
}

func TestMatchOnce_PairsOldestCompatible(t *testing.T) {
	ctx := context.Background()
	storageMock := new(MockStorage)
	storageMock.On("GetSearchingParticipants", ctx).Return([]string{"a", "c", "b", "d"}, nil)
	storageMock.On("GetProfile", ctx, "a").Return(profile("a", models.GenderMale, models.PreferFemale), nil)
	storageMock.On("GetProfile", ctx, "c").Return(profile("c", models.GenderMale, models.PreferMale), nil)
	storageMock.On("GetProfile", ctx, "b").Return(profile("b", models.GenderFemale, models.PreferBoth), nil)
	storageMock.On("GetProfile", ctx, "d").Return(profile("d", models.GenderMale, models.PreferMale), nil)
	storageMock.On("SaveRoom", ctx, mock.AnythingOfType("*models.ChatRoom")).Return(nil)
	storageMock.On("RemoveFromSearchQueue", ctx, mock.Anything).Return(nil)

	matcher := chathub.NewMatcherService(storageMock, 0, nil)
	rooms, err := matcher.MatchOnce(ctx)

	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].User1ID)
	assert.Equal(t, "b", rooms[0].User2ID)
	assert.Equal(t, "c", rooms[1].User1ID)
	assert.Equal(t, "d", rooms[1].User2ID)
	assert.True(t, rooms[0].IsActive)
	assert.NotEqual(t, rooms[0].RoomID, rooms[1].RoomID)
	storageMock.AssertCalled(t, "RemoveFromSearchQueue", ctx, []string{"a", "b"})
	storageMock.AssertCalled(t, "RemoveFromSearchQueue", ctx, []string{"c", "d"})
}

func TestMatchOnce_NobodyCompatible(t *testing.T) {
	ctx := context.Background()
	storageMock := new(MockStorage)
	storageMock.On("GetSearchingParticipants", ctx).Return([]string{"a", "c"}, nil)
	storageMock.On("GetProfile", ctx, "a").Return(profile("a", models.GenderMale, models.PreferFemale), nil)
	storageMock.On("GetProfile", ctx, "c").Return(profile("c", models.GenderMale, models.PreferMale), nil)

	rooms, err := chathub.NewMatcherService(storageMock, 0, nil).MatchOnce(ctx)

	require.NoError(t, err)
	assert.Empty(t, rooms)
	storageMock.AssertNotCalled(t, "SaveRoom", mock.Anything, mock.Anything)
}

func TestMatchOnce_DropsQueueEntriesWithoutProfile(t *testing.T) {
	ctx := context.Background()
	storageMock := new(MockStorage)
	storageMock.On("GetSearchingParticipants", ctx).Return([]string{"ghost"}, nil)
	storageMock.On("GetProfile", ctx, "ghost").Return(nil, storage.ErrProfileNotFound)
	storageMock.On("RemoveFromSearchQueue", ctx, []string{"ghost"}).Return(nil).Once()

	rooms, err := chathub.NewMatcherService(storageMock, 0, nil).MatchOnce(ctx)

	require.NoError(t, err)
	assert.Empty(t, rooms)
	storageMock.AssertExpectations(t)
}

func TestMatchOnce_StorageFailure(t *testing.T) {
	ctx := context.Background()
	storageMock := new(MockStorage)
	storageMock.On("GetSearchingParticipants", ctx).Return(nil, errors.New("redis down"))

	_, err := chathub.NewMatcherService(storageMock, 0, nil).MatchOnce(ctx)

	assert.EqualError(t, err, "redis down")
}
