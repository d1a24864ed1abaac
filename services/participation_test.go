package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"fitchallenge/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAndLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChallenge(t, "owner", CreateChallengeInput{Title: "5K Run"})

	sub, err := f.broker.Subscribe(ctx, realtime.ChallengeTopic(c.ID))
	require.NoError(t, err)
	defer sub.Close()

	res, err := f.participation.Join(ctx, c.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, ParticipationResult{Joined: true, ParticipantsCount: 1, Changed: true}, *res)
	assert.Equal(t, realtime.EventParticipantsChanged, receive(t, sub).Type)

	joined, err := f.participation.IsParticipant(ctx, c.ID, "u1")
	require.NoError(t, err)
	assert.True(t, joined)

	// Joining again changes nothing
	res, err = f.participation.Join(ctx, c.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, ParticipationResult{Joined: true, ParticipantsCount: 1, Changed: false}, *res)
	assertQuiet(t, sub)
	assert.Equal(t, int64(1), f.participantRows(t, c.ID))

	res, err = f.participation.Leave(ctx, c.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, ParticipationResult{Joined: false, ParticipantsCount: 0, Changed: true}, *res)
	assert.Equal(t, realtime.EventParticipantsChanged, receive(t, sub).Type)

	stored := f.reload(t, c.ID)
	assert.Equal(t, 0, stored.ParticipantsCount)
	assert.Equal(t, int64(0), f.participantRows(t, c.ID))
}

func TestLeaveWithoutJoinIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChallenge(t, "owner", CreateChallengeInput{Title: "Plank"})

	_, err := f.participation.Join(ctx, c.ID, "u1")
	require.NoError(t, err)

	res, err := f.participation.Leave(ctx, c.ID, "u2")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.False(t, res.Joined)
	assert.Equal(t, 1, res.ParticipantsCount)
	assert.Equal(t, 1, f.reload(t, c.ID).ParticipantsCount)
}

func TestParticipationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChallenge(t, "owner", CreateChallengeInput{Title: "Plank"})

	_, err := f.participation.Join(ctx, c.ID, "")
	assert.Equal(t, ErrUnauthenticated, CodeOf(err))
	assert.Equal(t, "authentication required", MessageOf(err))
	assert.Equal(t, int64(0), f.participantRows(t, c.ID))

	_, err = f.participation.Leave(ctx, c.ID, "")
	assert.Equal(t, ErrUnauthenticated, CodeOf(err))

	_, err = f.participation.Join(ctx, "missing", "u1")
	assert.Equal(t, ErrNotFound, CodeOf(err))

	_, err = f.participation.Participants(ctx, "missing")
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestParticipantsInJoinOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChallenge(t, "owner", CreateChallengeInput{Title: "Plank"})

	for _, u := range []string{"carol", "alice", "bob"} {
		_, err := f.participation.Join(ctx, c.ID, u)
		require.NoError(t, err)
	}

	ps, err := f.participation.Participants(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "carol", ps[0].UserID)
	assert.Equal(t, "alice", ps[1].UserID)
	assert.Equal(t, "bob", ps[2].UserID)
}

// The SQLite test database has a single connection, so this run checks the
// counting logic but never contends on the row lock or retries. The
// integration build runs the same toggles against PostgreSQL.
func TestConcurrentTogglesKeepCountInSync(t *testing.T) {
	checkConcurrentToggles(t, newFixture(t))
}

func checkConcurrentToggles(t *testing.T, f *fixture) {
	ctx := context.Background()
	c := f.createChallenge(t, "owner", CreateChallengeInput{Title: "Busy"})

	const users = 20
	var wg sync.WaitGroup

	// Every user joins twice at once
	for i := 0; i < users; i++ {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, err := f.participation.Join(ctx, c.ID, user)
				assert.NoError(t, err)
			}(fmt.Sprintf("user-%d", i))
		}
	}
	wg.Wait()

	assert.Equal(t, users, f.reload(t, c.ID).ParticipantsCount)
	assert.Equal(t, int64(users), f.participantRows(t, c.ID))

	// Even users leave while odd users join again, and strangers leave
	for i := 0; i < users; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			var err error
			if i%2 == 0 {
				_, err = f.participation.Leave(ctx, c.ID, user)
			} else {
				_, err = f.participation.Join(ctx, c.ID, user)
			}
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := f.participation.Leave(ctx, c.ID, fmt.Sprintf("stranger-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored := f.reload(t, c.ID)
	assert.Equal(t, users/2, stored.ParticipantsCount)
	assert.Equal(t, int64(users/2), f.participantRows(t, c.ID))
}
