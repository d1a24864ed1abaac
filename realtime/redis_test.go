package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBroker(client, "test:")
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	b, _ := newRedisBroker(t)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, ChallengeTopic("c1"))
	require.NoError(t, err)
	defer sub.Close()

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, b.Publish(ctx, ChallengeTopic("c1"), Event{
		Type:        EventParticipantsChanged,
		ChallengeID: "c1",
		UserID:      "u1",
		At:          at,
	}))

	ev := recv(t, sub)
	assert.Equal(t, EventParticipantsChanged, ev.Type)
	assert.Equal(t, "c1", ev.ChallengeID)
	assert.Equal(t, "u1", ev.UserID)
	assert.True(t, at.Equal(ev.At))
}

func TestRedisBrokerUsesPrefix(t *testing.T) {
	b, mr := newRedisBroker(t)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, DirectoryTopic)
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish("challenges", `{"type":"unprefixed"}`)
	mr.Publish("test:challenges", `not json`)
	mr.Publish("test:challenges", `{"type":"challenge.created"}`)

	assert.Equal(t, EventChallengeCreated, recv(t, sub).Type)
}

func TestRedisSubscriptionClose(t *testing.T) {
	b, _ := newRedisBroker(t)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, CommentsTopic("c1"))
	require.NoError(t, err)
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed")
	}
}

func TestRedisBrokerSubscribeFailsWhenDown(t *testing.T) {
	b, mr := newRedisBroker(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := b.Subscribe(ctx, DirectoryTopic)
	assert.Error(t, err)
}

func TestFollowOverRedis(t *testing.T) {
	b, _ := newRedisBroker(t)
	ctx := context.Background()

	refreshed := make(chan struct{}, 4)
	cancel, err := Follow(ctx, b, CommentsTopic("c9"), func(context.Context) { refreshed <- struct{}{} })
	require.NoError(t, err)
	defer cancel()
	<-refreshed

	require.NoError(t, b.Publish(ctx, CommentsTopic("c9"), Event{Type: EventCommentsChanged}))
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh after redis event")
	}
}
