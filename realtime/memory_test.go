package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryBrokerFanOut(t *testing.T) {
	b := NewMemoryBroker(4)
	defer b.Close()
	ctx := context.Background()

	s1, err := b.Subscribe(ctx, CommentsTopic("c1"))
	require.NoError(t, err)
	s2, err := b.Subscribe(ctx, CommentsTopic("c1"))
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, CommentsTopic("c2"))
	require.NoError(t, err)
	assert.Equal(t, 2, b.SubscriberCount(CommentsTopic("c1")))

	require.NoError(t, b.Publish(ctx, CommentsTopic("c1"), Event{Type: EventCommentsChanged, CommentID: "x"}))

	assert.Equal(t, "x", recv(t, s1).CommentID)
	assert.Equal(t, "x", recv(t, s2).CommentID)
	select {
	case ev := <-other.C:
		t.Fatalf("unexpected event on other topic: %+v", ev)
	default:
	}
}

func TestMemoryBrokerDropsWhenFull(t *testing.T) {
	b := NewMemoryBroker(1)
	defer b.Close()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, DirectoryTopic)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, DirectoryTopic, Event{Type: "first"}))
	require.NoError(t, b.Publish(ctx, DirectoryTopic, Event{Type: "second"}))

	assert.Equal(t, "first", recv(t, sub).Type)
	select {
	case ev := <-sub.C:
		t.Fatalf("expected the second event to be dropped, got %+v", ev)
	default:
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	b := NewMemoryBroker(0)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, ChallengeTopic("c1"))
	require.NoError(t, err)
	assert.Equal(t, ChallengeTopic("c1"), sub.Topic())

	sub.Close()
	sub.Close()
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount(ChallengeTopic("c1")))

	// Publishing to a topic with no listeners is fine
	require.NoError(t, b.Publish(ctx, ChallengeTopic("c1"), Event{}))
}

func TestMemoryBrokerCloseEndsSubscriptions(t *testing.T) {
	b := NewMemoryBroker(0)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, DirectoryTopic)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	late, err := b.Subscribe(ctx, DirectoryTopic)
	require.NoError(t, err)
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestFollowRefreshesOnEvents(t *testing.T) {
	b := NewMemoryBroker(8)
	defer b.Close()
	ctx := context.Background()

	var calls atomic.Int32
	refreshed := make(chan struct{}, 8)
	cancel, err := Follow(ctx, b, CommentsTopic("c1"), func(context.Context) {
		calls.Add(1)
		refreshed <- struct{}{}
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "initial refresh runs before Follow returns")
	<-refreshed

	require.NoError(t, b.Publish(ctx, CommentsTopic("c1"), Event{Type: EventCommentsChanged}))
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh after event")
	}

	cancel()
	cancel()
	assert.Equal(t, 0, b.SubscriberCount(CommentsTopic("c1")))

	before := calls.Load()
	require.NoError(t, b.Publish(ctx, CommentsTopic("c1"), Event{Type: EventCommentsChanged}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
}

func TestFollowStopsWithContext(t *testing.T) {
	b := NewMemoryBroker(8)
	defer b.Close()
	ctx, cancelCtx := context.WithCancel(context.Background())

	cancel, err := Follow(ctx, b, DirectoryTopic, func(context.Context) {})
	require.NoError(t, err)

	cancelCtx()
	assert.Eventually(t, func() bool {
		return b.SubscriberCount(DirectoryTopic) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
}
