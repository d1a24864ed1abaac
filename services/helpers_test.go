package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"fitchallenge/database"
	"fitchallenge/models"
	"fitchallenge/realtime"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testClock hands out strictly increasing times one second apart so ordering
// by created_at is deterministic
type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newTestClock() *testClock {
	return &testClock{cur: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fixture struct {
	db            *gorm.DB
	broker        *realtime.MemoryBroker
	clock         *testClock
	challenges    *ChallengeService
	participation *ParticipationService
	comments      *CommentService
	profiles      *ProfileService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	broker := realtime.NewMemoryBroker(16)
	t.Cleanup(func() { _ = broker.Close() })
	clock := newTestClock()

	f := &fixture{
		db:            db,
		broker:        broker,
		clock:         clock,
		challenges:    NewChallengeService(db, broker),
		participation: NewParticipationService(db, broker, DefaultTxMaxRetries),
		comments:      NewCommentService(db, broker, DefaultTxMaxRetries),
		profiles:      NewProfileService(db),
	}
	f.challenges.now = clock.Now
	f.participation.now = clock.Now
	f.comments.now = clock.Now
	f.profiles.now = clock.Now
	return f
}

func (f *fixture) createChallenge(t *testing.T, userID string, input CreateChallengeInput) *models.Challenge {
	t.Helper()
	if input.Difficulty == "" {
		input.Difficulty = "easy"
	}
	c, err := f.challenges.Create(context.Background(), userID, input)
	require.NoError(t, err)
	return c
}

func (f *fixture) createComment(t *testing.T, userID, challengeID, text string, parentID *string) *models.Comment {
	t.Helper()
	c, err := f.comments.Create(context.Background(), Author{ID: userID}, challengeID,
		CreateCommentInput{Text: text, ParentID: parentID})
	require.NoError(t, err)
	return c
}

func (f *fixture) participantRows(t *testing.T, challengeID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Participant{}).Where("challenge_id = ?", challengeID).Count(&n).Error)
	return n
}

func (f *fixture) reload(t *testing.T, challengeID string) *models.Challenge {
	t.Helper()
	c, err := f.challenges.Get(context.Background(), challengeID)
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string {
	return &s
}

// receive waits briefly for one event on sub
func receive(t *testing.T, sub *realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return realtime.Event{}
}

// assertQuiet fails if sub receives anything within a short window
func assertQuiet(t *testing.T, sub *realtime.Subscription) {
	t.Helper()
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
