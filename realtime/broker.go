// Package realtime delivers change notifications to live subscribers.
//
// Writers publish a small Event after a commit; readers subscribe to a topic
// and re-read whatever they display when an event arrives. Events carry no
// document state, so a dropped event only delays a refresh until the next one.
package realtime

import (
	"context"
	"sync"
	"time"
)

// Event types
const (
	EventChallengeCreated    = "challenge.created"
	EventChallengeUpdated    = "challenge.updated"
	EventChallengeDeleted    = "challenge.deleted"
	EventParticipantsChanged = "participants.changed"
	EventCommentsChanged     = "comments.changed"
)

// DirectoryTopic receives an event whenever any challenge is created, updated,
// deleted or joined
const DirectoryTopic = "challenges"

// ChallengeTopic is the topic for one challenge's document and participants
func ChallengeTopic(challengeID string) string {
	return "challenge:" + challengeID
}

// CommentsTopic is the topic for one challenge's comment collection
func CommentsTopic(challengeID string) string {
	return "comments:" + challengeID
}

// Event announces that something changed
type Event struct {
	Type        string    `json:"type"`
	ChallengeID string    `json:"challengeId,omitempty"`
	CommentID   string    `json:"commentId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	At          time.Time `json:"at"`
}

// Broker fans events out to subscribers of a topic
type Broker interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Close() error
}

// Subscription is a live listener on one topic. C is closed after Close.
type Subscription struct {
	C <-chan Event

	topic string
	once  sync.Once
	stop  func()
}

func newSubscription(topic string, c <-chan Event, stop func()) *Subscription {
	return &Subscription{C: c, topic: topic, stop: stop}
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Close releases the listener. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.stop)
}
