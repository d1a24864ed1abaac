// models/challenge.go - Challenge and participation data models
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty of a challenge
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// DefaultCategory is used when a challenge is created without one
const DefaultCategory = "General"

// Categories lists the challenge categories offered to users
var Categories = []string{
	DefaultCategory,
	"Cardio/Endurance",
	"Strength/Resistance",
	"Mind-Body/Flexibility",
	"Sports/Activities",
	"Habit/Lifestyle",
}

// ValidCategory reports whether category is in Categories (case-sensitive)
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Challenge is a goal-based fitness activity users can join.
// ParticipantsCount always equals the number of Participant rows for the
// challenge; it is only changed inside the join/leave transaction.
type Challenge struct {
	ID                string     `json:"id" gorm:"primaryKey;size:36"`
	Title             string     `json:"title" gorm:"not null;size:120"`
	Description       string     `json:"description" gorm:"type:text"`
	Difficulty        Difficulty `json:"difficulty" gorm:"not null;size:10;index"`
	Category          string     `json:"category" gorm:"not null;size:50;index"`
	Tags              []string   `json:"tags" gorm:"serializer:json;type:text"`
	ImageURL          string     `json:"imageUrl,omitempty" gorm:"size:512"`
	StartsAt          *time.Time `json:"startsAt,omitempty"`
	EndsAt            *time.Time `json:"endsAt,omitempty" gorm:"index"`
	ParticipantsCount int        `json:"participantsCount" gorm:"not null;default:0"`
	CreatedBy         string     `json:"createdBy" gorm:"not null;size:128;index"`
	CreatedAt         time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return nil
}

// IsActive reports whether the challenge has not ended at now
func (c *Challenge) IsActive(now time.Time) bool {
	return c.EndsAt == nil || !c.EndsAt.Before(now)
}

// Participant marks a user's membership in a challenge. Existence of the row
// is the membership; there is at most one per (challenge, user).
type Participant struct {
	ChallengeID string    `json:"challengeId" gorm:"primaryKey;size:36"`
	UserID      string    `json:"userId" gorm:"primaryKey;size:128;index"`
	JoinedAt    time.Time `json:"joinedAt" gorm:"not null"`
}

func (Challenge) TableName() string {
	return "challenges"
}

func (Participant) TableName() string {
	return "challenge_participants"
}
