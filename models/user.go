// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account. ID is opaque: a UUID for local accounts or the identity
// provider's UID for externally verified users.
type User struct {
	ID           string     `gorm:"primaryKey;size:128" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	IsAdmin      bool       `gorm:"default:false" json:"isAdmin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// FitnessGoals offered on the profile form
var FitnessGoals = []string{
	"Build Muscle",
	"Improve Endurance",
	"Lose Weight",
	"Increase Flexibility",
	"Improve Power",
	"General Fitness",
}

// ValidFitnessGoal accepts an empty goal or one of FitnessGoals
func ValidFitnessGoal(goal string) bool {
	if goal == "" {
		return true
	}
	for _, g := range FitnessGoals {
		if g == goal {
			return true
		}
	}
	return false
}

// Profile holds the public fields shown next to a user's comments and on
// the profile screen
type Profile struct {
	UserID      string    `gorm:"primaryKey;size:128" json:"userId"`
	DisplayName string    `gorm:"size:100;not null" json:"displayName"`
	Username    string    `gorm:"size:50;not null;index" json:"username"`
	Bio         string    `gorm:"type:text" json:"bio"`
	FitnessGoal string    `gorm:"size:50" json:"fitnessGoal"`
	AvatarURL   string    `gorm:"size:512" json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (Profile) TableName() string {
	return "profiles"
}
