// models/comment.go - Comment and reaction data models
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReactionKind is one of the fixed emoji reactions
type ReactionKind string

const (
	ReactionLikes  ReactionKind = "likes"
	ReactionHearts ReactionKind = "hearts"
	ReactionFires  ReactionKind = "fires"
	ReactionClaps  ReactionKind = "claps"
)

// ReactionKinds is the closed set of reaction kinds in display order
var ReactionKinds = []ReactionKind{ReactionLikes, ReactionHearts, ReactionFires, ReactionClaps}

// Valid reports whether k is in ReactionKinds
func (k ReactionKind) Valid() bool {
	for _, kind := range ReactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Reactions maps each kind to the set of user ids that reacted with it
type Reactions map[ReactionKind][]string

// NewReactions returns a Reactions value with every kind present and empty
func NewReactions() Reactions {
	r := make(Reactions, len(ReactionKinds))
	for _, kind := range ReactionKinds {
		r[kind] = []string{}
	}
	return r
}

// Has reports whether userID reacted with kind
func (r Reactions) Has(kind ReactionKind, userID string) bool {
	for _, id := range r[kind] {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment on a challenge. ParentID nil means top level; replies are one level
// deep. ReplyCount equals the number of comments whose ParentID is this
// comment's ID and is maintained in the same transaction as the reply write.
type Comment struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	ChallengeID  string     `json:"challengeId" gorm:"not null;size:36;index"`
	Text         string     `json:"text" gorm:"not null;type:text"`
	AuthorID     string     `json:"authorId" gorm:"not null;size:128;index"`
	AuthorName   string     `json:"authorName" gorm:"size:100"`
	AuthorAvatar string     `json:"authorAvatar,omitempty" gorm:"size:512"`
	ParentID     *string    `json:"parentId,omitempty" gorm:"size:36;index"`
	ReplyCount   int        `json:"replyCount" gorm:"not null;default:0"`
	IsEdited     bool       `json:"isEdited" gorm:"not null;default:false"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"index"`
	EditedAt     *time.Time `json:"updatedAt,omitempty" gorm:"column:updated_at"`
	Reactions    Reactions  `json:"reactions" gorm:"-"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsReply reports whether the comment has a parent
func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// CommentReaction is one user's reaction of one kind on one comment
type CommentReaction struct {
	CommentID string       `json:"commentId" gorm:"primaryKey;size:36"`
	UserID    string       `json:"userId" gorm:"primaryKey;size:128"`
	Kind      ReactionKind `json:"kind" gorm:"primaryKey;size:16"`
	CreatedAt time.Time    `json:"createdAt"`
}

func (Comment) TableName() string {
	return "challenge_comments"
}

func (CommentReaction) TableName() string {
	return "comment_reactions"
}
