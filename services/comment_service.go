// services/comment_service.go - Comments, replies and reactions
package services

import (
	"context"
	"strings"
	"time"

	"fitchallenge/models"
	"fitchallenge/realtime"
	"fitchallenge/utils"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxCommentLength is the longest comment text accepted, in characters
const MaxCommentLength = 500

const anonymousAuthor = "Anonymous"

// Author identifies who is writing. Email is the fallback display name when
// the user has no profile.
type Author struct {
	ID    string
	Email string
}

// CreateCommentInput is a new comment or, with ParentID set, a reply
type CreateCommentInput struct {
	Text     string  `json:"text" validate:"required,max=500"`
	ParentID *string `json:"parentId"`
}

type editCommentInput struct {
	Text string `json:"text" validate:"required,max=500"`
}

type CommentService struct {
	db         *gorm.DB
	broker     realtime.Broker
	maxRetries int
	now        func() time.Time
}

func NewCommentService(db *gorm.DB, broker realtime.Broker, maxRetries int) *CommentService {
	return &CommentService{db: db, broker: broker, maxRetries: maxRetries, now: utcNow}
}

// ================== COMMENT CRUD ==================

// Create adds a comment to a challenge. A reply must target a top-level
// comment of the same challenge; the parent's reply count moves in the same
// transaction as the insert.
func (s *CommentService) Create(ctx context.Context, author Author, challengeID string, input CreateCommentInput) (*models.Comment, error) {
	if author.ID == "" {
		return nil, errAuthRequired()
	}

	input.Text = strings.TrimSpace(input.Text)
	if err := validateStruct(&input); err != nil {
		return nil, err
	}
	if input.ParentID != nil && *input.ParentID == "" {
		input.ParentID = nil
	}

	name, avatar, err := s.resolveAuthor(ctx, author)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ChallengeID:  challengeID,
		Text:         input.Text,
		AuthorID:     author.ID,
		AuthorName:   name,
		AuthorAvatar: avatar,
		ParentID:     input.ParentID,
	}

	err = runTx(ctx, s.db, s.maxRetries, "create_comment", func(tx *gorm.DB) error {
		comment.ID = ""
		comment.CreatedAt = s.now()

		if _, err := getChallenge(tx, challengeID); err != nil {
			return err
		}

		if comment.IsReply() {
			parent, err := getComment(forUpdate(tx), challengeID, *comment.ParentID)
			if err != nil {
				if IsCode(err, ErrNotFound) {
					return NewError(ErrNotFound, "parent comment not found")
				}
				return err
			}
			if parent.IsReply() {
				return NewError(ErrValidation, "replies cannot be nested")
			}
		}

		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		if comment.IsReply() {
			return tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).
				Update("reply_count", gorm.Expr("reply_count + 1")).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	comment.Reactions = models.NewReactions()
	commentMutations.WithLabelValues("create").Inc()
	s.notify(ctx, challengeID, comment.ID, author.ID)
	return comment, nil
}

// resolveAuthor picks the name shown on a comment: profile display name,
// then email, then "Anonymous"
func (s *CommentService) resolveAuthor(ctx context.Context, author Author) (string, string, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", author.ID).Take(&profile).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", errInternal("load profile", err)
	}
	if name := strings.TrimSpace(profile.DisplayName); name != "" {
		return name, profile.AvatarURL, nil
	}

	email := strings.TrimSpace(author.Email)
	if email == "" {
		var user models.User
		if err := s.db.WithContext(ctx).Select("email").Where("id = ?", author.ID).Take(&user).Error; err == nil {
			email = user.Email
		}
	}
	if email != "" {
		return email, profile.AvatarURL, nil
	}
	return anonymousAuthor, profile.AvatarURL, nil
}

// Edit replaces the text of the caller's own comment
func (s *CommentService) Edit(ctx context.Context, userID, challengeID, commentID, text string) (*models.Comment, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}

	input := editCommentInput{Text: strings.TrimSpace(text)}
	if err := validateStruct(&input); err != nil {
		return nil, err
	}

	var comment *models.Comment
	err := runTx(ctx, s.db, s.maxRetries, "edit_comment", func(tx *gorm.DB) error {
		c, err := getComment(forUpdate(tx), challengeID, commentID)
		if err != nil {
			return err
		}
		if c.AuthorID != userID {
			return NewError(ErrForbidden, "you can only edit your own comments")
		}

		now := s.now()
		if err := tx.Model(&models.Comment{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
			"text":       input.Text,
			"is_edited":  true,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		c.Text = input.Text
		c.IsEdited = true
		c.EditedAt = &now
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if comment.Reactions, err = loadReactions(s.db.WithContext(ctx), comment.ID); err != nil {
		return nil, err
	}
	commentMutations.WithLabelValues("edit").Inc()
	s.notify(ctx, challengeID, comment.ID, userID)
	return comment, nil
}

// Delete removes the caller's own comment. Deleting a reply lowers the
// parent's reply count; deleting a top-level comment removes its replies.
// Reactions on every removed comment go with it.
func (s *CommentService) Delete(ctx context.Context, userID, challengeID, commentID string) error {
	if userID == "" {
		return errAuthRequired()
	}

	err := runTx(ctx, s.db, s.maxRetries, "delete_comment", func(tx *gorm.DB) error {
		c, err := getComment(forUpdate(tx), challengeID, commentID)
		if err != nil {
			return err
		}
		if c.AuthorID != userID {
			return NewError(ErrForbidden, "you can only delete your own comments")
		}

		if c.IsReply() {
			if err := tx.Where("comment_id = ?", c.ID).Delete(&models.CommentReaction{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Comment{}, "id = ?", c.ID).Error; err != nil {
				return err
			}
			return tx.Model(&models.Comment{}).Where("id = ?", *c.ParentID).
				Update("reply_count", gorm.Expr("CASE WHEN reply_count > 0 THEN reply_count - 1 ELSE 0 END")).Error
		}

		replyIDs := tx.Model(&models.Comment{}).Select("id").Where("parent_id = ?", c.ID)
		if err := tx.Where("comment_id = ? OR comment_id IN (?)", c.ID, replyIDs).
			Delete(&models.CommentReaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", c.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, "id = ?", c.ID).Error
	})
	if err != nil {
		return err
	}

	commentMutations.WithLabelValues("delete").Inc()
	s.notify(ctx, challengeID, commentID, userID)
	return nil
}

// ================== REACTIONS ==================

// ToggleReaction adds userID to the kind's set on the comment, or removes it
// if already present. Kinds are independent of each other.
func (s *CommentService) ToggleReaction(ctx context.Context, challengeID, commentID, userID string, kind models.ReactionKind) (*models.Comment, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}
	if !kind.Valid() {
		return nil, errValidation("unknown reaction %q", kind)
	}

	var (
		comment *models.Comment
		action  string
	)
	err := runTx(ctx, s.db, s.maxRetries, "toggle_reaction", func(tx *gorm.DB) error {
		c, err := getComment(forUpdate(tx), challengeID, commentID)
		if err != nil {
			return err
		}

		res := tx.Where("comment_id = ? AND user_id = ? AND kind = ?", c.ID, userID, kind).
			Delete(&models.CommentReaction{})
		if res.Error != nil {
			return res.Error
		}
		action = "remove"
		if res.RowsAffected == 0 {
			action = "add"
			if err := tx.Create(&models.CommentReaction{
				CommentID: c.ID,
				UserID:    userID,
				Kind:      kind,
				CreatedAt: s.now(),
			}).Error; err != nil {
				return err
			}
		}

		if c.Reactions, err = loadReactions(tx, c.ID); err != nil {
			return err
		}
		comment = c
		return nil
	})
	if err != nil {
		utils.Logger.Error("toggle reaction failed",
			zap.String("comment_id", commentID), zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	reactionToggles.WithLabelValues(string(kind), action).Inc()
	s.notify(ctx, challengeID, commentID, userID)
	return comment, nil
}

// ================== READS ==================

// List returns every comment on the challenge, oldest first, with reactions
func (s *CommentService) List(ctx context.Context, challengeID string) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)
	if _, err := getChallenge(db, challengeID); err != nil {
		return nil, err
	}

	comments := []models.Comment{}
	if err := db.Where("challenge_id = ?", challengeID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, errInternal("list comments", err)
	}

	var rows []models.CommentReaction
	if err := db.Where("comment_id IN (?)",
		db.Model(&models.Comment{}).Select("id").Where("challenge_id = ?", challengeID)).
		Order("created_at ASC").Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, errInternal("list reactions", err)
	}

	byComment := make(map[string]models.Reactions, len(comments))
	for i := range comments {
		comments[i].Reactions = models.NewReactions()
		byComment[comments[i].ID] = comments[i].Reactions
	}
	for _, r := range rows {
		if reactions, ok := byComment[r.CommentID]; ok && r.Kind.Valid() {
			reactions[r.Kind] = append(reactions[r.Kind], r.UserID)
		}
	}
	return comments, nil
}

// Thread returns the challenge's comments grouped into threads
func (s *CommentService) Thread(ctx context.Context, challengeID string) ([]CommentThread, error) {
	comments, err := s.List(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return BuildCommentTree(comments), nil
}

// Watch calls fn with the current threads now and after every change to the
// challenge's comments, until the returned cancel is called or ctx ends
func (s *CommentService) Watch(ctx context.Context, challengeID string, fn func([]CommentThread)) (func(), error) {
	if _, err := getChallenge(s.db.WithContext(ctx), challengeID); err != nil {
		return nil, err
	}

	return realtime.Follow(ctx, s.broker, realtime.CommentsTopic(challengeID), func(ctx context.Context) {
		threads, err := s.Thread(ctx, challengeID)
		if err != nil {
			if IsCode(err, ErrNotFound) {
				fn([]CommentThread{})
				return
			}
			logWatchError("comments", challengeID, err)
			return
		}
		fn(threads)
	})
}

func (s *CommentService) notify(ctx context.Context, challengeID, commentID, userID string) {
	publish(ctx, s.broker, realtime.CommentsTopic(challengeID), realtime.Event{
		Type:        realtime.EventCommentsChanged,
		ChallengeID: challengeID,
		CommentID:   commentID,
		UserID:      userID,
	})
}

func getComment(db *gorm.DB, challengeID, commentID string) (*models.Comment, error) {
	var c models.Comment
	err := db.Where("id = ? AND challenge_id = ?", commentID, challengeID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("comment")
		}
		return nil, errInternal("load comment", err)
	}
	return &c, nil
}

func loadReactions(db *gorm.DB, commentID string) (models.Reactions, error) {
	var rows []models.CommentReaction
	if err := db.Where("comment_id = ?", commentID).Order("created_at ASC").Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, errInternal("load reactions", err)
	}
	reactions := models.NewReactions()
	for _, r := range rows {
		if r.Kind.Valid() {
			reactions[r.Kind] = append(reactions[r.Kind], r.UserID)
		}
	}
	return reactions, nil
}

func logWatchError(what, challengeID string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	utils.Logger.Warn("live refresh failed",
		zap.String("view", what), zap.String("challenge_id", challengeID), zap.Error(err))
}
