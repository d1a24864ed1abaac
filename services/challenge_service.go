// services/challenge_service.go - Challenge directory business logic
package services

import (
	"context"
	"strings"
	"time"

	"fitchallenge/models"
	"fitchallenge/realtime"
	"fitchallenge/tagparser"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxTags         = 20
)

type ChallengeService struct {
	db     *gorm.DB
	broker realtime.Broker
	now    func() time.Time
}

func NewChallengeService(db *gorm.DB, broker realtime.Broker) *ChallengeService {
	return &ChallengeService{db: db, broker: broker, now: utcNow}
}

// CreateChallengeInput is the challenge form. Tags may arrive as a list, as
// the raw comma-separated field, or both.
type CreateChallengeInput struct {
	Title       string   `json:"title" validate:"required,max=120"`
	Description string   `json:"description" validate:"max=5000"`
	Difficulty  string   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Category    string   `json:"category" validate:"category"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=40"`
	TagsInput   string   `json:"tagsInput" validate:"max=800"`
	StartsAt    string   `json:"startsAt"`
	EndsAt      string   `json:"endsAt"`
}

// ChallengeFilter narrows List and ListForUser. Predicates combine with AND.
// Ended challenges are hidden unless IncludeEnded is set; Past keeps only
// ended ones.
type ChallengeFilter struct {
	Search       string
	Difficulty   models.Difficulty
	Category     string
	IncludeEnded bool
	Past         bool
	Limit        int
	Offset       int
}

// ================== DIRECTORY OPERATIONS ==================

// Create validates the form and stores a new challenge owned by userID
func (s *ChallengeService) Create(ctx context.Context, userID string, input CreateChallengeInput) (*models.Challenge, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}

	challenge, err := buildChallenge(input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	challenge.CreatedBy = userID
	challenge.CreatedAt = now
	challenge.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(challenge).Error; err != nil {
		return nil, errInternal("create challenge", err)
	}

	publish(ctx, s.broker, realtime.DirectoryTopic, realtime.Event{
		Type:        realtime.EventChallengeCreated,
		ChallengeID: challenge.ID,
		UserID:      userID,
	})
	return challenge, nil
}

// ValidateChallengeInput applies the checks Create runs, without storing
// anything
func ValidateChallengeInput(input CreateChallengeInput) error {
	_, err := buildChallenge(input)
	return err
}

func buildChallenge(input CreateChallengeInput) (*models.Challenge, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Difficulty = strings.ToLower(strings.TrimSpace(input.Difficulty))
	input.Category = strings.TrimSpace(input.Category)
	if err := validateStruct(&input); err != nil {
		return nil, err
	}

	category := input.Category
	if category == "" {
		category = models.DefaultCategory
	}

	startsAt, err := tagparser.ParseDate(input.StartsAt)
	if err != nil {
		return nil, errValidation("startsAt: %v", err)
	}
	endsAt, err := tagparser.ParseDate(input.EndsAt)
	if err != nil {
		return nil, errValidation("endsAt: %v", err)
	}
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return nil, errValidation("endsAt cannot be before startsAt")
	}

	tags := tagparser.NormalizeTags(append(append([]string{}, input.Tags...), strings.Split(input.TagsInput, ",")...))
	if len(tags) > maxTags {
		return nil, errValidation("at most %d tags are allowed", maxTags)
	}

	return &models.Challenge{
		Title:       input.Title,
		Description: input.Description,
		Difficulty:  models.Difficulty(input.Difficulty),
		Category:    category,
		Tags:        tags,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
	}, nil
}

// Get returns one challenge
func (s *ChallengeService) Get(ctx context.Context, id string) (*models.Challenge, error) {
	return getChallenge(s.db.WithContext(ctx), id)
}

func getChallenge(db *gorm.DB, id string) (*models.Challenge, error) {
	if id == "" {
		return nil, errNotFound("challenge")
	}
	var challenge models.Challenge
	if err := db.Where("id = ?", id).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("challenge")
		}
		return nil, errInternal("load challenge", err)
	}
	return &challenge, nil
}

// List returns challenges newest first
func (s *ChallengeService) List(ctx context.Context, filter ChallengeFilter) ([]models.Challenge, error) {
	query := s.applyFilter(s.db.WithContext(ctx).Model(&models.Challenge{}), filter).
		Order("challenges.created_at DESC").
		Order("challenges.id DESC")

	challenges := []models.Challenge{}
	if err := paginate(query, filter).Find(&challenges).Error; err != nil {
		return nil, errInternal("list challenges", err)
	}
	return challenges, nil
}

// ListForUser returns the challenges userID has joined, most recently joined first
func (s *ChallengeService) ListForUser(ctx context.Context, userID string, filter ChallengeFilter) ([]models.Challenge, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}

	query := s.db.WithContext(ctx).Model(&models.Challenge{}).
		Joins("JOIN challenge_participants ON challenge_participants.challenge_id = challenges.id").
		Where("challenge_participants.user_id = ?", userID)
	query = s.applyFilter(query, filter).
		Order("challenge_participants.joined_at DESC").
		Order("challenges.id DESC")

	challenges := []models.Challenge{}
	if err := paginate(query, filter).Find(&challenges).Error; err != nil {
		return nil, errInternal("list user challenges", err)
	}
	return challenges, nil
}

func (s *ChallengeService) applyFilter(query *gorm.DB, filter ChallengeFilter) *gorm.DB {
	now := s.now()

	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		if tagTerm := tagSearchTerm(term); tagTerm != "" {
			query = query.Where(`(LOWER(challenges.title) LIKE ? ESCAPE '\' OR LOWER(challenges.tags) LIKE ? ESCAPE '\')`,
				pattern, "%"+escapeLike(tagTerm)+"%")
		} else {
			query = query.Where(`LOWER(challenges.title) LIKE ? ESCAPE '\'`, pattern)
		}
	}
	if filter.Difficulty != "" {
		query = query.Where("challenges.difficulty = ?", filter.Difficulty)
	}
	if filter.Category != "" {
		query = query.Where("challenges.category = ?", filter.Category)
	}

	switch {
	case filter.Past:
		query = query.Where("challenges.ends_at IS NOT NULL AND challenges.ends_at < ?", now)
	case !filter.IncludeEnded:
		query = query.Where("(challenges.ends_at IS NULL OR challenges.ends_at >= ?)", now)
	}
	return query
}

func paginate(query *gorm.DB, filter ChallengeFilter) *gorm.DB {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	query = query.Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// tags is stored as a JSON array, so its punctuation must not take part in a
// tag match
var jsonPunctuation = strings.NewReplacer(`[`, "", `]`, "", `"`, "", `,`, "", `\`, "")

func tagSearchTerm(term string) string {
	return strings.TrimSpace(jsonPunctuation.Replace(term))
}

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ================== OWNER OPERATIONS ==================

// Delete removes a challenge with its participants, comments and reactions.
// Only the creator may delete.
func (s *ChallengeService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return errAuthRequired()
	}

	err := runTx(ctx, s.db, DefaultTxMaxRetries, "delete_challenge", func(tx *gorm.DB) error {
		challenge, err := getChallenge(forUpdate(tx), id)
		if err != nil {
			return err
		}
		if challenge.CreatedBy != userID {
			return NewError(ErrForbidden, "only the creator can delete this challenge")
		}

		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("challenge_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentReaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		return tx.Delete(challenge).Error
	})
	if err != nil {
		return err
	}

	ev := realtime.Event{Type: realtime.EventChallengeDeleted, ChallengeID: id, UserID: userID}
	publish(ctx, s.broker, realtime.DirectoryTopic, ev)
	publish(ctx, s.broker, realtime.ChallengeTopic(id), ev)
	publish(ctx, s.broker, realtime.CommentsTopic(id), realtime.Event{Type: realtime.EventCommentsChanged, ChallengeID: id})
	return nil
}

// SetImage stores the uploaded image URL. Only the creator may change it.
func (s *ChallengeService) SetImage(ctx context.Context, userID, id, url string) (*models.Challenge, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}

	challenge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if challenge.CreatedBy != userID {
		return nil, NewError(ErrForbidden, "only the creator can change the image")
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(challenge).
		Updates(map[string]interface{}{"image_url": url, "updated_at": now}).Error; err != nil {
		return nil, errInternal("update challenge image", err)
	}
	challenge.ImageURL = url
	challenge.UpdatedAt = now

	ev := realtime.Event{Type: realtime.EventChallengeUpdated, ChallengeID: id, UserID: userID}
	publish(ctx, s.broker, realtime.ChallengeTopic(id), ev)
	publish(ctx, s.broker, realtime.DirectoryTopic, ev)
	return challenge, nil
}

// ================== LIVE VIEW ==================

// ChallengeSnapshot is what a detail screen shows for one viewer
type ChallengeSnapshot struct {
	Challenge *models.Challenge `json:"challenge"`
	Joined    bool              `json:"joined"`
	Deleted   bool              `json:"deleted,omitempty"`
}

// Snapshot loads the challenge and whether userID has joined it
func (s *ChallengeService) Snapshot(ctx context.Context, id, userID string) (*ChallengeSnapshot, error) {
	challenge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	joined, err := isParticipant(s.db.WithContext(ctx), id, userID)
	if err != nil {
		return nil, err
	}
	return &ChallengeSnapshot{Challenge: challenge, Joined: joined}, nil
}

// Watch calls fn with a fresh snapshot now and after every change to the
// challenge. A deleted challenge yields one snapshot with Deleted set.
func (s *ChallengeService) Watch(ctx context.Context, id, userID string, fn func(*ChallengeSnapshot)) (func(), error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	return realtime.Follow(ctx, s.broker, realtime.ChallengeTopic(id), func(ctx context.Context) {
		snap, err := s.Snapshot(ctx, id, userID)
		switch {
		case err == nil:
			fn(snap)
		case IsCode(err, ErrNotFound):
			fn(&ChallengeSnapshot{Deleted: true})
		default:
			logWatchError("challenge", id, err)
		}
	})
}

// WatchDirectory calls fn with the filtered directory now and after every
// change to any challenge, including participant counts
func (s *ChallengeService) WatchDirectory(ctx context.Context, filter ChallengeFilter, fn func([]models.Challenge)) (func(), error) {
	return realtime.Follow(ctx, s.broker, realtime.DirectoryTopic, func(ctx context.Context) {
		challenges, err := s.List(ctx, filter)
		if err != nil {
			logWatchError("directory", "", err)
			return
		}
		fn(challenges)
	})
}
