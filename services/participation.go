// services/participation.go - Join/leave toggle for challenges
package services

import (
	"context"
	"time"

	"fitchallenge/models"
	"fitchallenge/realtime"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ParticipationResult reports the state after a join or leave
type ParticipationResult struct {
	Joined            bool `json:"joined"`
	ParticipantsCount int  `json:"participantsCount"`
	Changed           bool `json:"changed"`
}

type ParticipationService struct {
	db         *gorm.DB
	broker     realtime.Broker
	maxRetries int
	now        func() time.Time
}

func NewParticipationService(db *gorm.DB, broker realtime.Broker, maxRetries int) *ParticipationService {
	return &ParticipationService{db: db, broker: broker, maxRetries: maxRetries, now: utcNow}
}

// Join adds userID to the challenge. Joining twice is a no-op.
func (s *ParticipationService) Join(ctx context.Context, challengeID, userID string) (*ParticipationResult, error) {
	return s.toggle(ctx, challengeID, userID, true)
}

// Leave removes userID from the challenge. Leaving without having joined is a no-op.
func (s *ParticipationService) Leave(ctx context.Context, challengeID, userID string) (*ParticipationResult, error) {
	return s.toggle(ctx, challengeID, userID, false)
}

// toggle moves the participant row and participants_count together. The
// challenge row lock serializes concurrent toggles on the same challenge.
func (s *ParticipationService) toggle(ctx context.Context, challengeID, userID string, join bool) (*ParticipationResult, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}

	action := "leave"
	if join {
		action = "join"
	}

	var result ParticipationResult
	err := runTx(ctx, s.db, s.maxRetries, action, func(tx *gorm.DB) error {
		result = ParticipationResult{}

		challenge, err := getChallenge(forUpdate(tx), challengeID)
		if err != nil {
			return err
		}

		joined, err := isParticipant(tx, challengeID, userID)
		if err != nil {
			return err
		}

		count := challenge.ParticipantsCount
		switch {
		case join && !joined:
			p := &models.Participant{ChallengeID: challengeID, UserID: userID, JoinedAt: s.now()}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Challenge{}).Where("id = ?", challengeID).
				Update("participants_count", gorm.Expr("participants_count + 1")).Error; err != nil {
				return err
			}
			count++
			result.Changed = true

		case !join && joined:
			if err := tx.Where("challenge_id = ? AND user_id = ?", challengeID, userID).
				Delete(&models.Participant{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Challenge{}).Where("id = ?", challengeID).
				Update("participants_count", gorm.Expr("CASE WHEN participants_count > 0 THEN participants_count - 1 ELSE 0 END")).Error; err != nil {
				return err
			}
			if count > 0 {
				count--
			}
			result.Changed = true
		}

		result.Joined = join
		result.ParticipantsCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	participationToggles.WithLabelValues(action, boolLabel(result.Changed)).Inc()
	if result.Changed {
		ev := realtime.Event{
			Type:        realtime.EventParticipantsChanged,
			ChallengeID: challengeID,
			UserID:      userID,
		}
		publish(ctx, s.broker, realtime.ChallengeTopic(challengeID), ev)
		publish(ctx, s.broker, realtime.DirectoryTopic, ev)
	}
	return &result, nil
}

// IsParticipant reports whether userID has joined the challenge
func (s *ParticipationService) IsParticipant(ctx context.Context, challengeID, userID string) (bool, error) {
	return isParticipant(s.db.WithContext(ctx), challengeID, userID)
}

func isParticipant(db *gorm.DB, challengeID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var p models.Participant
	err := db.Where("challenge_id = ? AND user_id = ?", challengeID, userID).Take(&p).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	}
	return false, errInternal("load participant", err)
}

// Participants lists the challenge's participants in join order
func (s *ParticipationService) Participants(ctx context.Context, challengeID string) ([]models.Participant, error) {
	db := s.db.WithContext(ctx)
	if _, err := getChallenge(db, challengeID); err != nil {
		return nil, err
	}

	participants := []models.Participant{}
	if err := db.Where("challenge_id = ?", challengeID).
		Order("joined_at ASC").Order("user_id ASC").
		Find(&participants).Error; err != nil {
		return nil, errInternal("list participants", err)
	}
	return participants, nil
}
