package services

import (
	"context"
	"sync"
	"time"

	"fitchallenge/models"
	"fitchallenge/realtime"
	"fitchallenge/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileReport counts the records whose denormalized counters were repaired
type ReconcileReport struct {
	Challenges int `json:"challenges"`
	Comments   int `json:"comments"`
}

// CleanupService repairs participants_count and reply_count drift in the
// background. Drift means a write path is broken, so every repair is logged
// at error level.
type CleanupService struct {
	db       *gorm.DB
	broker   realtime.Broker
	interval time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	lastRun    time.Time
	lastReport *ReconcileReport
}

var cleanupService *CleanupService

// NewCleanupService builds a reconciler. broker may be nil, in which case
// repairs are not announced to live views.
func NewCleanupService(db *gorm.DB, broker realtime.Broker, interval time.Duration) *CleanupService {
	return &CleanupService{db: db, broker: broker, interval: interval}
}

// InitCleanupService initializes the singleton cleanup service.
func InitCleanupService(db *gorm.DB, broker realtime.Broker, interval time.Duration) *CleanupService {
	cleanupService = NewCleanupService(db, broker, interval)
	return cleanupService
}

// GetCleanupService returns the initialized cleanup service.
func GetCleanupService() *CleanupService {
	return cleanupService
}

// Start runs Reconcile every interval until Stop. A zero interval disables it.
func (s *CleanupService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 || s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
					utils.Logger.Error("reconcile failed", zap.Error(err))
				}
			}
		}
	}()
	utils.Logger.Info("reconciler started", zap.Duration("interval", s.interval))
}

// Stop ends the background loop and waits for it
func (s *CleanupService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

type counterDrift struct {
	ID          string
	ChallengeID string
	Stored      int
	Actual      int
}

// Reconcile finds counters that disagree with their row counts and repairs
// each one under the same row lock the write paths take
func (s *CleanupService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	db := s.db.WithContext(ctx)
	report := &ReconcileReport{}

	var challenges []counterDrift
	if err := db.Model(&models.Challenge{}).
		Select("challenges.id AS id, challenges.id AS challenge_id").
		Where("challenges.participants_count <> (SELECT COUNT(*) FROM challenge_participants p WHERE p.challenge_id = challenges.id)").
		Scan(&challenges).Error; err != nil {
		return nil, errInternal("scan participant counts", err)
	}

	for _, d := range challenges {
		repaired, err := s.repairParticipants(ctx, &d)
		if err != nil {
			return report, err
		}
		if !repaired {
			continue
		}
		utils.Logger.Error("repaired participants_count drift",
			zap.String("challenge_id", d.ID), zap.Int("stored", d.Stored), zap.Int("actual", d.Actual))
		reconcileRepairs.WithLabelValues("participants_count").Inc()
		report.Challenges++

		ev := realtime.Event{Type: realtime.EventParticipantsChanged, ChallengeID: d.ID}
		publish(ctx, s.broker, realtime.ChallengeTopic(d.ID), ev)
		publish(ctx, s.broker, realtime.DirectoryTopic, ev)
	}

	var comments []counterDrift
	if err := db.Model(&models.Comment{}).
		Select("challenge_comments.id AS id, challenge_comments.challenge_id AS challenge_id").
		Where("challenge_comments.parent_id IS NULL").
		Where("challenge_comments.reply_count <> (SELECT COUNT(*) FROM challenge_comments r WHERE r.parent_id = challenge_comments.id)").
		Scan(&comments).Error; err != nil {
		return report, errInternal("scan reply counts", err)
	}

	for _, d := range comments {
		repaired, err := s.repairReplies(ctx, &d)
		if err != nil {
			return report, err
		}
		if !repaired {
			continue
		}
		utils.Logger.Error("repaired reply_count drift",
			zap.String("comment_id", d.ID), zap.Int("stored", d.Stored), zap.Int("actual", d.Actual))
		reconcileRepairs.WithLabelValues("reply_count").Inc()
		report.Comments++

		publish(ctx, s.broker, realtime.CommentsTopic(d.ChallengeID), realtime.Event{
			Type:        realtime.EventCommentsChanged,
			ChallengeID: d.ChallengeID,
			CommentID:   d.ID,
		})
	}

	if report.Challenges == 0 && report.Comments == 0 {
		utils.Logger.Debug("reconcile found no drift")
	}

	s.mu.Lock()
	s.lastRun = utcNow()
	s.lastReport = report
	s.mu.Unlock()
	return report, nil
}

// repairParticipants recounts one challenge's participants while holding its
// row lock. It reports false when the row is gone or already consistent.
func (s *CleanupService) repairParticipants(ctx context.Context, d *counterDrift) (bool, error) {
	repaired := false
	err := runTx(ctx, s.db, DefaultTxMaxRetries, "reconcile_participants", func(tx *gorm.DB) error {
		repaired = false

		challenge, err := getChallenge(forUpdate(tx), d.ID)
		if err != nil {
			return err
		}
		var actual int64
		if err := tx.Model(&models.Participant{}).Where("challenge_id = ?", d.ID).Count(&actual).Error; err != nil {
			return err
		}
		if int(actual) == challenge.ParticipantsCount {
			return nil
		}
		if err := tx.Model(&models.Challenge{}).Where("id = ?", d.ID).
			UpdateColumn("participants_count", actual).Error; err != nil {
			return err
		}
		d.Stored, d.Actual = challenge.ParticipantsCount, int(actual)
		repaired = true
		return nil
	})
	if IsCode(err, ErrNotFound) {
		return false, nil
	}
	return repaired, err
}

// repairReplies recounts one top-level comment's replies while holding its
// row lock
func (s *CleanupService) repairReplies(ctx context.Context, d *counterDrift) (bool, error) {
	repaired := false
	err := runTx(ctx, s.db, DefaultTxMaxRetries, "reconcile_replies", func(tx *gorm.DB) error {
		repaired = false

		comment, err := getComment(forUpdate(tx), d.ChallengeID, d.ID)
		if err != nil {
			return err
		}
		var actual int64
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", d.ID).Count(&actual).Error; err != nil {
			return err
		}
		if int(actual) == comment.ReplyCount {
			return nil
		}
		if err := tx.Model(&models.Comment{}).Where("id = ?", d.ID).
			UpdateColumn("reply_count", actual).Error; err != nil {
			return err
		}
		d.Stored, d.Actual = comment.ReplyCount, int(actual)
		repaired = true
		return nil
	})
	if IsCode(err, ErrNotFound) {
		return false, nil
	}
	return repaired, err
}

// LastRun returns when Reconcile last completed and what it repaired. The
// report is nil before the first run.
func (s *CleanupService) LastRun() (time.Time, *ReconcileReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return time.Time{}, nil
	}
	report := *s.lastReport
	return s.lastRun, &report
}
