// services/profile_service.go - Accounts and profiles
package services

import (
	"context"
	"strings"
	"time"

	"fitchallenge/models"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type credentialsInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// ProfileInput is the profile form
type ProfileInput struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
	Username    string `json:"username" validate:"required,max=50"`
	Bio         string `json:"bio" validate:"max=500"`
	FitnessGoal string `json:"fitnessGoal" validate:"fitness_goal"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url,max=512"`
}

type ProfileService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db, now: utcNow}
}

// ================== ACCOUNTS ==================

// Register creates a password account
func (s *ProfileService) Register(ctx context.Context, email, password string) (*models.User, error) {
	input := credentialsInput{Email: normalizeEmail(email), Password: password}
	if err := validateStruct(&input); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
		return nil, errInternal("check email", err)
	}
	if count > 0 {
		return nil, NewError(ErrConflict, "an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errInternal("hash password", err)
	}

	now := s.now()
	user := &models.User{
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLogin:    &now,
	}
	if err := db.Create(user).Error; err != nil {
		if isRetryable(err) {
			return nil, NewError(ErrConflict, "an account with this email already exists")
		}
		return nil, errInternal("create user", err)
	}
	return user, nil
}

// Authenticate checks a password login and records it
func (s *ProfileService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := NewError(ErrUnauthenticated, "invalid email or password")

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid
	}

	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", email).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, errInternal("load user", err)
	}
	if user.PasswordHash == "" {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	now := s.now()
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, errInternal("update last login", err)
	}
	user.LastLogin = &now
	return &user, nil
}

// EnsureUser records an externally verified identity the first time it is
// seen. When the email already belongs to another account the identity is
// stored under a placeholder address.
func (s *ProfileService) EnsureUser(ctx context.Context, id, email string) error {
	if id == "" {
		return errAuthRequired()
	}

	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&existing).Error; err != nil {
		return errInternal("check user", err)
	}
	if existing > 0 {
		return nil
	}

	email = normalizeEmail(email)
	if email != "" {
		var taken int64
		if err := db.Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return errInternal("check email", err)
		}
		if taken > 0 {
			email = ""
		}
	}
	if email == "" {
		email = placeholderEmail(id)
	}

	now := s.now()
	user := &models.User{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}
	insert := func() error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(user).Error
	}
	err := insert()
	if err != nil && isRetryable(err) && user.Email != placeholderEmail(id) {
		// the email was registered between the check and the insert
		user.Email = placeholderEmail(id)
		err = insert()
	}
	if err != nil {
		return errInternal("ensure user", err)
	}
	return nil
}

func placeholderEmail(id string) string {
	return id + "@users.invalid"
}

// GetUser returns an account
func (s *ProfileService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("user")
		}
		return nil, errInternal("load user", err)
	}
	return &user, nil
}

// ================== PROFILES ==================

// GetProfile returns the user's profile
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("profile")
		}
		return nil, errInternal("load profile", err)
	}
	return &profile, nil
}

// UpsertProfile creates or replaces the user's profile
func (s *ProfileService) UpsertProfile(ctx context.Context, userID string, input ProfileInput) (*models.Profile, error) {
	if userID == "" {
		return nil, errAuthRequired()
	}

	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.Username = strings.TrimSpace(input.Username)
	input.Bio = strings.TrimSpace(input.Bio)
	input.FitnessGoal = strings.TrimSpace(input.FitnessGoal)
	input.AvatarURL = strings.TrimSpace(input.AvatarURL)
	if err := validateStruct(&input); err != nil {
		return nil, err
	}

	now := s.now()
	profile := &models.Profile{
		UserID:      userID,
		DisplayName: input.DisplayName,
		Username:    input.Username,
		Bio:         input.Bio,
		FitnessGoal: input.FitnessGoal,
		AvatarURL:   input.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "username", "bio", "fitness_goal", "avatar_url", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return nil, errInternal("save profile", err)
	}
	return s.GetProfile(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
