// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db, applyUserFilter),
	}
}

func applyUserFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Username != nil {
		query = query.Where("username = ?", *filter.Username)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByUsername retrieves a user by username
func (r *UserRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// ByEmail retrieves a user by email
func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

// TouchLastLogin stamps the last successful login
func (r *UserRepositoryImpl) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	_, err := r.updateWhere(ctx, map[string]any{"last_login_at": at}, "id = ?", id)
	return err
}

// VerificationTargetByID loads the verification view of a user
func (r *UserRepositoryImpl) VerificationTargetByID(ctx context.Context, id uint) (*models.VerificationTarget, error) {
	user, err := r.ByID(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}
	return user.VerificationTarget(), nil
}

// VerificationTargetByEmailToken finds the user holding an outstanding email token
func (r *UserRepositoryImpl) VerificationTargetByEmailToken(ctx context.Context, token string) (*models.VerificationTarget, error) {
	user, err := r.findOne(ctx, "email_verification_token = ?", token)
	if err != nil || user == nil {
		return nil, err
	}
	return user.VerificationTarget(), nil
}

// IssueVerification stores a new token for the given channel
func (r *UserRepositoryImpl) IssueVerification(ctx context.Context, id uint, kind, secret string, sentAt time.Time) (bool, error) {
	return r.issueVerification(ctx, id, kind, secret, sentAt)
}

// ConfirmVerification marks the channel verified if the secret still matches
func (r *UserRepositoryImpl) ConfirmVerification(ctx context.Context, id uint, kind, secret string, verifiedAt time.Time) (bool, error) {
	return r.confirmVerification(ctx, id, kind, secret, verifiedAt)
}
