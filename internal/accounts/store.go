// Package accounts persists users and their linked provider accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Changes maps users table columns to their new values. A nil value clears the column.
type Changes map[string]any

// Store is the persistence contract used by the auth and verification services.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmailVerificationToken(ctx context.Context, token string) (*models.User, error)
	FindVerifiedByPhoneExcluding(ctx context.Context, phone, excludeEmail string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id uuid.UUID, changes Changes) (*models.User, error)

	FindAccount(ctx context.Context, provider, providerAccountID string) (*models.Account, error)
	LinkAccount(ctx context.Context, account *models.Account) error

	ClearExpiredVerifications(ctx context.Context, now time.Time) (int64, error)
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *GormStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) FindByEmailVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "email_verification_token = ?", token)
}

func (s *GormStore) FindVerifiedByPhoneExcluding(ctx context.Context, phone, excludeEmail string) (*models.User, error) {
	return s.first(ctx, "phone = ? AND phone_verified = ? AND email <> ?", phone, true, excludeEmail)
}

func (s *GormStore) first(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) Create(ctx context.Context, user *models.User) error {
	if _, err := s.FindByEmail(ctx, user.Email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// Two concurrent signups can both pass the pre-check.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// Update applies changes in a single UPDATE keyed by id and returns the fresh row.
func (s *GormStore) Update(ctx context.Context, id uuid.UUID, changes Changes) (*models.User, error) {
	if len(changes) == 0 {
		return s.FindByID(ctx, id)
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any(changes))
	if result.Error != nil {
		return nil, fmt.Errorf("updating user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.FindByID(ctx, id)
}

func (s *GormStore) FindAccount(ctx context.Context, provider, providerAccountID string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &account, nil
}

// LinkAccount inserts the provider link, refreshing the stored tokens when the link already exists.
func (s *GormStore) LinkAccount(ctx context.Context, account *models.Account) error {
	columns := []string{"encrypted_access_token", "expires_at", "updated_at"}
	// Providers usually send a refresh token only on first consent.
	if len(account.EncryptedRefreshToken) > 0 {
		columns = append(columns, "encrypted_refresh_token")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_account_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(account).Error
	if err != nil {
		return fmt.Errorf("linking account: %w", err)
	}
	return nil
}

// ClearExpiredVerifications nulls email tokens and OTPs whose expiry is at or before now.
func (s *GormStore) ClearExpiredVerifications(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("email_verification_token IS NOT NULL AND email_verification_expiry <= ?", now).
			Updates(map[string]any{
				"email_verification_token":  nil,
				"email_verification_expiry": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		cleared += res.RowsAffected

		res = tx.Model(&models.User{}).
			Where("phone_otp IS NOT NULL AND phone_otp_expiry <= ?", now).
			Updates(map[string]any{
				"phone_otp":        nil,
				"phone_otp_expiry": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		cleared += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clearing expired verifications: %w", err)
	}
	return cleared, nil
}
