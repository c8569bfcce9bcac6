package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/pantry/internal/user/domain"
	"github.com/wyfcoding/pantry/pkg/db"
	"gorm.io/gorm"
)

type userRepository struct{ db *db.DB }

func NewUserRepository(database *db.DB) domain.UserRepository {
	return &userRepository{db: database}
}

func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	if err := r.db.Conn(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.Conn(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := r.db.Conn(ctx).
		Where("role = ? AND is_active = ?", domain.RoleAdmin, true).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return users, nil
}
