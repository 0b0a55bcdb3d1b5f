package repository

import (
	"context"

	"github.com/averos/gatekeeper/internal/models"
	"github.com/averos/gatekeeper/internal/storage"
	"gorm.io/gorm"
)

type AdminUserRepository struct {
	db *storage.Postgres
}

func NewAdminUserRepository(db *storage.Postgres) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

func (r *AdminUserRepository) Create(ctx context.Context, user *models.AdminUser) error {
	return r.db.DB.WithContext(ctx).Create(user).Error
}

func (r *AdminUserRepository) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var user models.AdminUser
	err := r.db.DB.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &user, err
}
