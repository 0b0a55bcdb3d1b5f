package repository

import (
	"context"

	"github.com/averos/gatekeeper/internal/models"
	"github.com/averos/gatekeeper/internal/storage"
	"gorm.io/gorm/clause"
)

type TierRepository struct {
	db *storage.Postgres
}

func NewTierRepository(db *storage.Postgres) *TierRepository {
	return &TierRepository{db: db}
}

// Seed replaces the persisted tier rows with the configuration loaded at
// startup, keeping the table in step with what the process enforces.
func (r *TierRepository) Seed(ctx context.Context, tiers []models.RateLimitTier) error {
	if len(tiers) == 0 {
		return nil
	}
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(&tiers).Error
}

func (r *TierRepository) List(ctx context.Context) ([]models.RateLimitTier, error) {
	var tiers []models.RateLimitTier
	err := r.db.DB.WithContext(ctx).
		Order("name").
		Find(&tiers).Error

	return tiers, err
}
