package repository

import (
	"context"

	"github.com/averos/gatekeeper/internal/models"
	"github.com/averos/gatekeeper/internal/storage"
	"gorm.io/gorm/clause"
)

type IPListRepository struct {
	db *storage.Postgres
}

func NewIPListRepository(db *storage.Postgres) *IPListRepository {
	return &IPListRepository{db: db}
}

func (r *IPListRepository) Upsert(ctx context.Context, entry *models.IPListEntry) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ip"}, {Name: "list"}},
			UpdateAll: true,
		}).
		Create(entry).Error
}

func (r *IPListRepository) Delete(ctx context.Context, ip, list string) error {
	return r.db.DB.WithContext(ctx).
		Where("ip = ? AND list = ?", ip, list).
		Delete(&models.IPListEntry{}).Error
}

func (r *IPListRepository) List(ctx context.Context) ([]models.IPListEntry, error) {
	var entries []models.IPListEntry
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&entries).Error

	return entries, err
}
