package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/netwatch/internal/models"
)

// AlertRepository persists alerts and deduplicator entries.
type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// SaveAlert inserts or fully updates an alert.
func (r *AlertRepository) SaveAlert(ctx context.Context, alert *models.Alert) error {
	if err := r.db.WithContext(ctx).Save(alert).Error; err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}
	return nil
}

// LoadAlerts returns every alert in creation order.
func (r *AlertRepository) LoadAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.db.WithContext(ctx).Order("seq").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	return alerts, nil
}

// SaveDedupEntries upserts entries by dedup key.
func (r *AlertRepository) SaveDedupEntries(ctx context.Context, entries []models.DedupEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_accepted"}),
		}).
		Create(&entries).Error
	if err != nil {
		return fmt.Errorf("failed to save dedup entries: %w", err)
	}
	return nil
}

func (r *AlertRepository) LoadDedupEntries(ctx context.Context) ([]models.DedupEntry, error) {
	var entries []models.DedupEntry
	if err := r.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load dedup entries: %w", err)
	}
	return entries, nil
}
