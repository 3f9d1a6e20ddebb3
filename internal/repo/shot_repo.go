// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Shot model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-range-backend/internal/domain"
)

// CreateShot inserts a fully populated shot row. The caller (shot service)
// builds the struct including id, score fields and denormalized target
// number.
func CreateShot(ctx context.Context, db *gorm.DB, shot *domain.Shot) error {
	if shot.CreatedAt.IsZero() {
		shot.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(shot).Error
}

// GetShot fetches a shot by id and owner, or ErrNotFound.
func GetShot(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Shot, error) {
	var s domain.Shot
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListShotsByTarget returns a target's shots ordered by impact timestamp
// ascending, ids as a stable tie-breaker.
func ListShotsByTarget(ctx context.Context, db *gorm.DB, targetID string) ([]domain.Shot, error) {
	var out []domain.Shot
	err := db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListShotsBySession returns every shot in a session, target number then
// timestamp ascending.
func ListShotsBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Shot, error) {
	var out []domain.Shot
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("target_number ASC, timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountShotsByTarget returns how many shots reference a target.
func CountShotsByTarget(ctx context.Context, db *gorm.DB, targetID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Shot{}).
		Where("target_id = ?", targetID).
		Count(&total).Error
	return total, err
}

// SaveShot persists all columns of an already-loaded shot.
func SaveShot(ctx context.Context, db *gorm.DB, shot *domain.Shot) error {
	return db.WithContext(ctx).Save(shot).Error
}

// CascadeShotTargetNumber bulk-rewrites the denormalized target number on
// every shot referencing targetID. Reserved for the resequencer.
func CascadeShotTargetNumber(ctx context.Context, db *gorm.DB, targetID string, number int) error {
	return db.WithContext(ctx).
		Model(&domain.Shot{}).
		Where("target_id = ?", targetID).
		Update("target_number", number).Error
}

// DeleteShot removes a single shot row. Returns ErrNotFound when nothing was
// deleted.
func DeleteShot(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Shot{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteShotsByTarget removes every shot referencing a target (target
// deletion cascade).
func DeleteShotsByTarget(ctx context.Context, db *gorm.DB, targetID string) error {
	return db.WithContext(ctx).Where("target_id = ?", targetID).Delete(&domain.Shot{}).Error
}

// DeleteShotsBySession removes every shot in a session (session deletion
// cascade).
func DeleteShotsBySession(ctx context.Context, db *gorm.DB, sessionID string) error {
	return db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&domain.Shot{}).Error
}

// DeleteTargetsBySession removes every target in a session (session deletion
// cascade).
func DeleteTargetsBySession(ctx context.Context, db *gorm.DB, sessionID string) error {
	return db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&domain.Target{}).Error
}

// SessionShotStats computes count/avg/max/min over the display score of a
// session's current shot set in a single aggregate query. With no shots all
// aggregates are zero.
func SessionShotStats(ctx context.Context, db *gorm.DB, sessionID string) (total int64, avg, max, min float64, err error) {
	var row struct {
		Total int64
		Avg   *float64
		Max   *float64
		Min   *float64
	}
	err = db.WithContext(ctx).
		Raw("SELECT COUNT(*) AS total, AVG(score) AS avg, MAX(score) AS max, MIN(score) AS min FROM shots WHERE session_id = ?", sessionID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, 0, 0, err
	}
	total = row.Total
	if row.Avg != nil {
		avg = *row.Avg
	}
	if row.Max != nil {
		max = *row.Max
	}
	if row.Min != nil {
		min = *row.Min
	}
	return total, avg, max, min, nil
}
