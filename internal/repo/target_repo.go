// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Target
// model.
//
// Targets carry the composite-unique (session_id, user_id, target_number)
// invariant; the resequencer in the services layer is the only caller of
// UpdateTargetNumber. Targets are hard-deleted so released numbers become
// reusable immediately.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-range-backend/internal/domain"
)

// CreateTarget inserts a new Target row with the given number.
func CreateTarget(ctx context.Context, db *gorm.DB, sessionID, userID string, number int) (*domain.Target, error) {
	t := &domain.Target{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		UserID:       userID,
		TargetNumber: number,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetTarget fetches a target by id and owner, or ErrNotFound.
func GetTarget(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Target, error) {
	var t domain.Target
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTargetByNumber fetches the target holding number within (session, owner),
// or ErrNotFound.
func GetTargetByNumber(ctx context.Context, db *gorm.DB, sessionID, userID string, number int) (*domain.Target, error) {
	var t domain.Target
	err := db.WithContext(ctx).
		Where("session_id = ? AND user_id = ? AND target_number = ?", sessionID, userID, number).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTargets returns all targets of (session, owner) in resequencing order:
// current number ascending, creation time then id as stable tie-breakers.
func ListTargets(ctx context.Context, db *gorm.DB, sessionID, userID string) ([]domain.Target, error) {
	var out []domain.Target
	err := db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("target_number ASC, created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountTargets returns the number of targets in (session, owner).
func CountTargets(ctx context.Context, db *gorm.DB, sessionID, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Target{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Count(&total).Error
	return total, err
}

// UpdateTargetNumber rewrites a target's number. Reserved for the
// resequencer; everything else must go through the target service so the
// contiguity invariant holds.
func UpdateTargetNumber(ctx context.Context, db *gorm.DB, id string, number int) error {
	return db.WithContext(ctx).
		Model(&domain.Target{}).
		Where("id = ?", id).
		Update("target_number", number).Error
}

// UpdateTargetImagePaths stores the scan and debug image locations captured
// for a target. Empty strings leave the respective column untouched.
func UpdateTargetImagePaths(ctx context.Context, db *gorm.DB, id, scanPath, debugPath string) error {
	updates := map[string]any{}
	if scanPath != "" {
		updates["scan_image_path"] = scanPath
	}
	if debugPath != "" {
		updates["debug_image_path"] = debugPath
	}
	if len(updates) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Target{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteTarget removes a target row. Returns ErrNotFound when nothing was
// deleted.
func DeleteTarget(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Target{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
