// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// model.
//
// All functions accept a *gorm.DB handle, making them safe for use within
// transactions or connection-scoped operations. They follow the "thin
// repository" approach: no business logic, only CRUD persistence and query
// composition.
//
// Error semantics:
//   - When a session is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-range-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSession inserts a new Session row owned by userID. The id is a
// randomly generated UUID and CreatedAt is set to UTC.
func CreateSession(ctx context.Context, db *gorm.DB, userID, title, scoringMode string) (*domain.Session, error) {
	s := &domain.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		ScoringMode: scoringMode,
		TargetOrder: []string{},
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by id and owner. If the record does not exist
// or is owned by someone else, it returns ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionAny fetches a session by id regardless of owner. Callers use it
// to distinguish "absent" (404) from "owned by someone else" (403).
func GetSessionAny(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CountSessions returns the total number of sessions owned by userID.
func CountSessions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListSessionsPage returns a paginated slice of sessions for userID, ordered
// by creation time descending. Use CountSessions for pagination metadata.
func ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Session, error) {
	var out []domain.Session
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateSessionStats persists recomputed aggregate statistics for a session.
func UpdateSessionStats(ctx context.Context, db *gorm.DB, id string, totalShots int, avg, max, min float64) error {
	return db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_shots":   totalShots,
			"average_score": avg,
			"max_score":     max,
			"min_score":     min,
		}).Error
}

// UpdateSessionTargetOrder persists the authoritative target display order.
// The column update path does not run the model's JSON serializer, so the
// slice is marshaled here before it is written.
func UpdateSessionTargetOrder(ctx context.Context, db *gorm.DB, id string, order []string) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("target_order", string(raw)).Error
}

// DeleteSession removes a session owned by userID. Targets and shots are
// deleted by the caller beforehand (the service cascades explicitly so the
// behavior does not depend on driver-level FK support). Returns ErrNotFound
// when no row was affected.
func DeleteSession(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Session{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
