// Package domain defines the persistence models for practice sessions,
// targets, and shots. These types are mapped with GORM and form the core
// data layer of the range backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Scoring modes supported per session. Classic scores a shot with the integer
// ring value; decimal scores it with the interpolated 0.0–10.9 value.
const (
	ScoringModeClassic = "classic"
	ScoringModeDecimal = "decimal"
)

// Sources a shot score can come from. Computed scores are derived from the
// impact position by the score engine; manual scores are supplied by the
// caller and are never overwritten by position-only updates.
const (
	ScoreSourceComputed = "computed"
	ScoreSourceManual   = "manual"
)

// Session represents one practice session owned by a user. It carries rolling
// aggregate statistics over its shot set and the authoritative display order
// of its targets.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the session owner; indexed for efficient retrieval.
//   - Title: human-readable session title (defaulted if not provided).
//   - ScoringMode: "classic" or "decimal" (enforced by DB constraint).
//   - TotalShots / AverageScore / MaxScore / MinScore: aggregates recomputed in
//     full from the current shot set after every shot mutation; never patched
//     incrementally.
//   - TargetOrder: ordered target ids, the authoritative display order. It is
//     independent of target numbering and only diverges from number order
//     after an explicit reorder.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Session struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string         `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_user_sessions"`
	Title        string         `json:"title"         gorm:"type:varchar(255);not null;default:'New session'"`
	ScoringMode  string         `json:"scoring_mode"  gorm:"type:varchar(16);not null;default:'classic';check:scoring_mode IN ('classic','decimal')"`
	TotalShots   int            `json:"total_shots"   gorm:"not null;default:0"`
	AverageScore float64        `json:"average_score" gorm:"not null;default:0"`
	MaxScore     float64        `json:"max_score"     gorm:"not null;default:0"`
	MinScore     float64        `json:"min_score"     gorm:"not null;default:0"`
	TargetOrder  []string       `json:"target_order"  gorm:"serializer:json"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Target represents one physical scoring sheet within a session. The owner is
// denormalized onto the target so authorization checks never need a join.
//
// TargetNumber is unique within (session, owner): after any mutating
// operation completes, the numbers for a session form exactly {1..N}. The
// resequencer in the target service is the only writer of this field, here
// and on the shots that denormalize it.
//
// Targets are hard-deleted: a soft-deleted row would keep holding its number
// under the composite unique index and block renumbering.
type Target struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	SessionID      string    `json:"session_id"       gorm:"type:char(36);not null;index;uniqueIndex:ux_session_user_number,priority:1"`
	UserID         string    `json:"user_id"          gorm:"type:varchar(64);not null;uniqueIndex:ux_session_user_number,priority:2"`
	TargetNumber   int       `json:"target_number"    gorm:"not null;uniqueIndex:ux_session_user_number,priority:3"`
	ScanImagePath  string    `json:"scan_image_path,omitempty"  gorm:"type:varchar(512)"`
	DebugImagePath string    `json:"debug_image_path,omitempty" gorm:"type:varchar(512)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Session is the parent session. Targets are cascade-deleted if their
	// session is removed.
	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Target.
func (Target) TableName() string { return "targets" }

// Shot represents one recorded impact. Score is the display score and depends
// on the session scoring mode; RingScore and DecimalScore are always both
// stored. TargetNumber duplicates the owning target's number so listings
// never join; the resequencer keeps it consistent.
//
// TargetIndex, TargetShotIndex and TargetShotNumber are free-form
// client-supplied sequencing metadata and are not authoritative.
type Shot struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	SessionID    string    `json:"session_id"    gorm:"type:char(36);not null;index:idx_session_shots"`
	TargetID     string    `json:"target_id"     gorm:"type:char(36);not null;index:idx_target_shots"`
	UserID       string    `json:"user_id"       gorm:"type:varchar(64);not null;index"`
	TargetNumber int       `json:"target_number" gorm:"not null"`
	Score        float64   `json:"score"         gorm:"not null;default:0"`
	RingScore    int       `json:"ring_score"    gorm:"not null;default:0"`
	DecimalScore float64   `json:"decimal_score" gorm:"not null;default:0"`
	IsInnerTen   bool      `json:"is_inner_ten"  gorm:"not null;default:false"`
	ScoreSource  string    `json:"score_source"  gorm:"type:varchar(16);not null;default:'computed';check:score_source IN ('manual','computed')"`
	PositionX    float64   `json:"position_x"    gorm:"not null;default:0"`
	PositionY    float64   `json:"position_y"    gorm:"not null;default:0"`
	Timestamp    time.Time `json:"timestamp"`

	TargetIndex      *int `json:"target_index,omitempty"`
	TargetShotIndex  *int `json:"target_shot_index,omitempty"`
	TargetShotNumber *int `json:"target_shot_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Target is the owning sheet. Shots are cascade-deleted if their target
	// is removed.
	Target Target `json:"-" gorm:"foreignKey:TargetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Shot.
func (Shot) TableName() string { return "shots" }
