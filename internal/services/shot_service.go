// Package services – ShotService
//
// This file implements the ShotService, which orchestrates the shot
// lifecycle: add, update, delete, and the grouped session listing. Each
// mutation resolves or creates the owning target (keeping numbering
// contiguous), derives the score via the scoring engine, persists the shot,
// and refreshes the session aggregates, all inside one transaction.
//
// Score derivation rules: a caller-supplied score is recorded as manual and
// is never overwritten by later position-only updates; without one the score
// is computed from the impact position under the session's scoring mode.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-range-backend/internal/domain"
	"github.com/tbourn/go-range-backend/internal/repo"
	"github.com/tbourn/go-range-backend/internal/scoring"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ShotInput carries the writable fields of a shot mutation. Nil pointers
// leave the corresponding aspect untouched on update, or select defaults on
// add (position 0, timestamp now, computed score).
type ShotInput struct {
	// TargetNumber addresses the owning target explicitly (1-based).
	TargetNumber *int
	// TargetIndex addresses the owning target by 0-based index; resolved as
	// index+1 when TargetNumber is absent.
	TargetIndex *int

	// X, Y are impact coordinates, normalized fractions of the outer radius
	// or millimetres.
	X *float64
	Y *float64

	// Score, when set, records a manual score instead of computing one from
	// the position.
	Score *float64

	// Timestamp is the impact time; defaults to now on add.
	Timestamp *time.Time

	// Client-supplied sequencing metadata, stored verbatim.
	TargetShotIndex  *int
	TargetShotNumber *int
}

// TargetWithShots is one target populated with its shots, ordered by impact
// time. The session listing returns these ordered by target number.
type TargetWithShots struct {
	domain.Target
	Shots []domain.Shot `json:"shots"`
}

// ShotService implements the shot lifecycle operations.
type ShotService struct {
	// DB is the database handle used for all shot operations.
	DB *gorm.DB
	// Config is the target geometry scores are computed against.
	Config scoring.TargetConfig
}

// NewShotService constructs a ShotService scoring against the standard ISSF
// 10 m air pistol geometry.
func NewShotService(db *gorm.DB) *ShotService {
	return &ShotService{DB: db, Config: scoring.ISSFAirPistol10m()}
}

// Add records a new shot in a session. The owning target is addressed by
// explicit number or 0-based index and is created on first use; the stored
// target number reflects post-resequence state.
func (s *ShotService) Add(ctx context.Context, sessionID, userID string, in ShotInput) (*domain.Shot, error) {
	ctx, span := shotTracer(ctx, "Add", sessionID, userID)
	defer span.End()

	number, err := resolveTargetNumber(in)
	if err != nil {
		return nil, err
	}

	var out *domain.Shot
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := ownedSessionTx(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}
		t, err := ensureTargetTx(ctx, tx, sessionID, userID, number)
		if err != nil {
			return err
		}

		x, y := 0.0, 0.0
		if in.X != nil {
			x = *in.X
		}
		if in.Y != nil {
			y = *in.Y
		}

		shot := &domain.Shot{
			ID:               uuid.NewString(),
			SessionID:        sessionID,
			TargetID:         t.ID,
			UserID:           userID,
			TargetNumber:     t.TargetNumber,
			PositionX:        x,
			PositionY:        y,
			Timestamp:        time.Now().UTC(),
			TargetIndex:      in.TargetIndex,
			TargetShotIndex:  in.TargetShotIndex,
			TargetShotNumber: in.TargetShotNumber,
		}
		if in.Timestamp != nil {
			shot.Timestamp = in.Timestamp.UTC()
		}

		if in.Score != nil {
			applyResult(shot, scoring.ManualScore(*in.Score), domain.ScoreSourceManual)
		} else {
			applyResult(shot, scoring.ComputeShotScore(x, y, s.Config, sessionMode(sess)), domain.ScoreSourceComputed)
		}

		if err := repo.CreateShot(ctx, tx, shot); err != nil {
			return err
		}
		if err := recalcSessionStatsTx(ctx, tx, sessionID); err != nil {
			return err
		}
		out = shot
		return nil
	})
	return out, err
}

// Update mutates an existing shot: position, score, metadata, or target
// reassignment. Reassignment moves the shot to the addressed target (creating
// it if needed) and removes the old target when the shot was its last one. A
// manual score update marks the shot manual; position-only updates recompute
// the score unless the shot is manual.
func (s *ShotService) Update(ctx context.Context, userID, shotID string, in ShotInput) (*domain.Shot, error) {
	ctx, span := shotTracer(ctx, "Update", "", userID)
	defer span.End()

	var out *domain.Shot
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shot, err := repo.GetShot(ctx, tx, shotID, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrShotNotFound
			}
			return err
		}
		sess, err := ownedSessionTx(ctx, tx, shot.SessionID, userID)
		if err != nil {
			return err
		}

		oldTargetID := ""
		if in.TargetNumber != nil || in.TargetIndex != nil {
			number, err := resolveTargetNumber(in)
			if err != nil {
				return err
			}
			if number != shot.TargetNumber {
				t, err := ensureTargetTx(ctx, tx, shot.SessionID, userID, number)
				if err != nil {
					return err
				}
				if t.ID != shot.TargetID {
					oldTargetID = shot.TargetID
					shot.TargetID = t.ID
					shot.TargetNumber = t.TargetNumber
				}
			}
		}

		posChanged := false
		if in.X != nil {
			shot.PositionX = *in.X
			posChanged = true
		}
		if in.Y != nil {
			shot.PositionY = *in.Y
			posChanged = true
		}
		if in.Timestamp != nil {
			shot.Timestamp = in.Timestamp.UTC()
		}
		if in.TargetShotIndex != nil {
			shot.TargetShotIndex = in.TargetShotIndex
		}
		if in.TargetShotNumber != nil {
			shot.TargetShotNumber = in.TargetShotNumber
		}

		switch {
		case in.Score != nil:
			applyResult(shot, scoring.ManualScore(*in.Score), domain.ScoreSourceManual)
		case posChanged && shot.ScoreSource != domain.ScoreSourceManual:
			applyResult(shot, scoring.ComputeShotScore(shot.PositionX, shot.PositionY, s.Config, sessionMode(sess)), domain.ScoreSourceComputed)
		}

		if err := repo.SaveShot(ctx, tx, shot); err != nil {
			return err
		}
		if oldTargetID != "" {
			if _, err := cleanupTargetIfEmptyTx(ctx, tx, shot.SessionID, userID, oldTargetID); err != nil {
				return err
			}
		}
		if err := recalcSessionStatsTx(ctx, tx, shot.SessionID); err != nil {
			return err
		}

		// Cleanup may have renumbered targets; reload so the denormalized
		// number reflects final state.
		fresh, err := repo.GetShot(ctx, tx, shot.ID, userID)
		if err != nil {
			return err
		}
		out = fresh
		return nil
	})
	return out, err
}

// Delete removes a shot, drops its target when the shot was the last one on
// it, and refreshes the session aggregates. When the id addresses a target
// instead of a shot the whole target and its shots are deleted; older clients
// issued shot deletes against target ids.
func (s *ShotService) Delete(ctx context.Context, userID, shotID string) error {
	ctx, span := shotTracer(ctx, "Delete", "", userID)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shot, err := repo.GetShot(ctx, tx, shotID, userID)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			t, terr := repo.GetTarget(ctx, tx, shotID, userID)
			if terr != nil {
				if errors.Is(terr, repo.ErrNotFound) {
					return ErrShotNotFound
				}
				return terr
			}
			return deleteTargetTx(ctx, tx, t)
		}

		if err := repo.DeleteShot(ctx, tx, shot.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if _, err := cleanupTargetIfEmptyTx(ctx, tx, shot.SessionID, userID, shot.TargetID); err != nil {
			return err
		}
		return recalcSessionStatsTx(ctx, tx, shot.SessionID)
	})
}

// ListBySession returns the session's targets ordered by number, each
// populated with its shots ordered by impact time. Numbering is
// opportunistically resequenced first.
func (s *ShotService) ListBySession(ctx context.Context, sessionID, userID string) ([]TargetWithShots, error) {
	ctx, span := shotTracer(ctx, "ListBySession", sessionID, userID)
	defer span.End()

	if _, err := ownedSessionTx(ctx, s.DB, sessionID, userID); err != nil {
		return nil, err
	}

	var out []TargetWithShots
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := resequenceTx(ctx, tx, sessionID, userID, 1); err != nil {
			return err
		}
		targets, err := repo.ListTargets(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}
		shots, err := repo.ListShotsBySession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		byTarget := make(map[string][]domain.Shot, len(targets))
		for _, sh := range shots {
			byTarget[sh.TargetID] = append(byTarget[sh.TargetID], sh)
		}
		out = make([]TargetWithShots, 0, len(targets))
		for _, t := range targets {
			group := byTarget[t.ID]
			if group == nil {
				group = []domain.Shot{}
			}
			out = append(out, TargetWithShots{Target: t, Shots: group})
		}
		return nil
	})
	return out, err
}

// resolveTargetNumber derives the 1-based target number from a shot input:
// explicit number first, then 0-based index as index+1.
func resolveTargetNumber(in ShotInput) (int, error) {
	switch {
	case in.TargetNumber != nil:
		if *in.TargetNumber < 1 {
			return 0, ErrInvalidTargetNumber
		}
		return *in.TargetNumber, nil
	case in.TargetIndex != nil:
		if *in.TargetIndex < 0 {
			return 0, ErrInvalidTargetNumber
		}
		return *in.TargetIndex + 1, nil
	default:
		return 0, ErrInvalidTargetNumber
	}
}

// applyResult copies a scoring result onto a shot and records its source.
func applyResult(shot *domain.Shot, res scoring.Result, source string) {
	shot.Score = res.Score
	shot.RingScore = res.RingScore
	shot.DecimalScore = res.DecimalScore
	shot.IsInnerTen = res.IsInnerTen
	shot.ScoreSource = source
}

// sessionMode maps a session's stored scoring mode onto the engine's mode.
func sessionMode(sess *domain.Session) scoring.Mode {
	if sess.ScoringMode == domain.ScoringModeDecimal {
		return scoring.ModeDecimal
	}
	return scoring.ModeClassic
}

// shotTracer starts a span for a ShotService method.
func shotTracer(ctx context.Context, op, sessionID, userID string) (context.Context, trace.Span) {
	tr := otel.Tracer("services/ShotService")
	return tr.Start(ctx, op,
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
		),
	)
}
