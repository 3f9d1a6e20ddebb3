// Package services – TargetService
//
// This file implements the TargetService, which owns target numbering for a
// session: find-or-create by number, explicit create/update/delete, full
// reorder, empty-target cleanup, and the resequencer that keeps the numbers
// of a (session, owner) pair contiguous at 1..N and mirrored onto every
// shot's denormalized target number.
//
// The resequencer is the only writer of target numbers on either side of the
// denormalization. All multi-row mutations run inside a single transaction.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// session/user identifiers.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-range-backend/internal/domain"
	"github.com/tbourn/go-range-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TargetService implements target store operations and resequencing.
type TargetService struct {
	// DB is the database handle used for all target operations.
	DB *gorm.DB
}

// List returns the targets of a session ordered by number. Numbering is
// opportunistically resequenced first so reads self-heal legacy or partially
// written data.
func (s *TargetService) List(ctx context.Context, sessionID, userID string) ([]domain.Target, error) {
	ctx, span := targetTracer(ctx, "List", sessionID, userID)
	defer span.End()

	if _, err := s.ownedSession(ctx, s.DB, sessionID, userID); err != nil {
		return nil, err
	}

	var out []domain.Target
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := resequenceTx(ctx, tx, sessionID, userID, 1); err != nil {
			return err
		}
		var err error
		out, err = repo.ListTargets(ctx, tx, sessionID, userID)
		return err
	})
	return out, err
}

// Ensure finds the target holding number in (session, owner), creating it if
// absent, and returns the post-resequence target: if the requested number was
// not the lowest available gap the stored number will differ from the
// requested one.
func (s *TargetService) Ensure(ctx context.Context, sessionID, userID string, number int) (*domain.Target, error) {
	ctx, span := targetTracer(ctx, "Ensure", sessionID, userID)
	defer span.End()

	if number < 1 {
		return nil, ErrInvalidTargetNumber
	}
	if _, err := s.ownedSession(ctx, s.DB, sessionID, userID); err != nil {
		return nil, err
	}

	var out *domain.Target
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := ensureTargetTx(ctx, tx, sessionID, userID, number)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// Create explicitly creates a target. With number nil the next free slot
// (count+1) is assigned; an explicit number already in use is a conflict.
func (s *TargetService) Create(ctx context.Context, sessionID, userID string, number *int) (*domain.Target, error) {
	ctx, span := targetTracer(ctx, "Create", sessionID, userID)
	defer span.End()

	if _, err := s.ownedSession(ctx, s.DB, sessionID, userID); err != nil {
		return nil, err
	}

	var out *domain.Target
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n := 0
		if number != nil {
			if *number < 1 {
				return ErrInvalidTargetNumber
			}
			if _, err := repo.GetTargetByNumber(ctx, tx, sessionID, userID, *number); err == nil {
				return ErrDuplicateTargetNumber
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			n = *number
		} else {
			count, err := repo.CountTargets(ctx, tx, sessionID, userID)
			if err != nil {
				return err
			}
			n = int(count) + 1
		}

		t, err := repo.CreateTarget(ctx, tx, sessionID, userID, n)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicateTargetNumber
			}
			return err
		}
		if err := addTargetToOrderTx(ctx, tx, sessionID, t.ID); err != nil {
			return err
		}
		if err := resequenceTx(ctx, tx, sessionID, userID, 1); err != nil {
			return err
		}
		fresh, err := repo.GetTarget(ctx, tx, t.ID, userID)
		if err != nil {
			return err
		}
		out = fresh
		return nil
	})
	return out, err
}

// Update moves a target to a new number. The number must not be held by a
// different target; the shots' denormalized numbers follow, and a final
// resequence closes the gap the move leaves behind.
func (s *TargetService) Update(ctx context.Context, userID, targetID string, newNumber int) (*domain.Target, error) {
	ctx, span := targetTracer(ctx, "Update", "", userID)
	defer span.End()

	if newNumber < 1 {
		return nil, ErrInvalidTargetNumber
	}

	var out *domain.Target
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := repo.GetTarget(ctx, tx, targetID, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrTargetNotFound
			}
			return err
		}

		if other, err := repo.GetTargetByNumber(ctx, tx, t.SessionID, t.UserID, newNumber); err == nil {
			if other.ID != t.ID {
				return ErrDuplicateTargetNumber
			}
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		if t.TargetNumber != newNumber {
			if err := repo.UpdateTargetNumber(ctx, tx, t.ID, newNumber); err != nil {
				return err
			}
			if err := repo.CascadeShotTargetNumber(ctx, tx, t.ID, newNumber); err != nil {
				return err
			}
			if err := resequenceTx(ctx, tx, t.SessionID, t.UserID, 1); err != nil {
				return err
			}
		}

		fresh, err := repo.GetTarget(ctx, tx, t.ID, userID)
		if err != nil {
			return err
		}
		out = fresh
		return nil
	})
	return out, err
}

// Delete removes a target and everything it owns: its shots are deleted, the
// session order and statistics are refreshed, and the remaining targets are
// renumbered.
func (s *TargetService) Delete(ctx context.Context, userID, targetID string) error {
	ctx, span := targetTracer(ctx, "Delete", "", userID)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := repo.GetTarget(ctx, tx, targetID, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		return deleteTargetTx(ctx, tx, t)
	})
}

// Reorder assigns numbers 1..N to the session's targets in the given identity
// order and persists that order as the session's authoritative display order.
// orderedIDs must contain exactly the session's current target ids.
func (s *TargetService) Reorder(ctx context.Context, sessionID, userID string, orderedIDs []string) ([]domain.Target, error) {
	ctx, span := targetTracer(ctx, "Reorder", sessionID, userID)
	defer span.End()
	span.SetAttributes(attribute.Int("target.count", len(orderedIDs)))

	if _, err := s.ownedSession(ctx, s.DB, sessionID, userID); err != nil {
		return nil, err
	}

	var out []domain.Target
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		targets, err := repo.ListTargets(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}
		byID := make(map[string]*domain.Target, len(targets))
		for i := range targets {
			byID[targets[i].ID] = &targets[i]
		}
		if len(orderedIDs) != len(targets) {
			return ErrInvalidTargetOrder
		}
		seen := make(map[string]struct{}, len(orderedIDs))
		for _, id := range orderedIDs {
			if _, dup := seen[id]; dup {
				return ErrInvalidTargetOrder
			}
			if _, ok := byID[id]; !ok {
				return ErrInvalidTargetOrder
			}
			seen[id] = struct{}{}
		}

		// Same two-phase strategy as the resequencer: park every target
		// whose number changes above the occupied range, then settle.
		base := tempBase(targets, 1)
		changed := make([]int, 0, len(orderedIDs))
		for i, id := range orderedIDs {
			if byID[id].TargetNumber != i+1 {
				changed = append(changed, i)
			}
		}
		for k, i := range changed {
			if err := repo.UpdateTargetNumber(ctx, tx, orderedIDs[i], base+k); err != nil {
				return err
			}
		}
		for _, i := range changed {
			id := orderedIDs[i]
			if err := repo.UpdateTargetNumber(ctx, tx, id, i+1); err != nil {
				return err
			}
			if err := repo.CascadeShotTargetNumber(ctx, tx, id, i+1); err != nil {
				return err
			}
		}

		if err := repo.UpdateSessionTargetOrder(ctx, tx, sessionID, orderedIDs); err != nil {
			return err
		}
		out, err = repo.ListTargets(ctx, tx, sessionID, userID)
		return err
	})
	return out, err
}

// SetImagePaths records the scan and debug image locations for a target after
// a successful detector run. Empty arguments leave the stored paths untouched.
func (s *TargetService) SetImagePaths(ctx context.Context, userID, targetID, scanPath, debugPath string) error {
	ctx, span := targetTracer(ctx, "SetImagePaths", "", userID)
	defer span.End()

	if _, err := repo.GetTarget(ctx, s.DB, targetID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTargetNotFound
		}
		return err
	}
	return repo.UpdateTargetImagePaths(ctx, s.DB, targetID, scanPath, debugPath)
}

// Resequence renumbers the session's targets to a contiguous run starting at
// 1 and cascades every new number onto the targets' shots. It is a no-op when
// numbering is already contiguous.
func (s *TargetService) Resequence(ctx context.Context, sessionID, userID string) error {
	ctx, span := targetTracer(ctx, "Resequence", sessionID, userID)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return resequenceTx(ctx, tx, sessionID, userID, 1)
	})
}

// ownedSession loads a session distinguishing absence from foreign ownership.
func (s *TargetService) ownedSession(ctx context.Context, db *gorm.DB, sessionID, userID string) (*domain.Session, error) {
	return ownedSessionTx(ctx, db, sessionID, userID)
}

//
// Shared transaction-scoped helpers. ShotService reuses these so the
// numbering invariants have exactly one implementation.
//

// ownedSessionTx maps a missing session to ErrSessionNotFound and an owner
// mismatch to ErrNotSessionOwner before any storage is touched further.
func ownedSessionTx(ctx context.Context, tx *gorm.DB, sessionID, userID string) (*domain.Session, error) {
	sess, err := repo.GetSessionAny(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return sess, nil
}

// resequenceTx renumbers (session, owner) targets to starting..starting+N-1
// in (number, createdAt, id) order and cascades changed numbers to shots.
//
// Writes happen in two phases: changed targets are first parked on temporary
// numbers above every number currently in use, then settled onto their final
// numbers. A single-pass renumber can momentarily collide with an
// already-correct neighbor under the eager (session, owner, number)
// uniqueness constraint.
func resequenceTx(ctx context.Context, tx *gorm.DB, sessionID, userID string, starting int) error {
	targets, err := repo.ListTargets(ctx, tx, sessionID, userID)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	changed := make([]int, 0, len(targets))
	for i := range targets {
		if targets[i].TargetNumber != starting+i {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	base := tempBase(targets, starting)
	for k, i := range changed {
		if err := repo.UpdateTargetNumber(ctx, tx, targets[i].ID, base+k); err != nil {
			return err
		}
	}
	for _, i := range changed {
		final := starting + i
		if err := repo.UpdateTargetNumber(ctx, tx, targets[i].ID, final); err != nil {
			return err
		}
		if err := repo.CascadeShotTargetNumber(ctx, tx, targets[i].ID, final); err != nil {
			return err
		}
	}
	return nil
}

// tempBase picks the first parking number strictly above both the final range
// and every number currently in use.
func tempBase(targets []domain.Target, starting int) int {
	base := starting + len(targets)
	for i := range targets {
		if targets[i].TargetNumber >= base {
			base = targets[i].TargetNumber + 1
		}
	}
	return base
}

// ensureTargetTx is the find-or-create used by shot ingestion: it returns the
// target holding number, creating and resequencing when absent. The returned
// target reflects post-resequence state.
func ensureTargetTx(ctx context.Context, tx *gorm.DB, sessionID, userID string, number int) (*domain.Target, error) {
	if number < 1 {
		return nil, ErrInvalidTargetNumber
	}
	if t, err := repo.GetTargetByNumber(ctx, tx, sessionID, userID, number); err == nil {
		if err := addTargetToOrderTx(ctx, tx, sessionID, t.ID); err != nil {
			return nil, err
		}
		if err := resequenceTx(ctx, tx, sessionID, userID, 1); err != nil {
			return nil, err
		}
		return repo.GetTarget(ctx, tx, t.ID, userID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	t, err := repo.CreateTarget(ctx, tx, sessionID, userID, number)
	if err != nil {
		if isDuplicate(err) {
			// Concurrent writer took the number; use its target.
			return repo.GetTargetByNumber(ctx, tx, sessionID, userID, number)
		}
		return nil, err
	}
	if err := addTargetToOrderTx(ctx, tx, sessionID, t.ID); err != nil {
		return nil, err
	}
	if err := resequenceTx(ctx, tx, sessionID, userID, 1); err != nil {
		return nil, err
	}
	return repo.GetTarget(ctx, tx, t.ID, userID)
}

// cleanupTargetIfEmptyTx deletes a target that no longer owns any shots and
// renumbers the remainder. Reports whether the target was removed.
func cleanupTargetIfEmptyTx(ctx context.Context, tx *gorm.DB, sessionID, userID, targetID string) (bool, error) {
	count, err := repo.CountShotsByTarget(ctx, tx, targetID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := removeTargetFromOrderTx(ctx, tx, sessionID, targetID); err != nil {
		return false, err
	}
	if err := repo.DeleteTarget(ctx, tx, targetID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, err
	}
	if err := resequenceTx(ctx, tx, sessionID, userID, 1); err != nil {
		return false, err
	}
	return true, nil
}

// deleteTargetTx cascades a target deletion: shots first, then session order
// and the row itself, then stats and numbering.
func deleteTargetTx(ctx context.Context, tx *gorm.DB, t *domain.Target) error {
	if err := repo.DeleteShotsByTarget(ctx, tx, t.ID); err != nil {
		return err
	}
	if err := removeTargetFromOrderTx(ctx, tx, t.SessionID, t.ID); err != nil {
		return err
	}
	if err := repo.DeleteTarget(ctx, tx, t.ID); err != nil {
		return err
	}
	if err := recalcSessionStatsTx(ctx, tx, t.SessionID); err != nil {
		return err
	}
	return resequenceTx(ctx, tx, t.SessionID, t.UserID, 1)
}

// addTargetToOrderTx appends a target id to the session's display order if it
// is not already present (idempotent set-add).
func addTargetToOrderTx(ctx context.Context, tx *gorm.DB, sessionID, targetID string) error {
	sess, err := repo.GetSessionAny(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	for _, id := range sess.TargetOrder {
		if id == targetID {
			return nil
		}
	}
	return repo.UpdateSessionTargetOrder(ctx, tx, sessionID, append(sess.TargetOrder, targetID))
}

// removeTargetFromOrderTx drops a target id from the session's display order.
func removeTargetFromOrderTx(ctx context.Context, tx *gorm.DB, sessionID, targetID string) error {
	sess, err := repo.GetSessionAny(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(sess.TargetOrder))
	removed := false
	for _, id := range sess.TargetOrder {
		if id == targetID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	if !removed {
		return nil
	}
	return repo.UpdateSessionTargetOrder(ctx, tx, sessionID, kept)
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// targetTracer starts a span for a TargetService method.
func targetTracer(ctx context.Context, op, sessionID, userID string) (context.Context, trace.Span) {
	tr := otel.Tracer("services/TargetService")
	return tr.Start(ctx, op,
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
		),
	)
}
