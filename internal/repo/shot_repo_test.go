package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-range-backend/internal/domain"
)

func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedShot(t *testing.T, db *gorm.DB, sessionID, targetID string, number int, score float64, ts time.Time) *domain.Shot {
	t.Helper()
	sh := &domain.Shot{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		TargetID:     targetID,
		UserID:       "u1",
		TargetNumber: number,
		Score:        score,
		Timestamp:    ts,
	}
	if err := CreateShot(context.Background(), db, sh); err != nil {
		t.Fatalf("seed shot: %v", err)
	}
	return sh
}

func TestSessionShotStats(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	targetID := uuid.NewString()

	// Empty set → all zero, no error.
	total, avg, max, min, err := SessionShotStats(ctx, db, sessionID)
	if err != nil {
		t.Fatalf("stats (empty): %v", err)
	}
	if total != 0 || avg != 0 || max != 0 || min != 0 {
		t.Fatalf("empty stats = %d/%v/%v/%v", total, avg, max, min)
	}

	now := time.Now().UTC()
	seedShot(t, db, sessionID, targetID, 1, 10, now)
	seedShot(t, db, sessionID, targetID, 1, 7, now.Add(time.Second))
	seedShot(t, db, uuid.NewString(), targetID, 1, 1, now) // different session, excluded

	total, avg, max, min, err = SessionShotStats(ctx, db, sessionID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if total != 2 || avg != 8.5 || max != 10 || min != 7 {
		t.Fatalf("stats = %d/%v/%v/%v", total, avg, max, min)
	}
}

func TestCascadeShotTargetNumber(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	targetID := uuid.NewString()
	otherTarget := uuid.NewString()
	now := time.Now().UTC()

	seedShot(t, db, sessionID, targetID, 3, 9, now)
	seedShot(t, db, sessionID, targetID, 3, 8, now.Add(time.Second))
	bystander := seedShot(t, db, sessionID, otherTarget, 1, 7, now)

	if err := CascadeShotTargetNumber(ctx, db, targetID, 2); err != nil {
		t.Fatalf("cascade: %v", err)
	}

	shots, err := ListShotsByTarget(ctx, db, targetID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, sh := range shots {
		if sh.TargetNumber != 2 {
			t.Fatalf("shot %s number = %d, want 2", sh.ID, sh.TargetNumber)
		}
	}

	got, err := GetShot(ctx, db, bystander.ID, "u1")
	if err != nil {
		t.Fatalf("get bystander: %v", err)
	}
	if got.TargetNumber != 1 {
		t.Fatalf("bystander renumbered to %d", got.TargetNumber)
	}
}

func TestListShotsBySession_Ordering(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	t1, t2 := uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()

	// Inserted out of order on purpose.
	seedShot(t, db, sessionID, t2, 2, 5, now)
	seedShot(t, db, sessionID, t1, 1, 6, now.Add(2*time.Second))
	seedShot(t, db, sessionID, t1, 1, 7, now)

	shots, err := ListShotsBySession(ctx, db, sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shots) != 3 {
		t.Fatalf("expected 3 shots, got %d", len(shots))
	}
	if shots[0].TargetNumber != 1 || shots[1].TargetNumber != 1 || shots[2].TargetNumber != 2 {
		t.Fatalf("target ordering wrong: %d,%d,%d", shots[0].TargetNumber, shots[1].TargetNumber, shots[2].TargetNumber)
	}
	if !shots[0].Timestamp.Before(shots[1].Timestamp) {
		t.Fatalf("timestamp ordering wrong within target")
	}
}

func TestDeleteShot_Semantics(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	targetID := uuid.NewString()
	sh := seedShot(t, db, sessionID, targetID, 1, 9, time.Now().UTC())

	if err := DeleteShot(ctx, db, sh.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteShot(ctx, db, sh.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestSessionCascadeDeletes(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	tgt, err := CreateTarget(ctx, db, sessionID, "u1", 1)
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	seedShot(t, db, sessionID, tgt.ID, 1, 9, time.Now().UTC())

	if err := DeleteShotsBySession(ctx, db, sessionID); err != nil {
		t.Fatalf("delete shots: %v", err)
	}
	if err := DeleteTargetsBySession(ctx, db, sessionID); err != nil {
		t.Fatalf("delete targets: %v", err)
	}

	if n, err := CountShotsByTarget(ctx, db, tgt.ID); err != nil || n != 0 {
		t.Fatalf("shots left: n=%d err=%v", n, err)
	}
	if n, err := CountTargets(ctx, db, sessionID, "u1"); err != nil || n != 0 {
		t.Fatalf("targets left: n=%d err=%v", n, err)
	}
}
