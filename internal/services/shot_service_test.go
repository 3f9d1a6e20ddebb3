package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-range-backend/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestShot_Add_ManualScoreDrivesStats(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{
		TargetNumber: intPtr(1),
		Score:        floatPtr(9),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sh.Score != 9 || sh.RingScore != 9 || sh.ScoreSource != domain.ScoreSourceManual {
		t.Fatalf("unexpected score fields: %+v", sh)
	}
	if sh.PositionX != 0 || sh.PositionY != 0 {
		t.Fatalf("expected default position 0, got (%v,%v)", sh.PositionX, sh.PositionY)
	}

	var sess domain.Session
	if err := db.First(&sess, "id = ?", "s1").Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if sess.TotalShots != 1 || sess.AverageScore != 9 || sess.MaxScore != 9 || sess.MinScore != 9 {
		t.Fatalf("unexpected stats: %+v", sess)
	}

	if err := svc.Delete(context.Background(), "u1", sh.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.First(&sess, "id = ?", "s1").Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if sess.TotalShots != 0 || sess.AverageScore != 0 || sess.MaxScore != 0 || sess.MinScore != 0 {
		t.Fatalf("expected stats reset to zero, got %+v", sess)
	}
}

func TestShot_Add_CreatesTargetLazilyAtLowestGap(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	// First shot addresses target 3 in an empty session; the created target
	// resequences down to 1 and the shot's denormalized number follows.
	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{TargetNumber: intPtr(3), Score: floatPtr(10)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sh.TargetNumber != 1 {
		t.Fatalf("expected shot on target 1, got %d", sh.TargetNumber)
	}
	if got := targetNumbers(t, db, "s1", "u1"); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected target numbers [1], got %v", got)
	}
}

func TestShot_Add_TargetIndexResolvesAsIndexPlusOne(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	seedTarget(t, db, "s1", "u1", "t1", 1)
	svc := NewShotService(db)

	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{TargetIndex: intPtr(0), Score: floatPtr(7)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sh.TargetID != "t1" || sh.TargetNumber != 1 {
		t.Fatalf("expected shot on existing target t1/#1, got %s/#%d", sh.TargetID, sh.TargetNumber)
	}
}

func TestShot_Add_RejectsUnresolvableTarget(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	for _, in := range []ShotInput{
		{Score: floatPtr(9)},                            // neither number nor index
		{TargetNumber: intPtr(0), Score: floatPtr(9)},   // number below 1
		{TargetIndex: intPtr(-1), Score: floatPtr(9)},   // negative index
	} {
		if _, err := svc.Add(context.Background(), "s1", "u1", in); !errors.Is(err, ErrInvalidTargetNumber) {
			t.Fatalf("input %+v: expected ErrInvalidTargetNumber, got %v", in, err)
		}
	}
}

func TestShot_Add_ComputesScoreFromPosition(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	// x=0.5 normalized is ~38.9 mm from center, the ring-5 band on the ISSF
	// 10 m air pistol face.
	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{
		TargetNumber: intPtr(1),
		X:            floatPtr(0.5),
		Y:            floatPtr(0),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sh.RingScore != 5 || sh.Score != 5 || sh.ScoreSource != domain.ScoreSourceComputed {
		t.Fatalf("expected computed ring 5, got %+v", sh)
	}
}

func TestShot_Add_DecimalModeSession(t *testing.T) {
	db := newTestDB(t)
	sess := seedSession(t, db, "s1", "u1")
	sess.ScoringMode = domain.ScoringModeDecimal
	if err := db.Save(sess).Error; err != nil {
		t.Fatalf("set mode: %v", err)
	}
	svc := NewShotService(db)

	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{
		TargetNumber: intPtr(1),
		X:            floatPtr(0),
		Y:            floatPtr(0),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sh.Score != 10.9 || !sh.IsInnerTen {
		t.Fatalf("expected centered 10.9 inner ten, got %+v", sh)
	}
}

func TestShot_Update_ManualScoreSurvivesPositionUpdates(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{
		TargetNumber: intPtr(1),
		X:            floatPtr(0),
		Y:            floatPtr(0),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	sh, err = svc.Update(context.Background(), "u1", sh.ID, ShotInput{Score: floatPtr(8.4)})
	if err != nil {
		t.Fatalf("manual update: %v", err)
	}
	if sh.Score != 8.4 || sh.ScoreSource != domain.ScoreSourceManual {
		t.Fatalf("expected manual 8.4, got %+v", sh)
	}

	// A later position-only update must not recompute over the manual score.
	sh, err = svc.Update(context.Background(), "u1", sh.ID, ShotInput{X: floatPtr(0.5)})
	if err != nil {
		t.Fatalf("position update: %v", err)
	}
	if sh.Score != 8.4 || sh.ScoreSource != domain.ScoreSourceManual {
		t.Fatalf("manual score overwritten: %+v", sh)
	}
	if sh.PositionX != 0.5 {
		t.Fatalf("position not applied: %+v", sh)
	}
}

func TestShot_Update_PositionRecomputesComputedScore(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{
		TargetNumber: intPtr(1),
		X:            floatPtr(0),
		Y:            floatPtr(0),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sh.RingScore != 10 {
		t.Fatalf("expected centered 10, got %+v", sh)
	}

	sh, err = svc.Update(context.Background(), "u1", sh.ID, ShotInput{X: floatPtr(0.5)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if sh.RingScore != 5 || sh.ScoreSource != domain.ScoreSourceComputed {
		t.Fatalf("expected recomputed ring 5, got %+v", sh)
	}
}

func TestShot_Update_ReassignCleansUpEmptyTarget(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	first, err := svc.Add(context.Background(), "s1", "u1", ShotInput{TargetNumber: intPtr(1), Score: floatPtr(9)})
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	if _, err := svc.Add(context.Background(), "s1", "u1", ShotInput{TargetNumber: intPtr(2), Score: floatPtr(8)}); err != nil {
		t.Fatalf("add second: %v", err)
	}

	// Move the only shot of target 1 onto target 2. Target 1 is now empty,
	// gets deleted, and target 2 renumbers to 1.
	moved, err := svc.Update(context.Background(), "u1", first.ID, ShotInput{TargetNumber: intPtr(2)})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got := targetNumbers(t, db, "s1", "u1"); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected single target renumbered to 1, got %v", got)
	}
	if moved.TargetNumber != 1 {
		t.Fatalf("expected moved shot to land on renumbered target 1, got %d", moved.TargetNumber)
	}

	var sess domain.Session
	if err := db.First(&sess, "id = ?", "s1").Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(sess.TargetOrder) != 1 {
		t.Fatalf("expected abandoned target removed from order, got %v", sess.TargetOrder)
	}
}

func TestShot_Delete_LastShotRemovesTarget(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	sh, err := svc.Add(context.Background(), "s1", "u1", ShotInput{TargetNumber: intPtr(1), Score: floatPtr(9)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Delete(context.Background(), "u1", sh.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := targetNumbers(t, db, "s1", "u1"); len(got) != 0 {
		t.Fatalf("expected target removed with its last shot, got %v", got)
	}
	var sess domain.Session
	if err := db.First(&sess, "id = ?", "s1").Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(sess.TargetOrder) != 0 {
		t.Fatalf("expected empty target order, got %v", sess.TargetOrder)
	}
}

func TestShot_Delete_LegacyTargetIDFallback(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	tg := seedTarget(t, db, "s1", "u1", "t1", 1)
	seedShot(t, db, tg, "sh1", 9, time.Now().UTC())
	seedShot(t, db, tg, "sh2", 8, time.Now().UTC().Add(time.Second))

	svc := NewShotService(db)
	// Older clients issue shot deletes carrying a target id; the whole
	// target and its shots go.
	if err := svc.Delete(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("legacy delete: %v", err)
	}

	var count int64
	if err := db.Model(&domain.Shot{}).Where("session_id = ?", "s1").Count(&count).Error; err != nil {
		t.Fatalf("count shots: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected all shots gone, got %d", count)
	}
	if got := targetNumbers(t, db, "s1", "u1"); len(got) != 0 {
		t.Fatalf("expected target gone, got %v", got)
	}
}

func TestShot_Delete_UnknownIDNotFound(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	svc := NewShotService(db)

	if err := svc.Delete(context.Background(), "u1", "missing"); !errors.Is(err, ErrShotNotFound) {
		t.Fatalf("expected ErrShotNotFound, got %v", err)
	}
}

func TestShot_ListBySession_GroupsAndOrders(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "u1")
	base := time.Now().UTC()
	t1 := seedTarget(t, db, "s1", "u1", "t1", 1)
	t2 := seedTarget(t, db, "s1", "u1", "t2", 2)
	seedShot(t, db, t1, "late", 7, base.Add(time.Minute))
	seedShot(t, db, t1, "early", 9, base)
	seedShot(t, db, t2, "only", 8, base)

	svc := NewShotService(db)
	out, err := svc.ListBySession(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(out))
	}
	if out[0].ID != "t1" || out[1].ID != "t2" {
		t.Fatalf("unexpected target order: %s, %s", out[0].ID, out[1].ID)
	}
	if len(out[0].Shots) != 2 || out[0].Shots[0].ID != "early" || out[0].Shots[1].ID != "late" {
		t.Fatalf("shots not ordered by timestamp: %+v", out[0].Shots)
	}
	if len(out[1].Shots) != 1 || out[1].Shots[0].ID != "only" {
		t.Fatalf("unexpected shots on t2: %+v", out[1].Shots)
	}
}

func TestShot_CrossOwnerAccessRejected(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "s1", "ownerA")
	tg := seedTarget(t, db, "s1", "ownerA", "t1", 1)
	seedShot(t, db, tg, "sh1", 9, time.Now().UTC())

	svc := NewShotService(db)
	if _, err := svc.Add(context.Background(), "s1", "uX", ShotInput{TargetNumber: intPtr(1), Score: floatPtr(9)}); !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("expected ErrNotSessionOwner on add, got %v", err)
	}
	// Foreign shots are invisible, not forbidden: lookups are owner-scoped.
	if _, err := svc.Update(context.Background(), "uX", "sh1", ShotInput{Score: floatPtr(1)}); !errors.Is(err, ErrShotNotFound) {
		t.Fatalf("expected ErrShotNotFound on update, got %v", err)
	}
	if err := svc.Delete(context.Background(), "uX", "sh1"); !errors.Is(err, ErrShotNotFound) {
		t.Fatalf("expected ErrShotNotFound on delete, got %v", err)
	}
}
