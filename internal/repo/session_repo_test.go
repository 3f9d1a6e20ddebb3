package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestUpdateSessionTargetOrder_RoundTripsThroughSerializer(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	s, err := CreateSession(ctx, db, "u1", "t", "classic")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Single-element orders must come back as a JSON array, not a bare id.
	one := []string{uuid.NewString()}
	if err := UpdateSessionTargetOrder(ctx, db, s.ID, one); err != nil {
		t.Fatalf("update order (one): %v", err)
	}
	got, err := GetSession(ctx, db, s.ID, "u1")
	if err != nil {
		t.Fatalf("reload after one-element order: %v", err)
	}
	if len(got.TargetOrder) != 1 || got.TargetOrder[0] != one[0] {
		t.Fatalf("one-element order round-trip: %#v", got.TargetOrder)
	}

	many := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	if err := UpdateSessionTargetOrder(ctx, db, s.ID, many); err != nil {
		t.Fatalf("update order (many): %v", err)
	}
	got, err = GetSession(ctx, db, s.ID, "u1")
	if err != nil {
		t.Fatalf("reload after three-element order: %v", err)
	}
	if len(got.TargetOrder) != 3 || got.TargetOrder[0] != many[0] || got.TargetOrder[2] != many[2] {
		t.Fatalf("three-element order round-trip: %#v", got.TargetOrder)
	}

	// Emptying the order is also a valid write.
	if err := UpdateSessionTargetOrder(ctx, db, s.ID, []string{}); err != nil {
		t.Fatalf("update order (empty): %v", err)
	}
	got, err = GetSession(ctx, db, s.ID, "u1")
	if err != nil {
		t.Fatalf("reload after empty order: %v", err)
	}
	if len(got.TargetOrder) != 0 {
		t.Fatalf("empty order round-trip: %#v", got.TargetOrder)
	}
}

func TestGetSession_WrongOwnerIsNotFound(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	s, err := CreateSession(ctx, db, "u1", "t", "decimal")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := GetSession(ctx, db, s.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if _, err := GetSessionAny(ctx, db, s.ID); err != nil {
		t.Fatalf("GetSessionAny should ignore ownership: %v", err)
	}
}
