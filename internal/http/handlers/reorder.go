// Reorder request parsing.
//
// The reorder endpoint historically accepts heterogeneous list entries: a
// bare target id string, an object carrying an "id", or an object carrying a
// 0-based "target_index" that resolves by position against the current
// number-ordered target list. A single parsing step canonicalizes the payload
// into a plain list of target ids before any business logic runs.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tbourn/go-range-backend/internal/domain"
)

// reorderEntry is one element of a reorder payload: exactly one of ID or
// Index is populated after unmarshalling.
type reorderEntry struct {
	ID    string
	Index *int
}

// UnmarshalJSON accepts "abc", {"id":"abc"}, or {"target_index":0}.
func (e *reorderEntry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			return errors.New("reorder entry id must not be empty")
		}
		e.ID = s
		return nil
	}

	var obj struct {
		ID          string `json:"id"`
		TargetIndex *int   `json:"target_index"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.New("reorder entry must be a string or object")
	}
	switch {
	case obj.ID != "":
		e.ID = obj.ID
	case obj.TargetIndex != nil:
		e.Index = obj.TargetIndex
	default:
		return errors.New(`reorder entry must carry "id" or "target_index"`)
	}
	return nil
}

// ReorderTargetsRequest is the JSON payload for the target reorder endpoint.
type ReorderTargetsRequest struct {
	// Order lists the session's targets in the desired display order. Each
	// entry is a target id string, {"id": "..."} or {"target_index": N}.
	Order []reorderEntry `json:"order"`
}

// resolveOrder canonicalizes parsed reorder entries into target ids.
// Positional entries resolve against targets in their current number order.
// Set validation (duplicates, unknown or missing ids) stays with the service.
func resolveOrder(entries []reorderEntry, targets []domain.Target) ([]string, error) {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ID != "" {
			out = append(out, e.ID)
			continue
		}
		if e.Index == nil || *e.Index < 0 || *e.Index >= len(targets) {
			idx := -1
			if e.Index != nil {
				idx = *e.Index
			}
			return nil, fmt.Errorf("target_index %d out of range", idx)
		}
		out = append(out, targets[*e.Index].ID)
	}
	return out, nil
}
