// Package services defines the business logic for sessions, targets, and
// shots. This file centralizes common service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotSessionOwner is returned when a session exists but belongs to a
	// different user than the requester.
	ErrNotSessionOwner = errors.New("session belongs to another user")

	// ErrTargetNotFound indicates that the requested target does not exist
	// or is not accessible to the current user.
	ErrTargetNotFound = errors.New("target not found")

	// ErrShotNotFound indicates that the requested shot does not exist or is
	// not accessible to the current user.
	ErrShotNotFound = errors.New("shot not found")

	// ErrInvalidTargetNumber is returned when a shot or target request does
	// not carry a resolvable target number (explicit number < 1, or a
	// negative target index).
	ErrInvalidTargetNumber = errors.New("target number must be a positive integer")

	// ErrDuplicateTargetNumber is returned when an explicit create or update
	// asks for a number already held by a different target in the same
	// session.
	ErrDuplicateTargetNumber = errors.New("target number already in use")

	// ErrInvalidScore is returned when a manual score lies outside [0, 10.9].
	ErrInvalidScore = errors.New("score must be between 0 and 10.9")

	// ErrInvalidScoringMode is returned when a session is created with a
	// scoring mode other than "classic" or "decimal".
	ErrInvalidScoringMode = errors.New("scoring mode must be classic or decimal")

	// ErrInvalidTargetOrder is returned when a reorder request does not
	// describe exactly the session's current target set (duplicate, unknown,
	// or missing entries).
	ErrInvalidTargetOrder = errors.New("target order must list every target exactly once")
)
