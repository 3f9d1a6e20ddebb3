// Package services – SessionService
//
// This file implements the SessionService, which manages the lifecycle of
// practice sessions. It validates scoring modes, normalizes titles, enforces
// ownership rules, and coordinates repository operations for creating,
// listing (with pagination), deleting, and recomputing session aggregates.
//
// Service-level errors (e.g., ErrSessionNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-range-backend/internal/domain"
	"github.com/tbourn/go-range-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SessionService provides session-level operations such as creating,
// listing, deleting, and recomputing aggregate statistics. It enforces
// title rules and ownership constraints.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale drives casing of default titles derived from the
	// scoring mode.
	TitleLocale language.Tag
}

// NewSessionService constructs a SessionService with sane defaults for
// title handling.
func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{
		DB:          db,
		TitleMaxLen: 60,
		TitleLocale: language.English,
	}
}

// Create inserts a new session owned by userID. An empty scoring mode
// defaults to classic; anything other than classic/decimal is rejected.
// Titles are normalized, trimmed, clipped, and a mode-derived fallback is
// applied ("Classic Practice" / "Decimal Practice").
func (s *SessionService) Create(ctx context.Context, userID, title, scoringMode string) (*domain.Session, error) {
	ctx, span := sessionTracer(ctx, "Create", "", userID)
	defer span.End()

	switch scoringMode {
	case "":
		scoringMode = domain.ScoringModeClassic
	case domain.ScoringModeClassic, domain.ScoringModeDecimal:
	default:
		return nil, ErrInvalidScoringMode
	}

	title = normalizeTitle(title)
	if title == "" {
		title = cases.Title(s.TitleLocale).String(scoringMode + " practice")
	}
	return repo.CreateSession(ctx, s.DB, userID, s.clip(title), scoringMode)
}

// ListPage returns a page of sessions for a user, newest first. It applies
// defaults for invalid page/pageSize and returns the total count.
func (s *SessionService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Session, int64, error) {
	ctx, span := sessionTracer(ctx, "ListPage", "", userID)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountSessions(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Session{}, 0, nil
	}

	items, err := repo.ListSessionsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Get fetches a session, distinguishing absence (ErrSessionNotFound) from
// foreign ownership (ErrNotSessionOwner).
func (s *SessionService) Get(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	ctx, span := sessionTracer(ctx, "Get", sessionID, userID)
	defer span.End()

	return ownedSessionTx(ctx, s.DB, sessionID, userID)
}

// Delete removes a session and cascades to everything it owns: shots first,
// then targets, then the session row itself, all in one transaction.
func (s *SessionService) Delete(ctx context.Context, sessionID, userID string) error {
	ctx, span := sessionTracer(ctx, "Delete", sessionID, userID)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedSessionTx(ctx, tx, sessionID, userID); err != nil {
			return err
		}
		if err := repo.DeleteShotsBySession(ctx, tx, sessionID); err != nil {
			return err
		}
		if err := repo.DeleteTargetsBySession(ctx, tx, sessionID); err != nil {
			return err
		}
		if err := repo.DeleteSession(ctx, tx, sessionID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		return nil
	})
}

// Recalculate recomputes the session's aggregate statistics from its current
// shot set and returns the refreshed session. Useful for healing sessions
// whose stored aggregates drifted (e.g. imported data).
func (s *SessionService) Recalculate(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	ctx, span := sessionTracer(ctx, "Recalculate", sessionID, userID)
	defer span.End()

	var out *domain.Session
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedSessionTx(ctx, tx, sessionID, userID); err != nil {
			return err
		}
		if err := recalcSessionStatsTx(ctx, tx, sessionID); err != nil {
			return err
		}
		fresh, err := repo.GetSession(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}
		out = fresh
		return nil
	})
	return out, err
}

// recalcSessionStatsTx replaces the session's stored aggregates with values
// recomputed from the full current shot set. Aggregates are never adjusted
// incrementally; a full recompute is the only way they change.
func recalcSessionStatsTx(ctx context.Context, tx *gorm.DB, sessionID string) error {
	total, avg, max, min, err := repo.SessionShotStats(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	return repo.UpdateSessionStats(ctx, tx, sessionID, int(total), avg, max, min)
}

// clip truncates a session title to the configured maximum rune length.
func (s *SessionService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// sessionTracer starts a span for a SessionService method.
func sessionTracer(ctx context.Context, op, sessionID, userID string) (context.Context, trace.Span) {
	tr := otel.Tracer("services/SessionService")
	return tr.Start(ctx, op,
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
		),
	)
}
