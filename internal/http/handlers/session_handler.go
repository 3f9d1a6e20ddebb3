// Session HTTP handlers.
//
// This file exposes REST endpoints for session resources:
//   - POST   /sessions                  (create)
//   - GET    /sessions                  (list, paginated)
//   - GET    /sessions/{id}             (fetch with aggregate stats)
//   - DELETE /sessions/{id}             (cascade delete)
//   - POST   /sessions/{id}/recalculate (recompute aggregates)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. This file also hosts
// the Handlers wiring and the identity/pagination helpers shared by the
// target, shot, and scan handlers.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-range-backend/internal/detect"
	"github.com/tbourn/go-range-backend/internal/domain"
	"github.com/tbourn/go-range-backend/internal/services"
	"github.com/tbourn/go-range-backend/internal/sysutil"
	"github.com/tbourn/go-range-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SessionService defines the session lifecycle operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type SessionService interface {
	// Create starts a new session with an optional title and scoring mode.
	Create(ctx context.Context, userID, title, scoringMode string) (*domain.Session, error)
	// ListPage returns a page of the user's sessions and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Session, int64, error)
	// Get fetches a session owned by userID.
	Get(ctx context.Context, sessionID, userID string) (*domain.Session, error)
	// Delete removes a session and everything it owns.
	Delete(ctx context.Context, sessionID, userID string) error
	// Recalculate recomputes the session aggregates from the shot set.
	Recalculate(ctx context.Context, sessionID, userID string) (*domain.Session, error)
}

// TargetService defines the target store operations consumed by HTTP
// handlers, including the resequencing-aware create/update/reorder paths.
type TargetService interface {
	// List returns the session's targets in number order, self-healing first.
	List(ctx context.Context, sessionID, userID string) ([]domain.Target, error)
	// Ensure finds or creates the target holding number.
	Ensure(ctx context.Context, sessionID, userID string, number int) (*domain.Target, error)
	// Create explicitly creates a target; nil number auto-assigns.
	Create(ctx context.Context, sessionID, userID string, number *int) (*domain.Target, error)
	// Update moves a target to a new number.
	Update(ctx context.Context, userID, targetID string, newNumber int) (*domain.Target, error)
	// Delete removes a target and its shots.
	Delete(ctx context.Context, userID, targetID string) error
	// Reorder renumbers targets in the given identity order.
	Reorder(ctx context.Context, sessionID, userID string, orderedIDs []string) ([]domain.Target, error)
	// SetImagePaths stores scan/debug image locations on a target.
	SetImagePaths(ctx context.Context, userID, targetID, scanPath, debugPath string) error
}

// ShotService defines the shot lifecycle operations consumed by HTTP
// handlers.
type ShotService interface {
	// Add records a shot in a session.
	Add(ctx context.Context, sessionID, userID string, in services.ShotInput) (*domain.Shot, error)
	// Update mutates a shot.
	Update(ctx context.Context, userID, shotID string, in services.ShotInput) (*domain.Shot, error)
	// Delete removes a shot (or, legacy, a whole target).
	Delete(ctx context.Context, userID, shotID string) error
	// ListBySession returns targets with their shots.
	ListBySession(ctx context.Context, sessionID, userID string) ([]services.TargetWithShots, error)
}

// ShotDetector runs the external image detector.
type ShotDetector interface {
	// Detect returns raw observations for an image.
	Detect(ctx context.Context, imagePath string) ([]detect.Observation, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for sessions, targets, shots, and scans.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	sessionSvc SessionService
	targetSvc  TargetService
	shotSvc    ShotService
	detector   ShotDetector
	uploadDir  string
}

// New constructs a Handlers instance bound to the given services. uploadDir
// is the root directory scan uploads are stored under.
func New(sessionSvc SessionService, targetSvc TargetService, shotSvc ShotService, detector ShotDetector, uploadDir string) *Handlers {
	return &Handlers{
		sessionSvc: sessionSvc,
		targetSvc:  targetSvc,
		shotSvc:    shotSvc,
		detector:   detector,
		uploadDir:  uploadDir,
	}
}

// userID extracts the authenticated user id from the Gin context (set by the
// auth middleware). If absent, it falls back to the "X-User-ID" header (tests
// and dev use it), and finally to "demo-user".
func userID(c *gin.Context) string {
	var fromAuth, fromHeader string
	if v, ok := c.Get("userID"); ok {
		fromAuth, _ = v.(string)
	}
	if c != nil && c.Request != nil {
		fromHeader = strings.TrimSpace(c.GetHeader("X-User-ID"))
	}
	return sysutil.FirstNonEmpty(fromAuth, fromHeader, "demo-user")
}

//
// DTOs
//

// CreateSessionRequest is the JSON payload for creating a session.
type CreateSessionRequest struct {
	// Title optionally names the session; a mode-derived default is used
	// when empty.
	Title string `json:"title" example:"Tuesday 10m drills"`
	// ScoringMode selects "classic" or "decimal"; defaults to classic.
	ScoringMode string `json:"scoring_mode" example:"decimal"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSessionsResponse wraps a page of sessions and pagination information.
type ListSessionsResponse struct {
	Sessions   []domain.Session `json:"sessions"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// sessionIDParam validates the :id path parameter as a UUID.
func sessionIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// CreateSession godoc
// @ID          createSession
// @Summary     Create a new practice session
// @Description Creates a session for the current user and returns the session resource.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateSessionRequest  true  "Create session payload"
//
// @Success     201  {object}  domain.Session
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sess, err := h.sessionSvc.Create(c.Request.Context(), userID(c), strings.TrimSpace(req.Title), strings.TrimSpace(req.ScoringMode))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, sess)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List sessions (paginated)
// @Description Returns a page of the user's sessions, newest first.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSessionsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.sessionSvc.ListPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListSessionsResponse{
		Sessions: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetSession godoc
// @ID          getSession
// @Summary     Fetch a session
// @Description Returns a session with its aggregate statistics.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {object} domain.Session
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	id, okID := sessionIDParam(c)
	if !okID {
		return
	}
	sess, err := h.sessionSvc.Get(c.Request.Context(), id, userID(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// DeleteSession godoc
// @ID          deleteSession
// @Summary     Delete a session
// @Description Deletes a session and cascades to its targets and shots.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {object} handlers.MessageResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id} [delete]
func (h *Handlers) DeleteSession(c *gin.Context) {
	id, okID := sessionIDParam(c)
	if !okID {
		return
	}
	if err := h.sessionSvc.Delete(c.Request.Context(), id, userID(c)); err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "session deleted"})
}

// RecalculateSession godoc
// @ID          recalculateSession
// @Summary     Recompute session statistics
// @Description Recomputes total/average/max/min from the session's current shots.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {object} domain.Session
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/recalculate [post]
func (h *Handlers) RecalculateSession(c *gin.Context) {
	id, okID := sessionIDParam(c)
	if !okID {
		return
	}
	sess, err := h.sessionSvc.Recalculate(c.Request.Context(), id, userID(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}
