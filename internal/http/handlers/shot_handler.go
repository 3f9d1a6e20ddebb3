// Shot HTTP handlers.
//
// This file exposes REST endpoints for shot resources:
//   - POST   /sessions/{id}/shots  (add)
//   - GET    /sessions/{id}/shots  (targets with shots)
//   - PUT    /shots/{id}           (update score/position/target)
//   - DELETE /shots/{id}           (delete; legacy target-id fallback)
//
// Score bounds are validated here at the boundary; the services clamp and
// derive the stored score fields.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-range-backend/internal/http/middleware"
	"github.com/tbourn/go-range-backend/internal/services"
)

//
// DTOs
//

// ShotRequest is the JSON payload for adding or updating a shot. All fields
// are optional on update; add requires a resolvable target (target_number or
// target_index).
type ShotRequest struct {
	// TargetNumber addresses the owning target explicitly (>= 1).
	TargetNumber *int `json:"target_number" example:"1"`
	// TargetIndex addresses the owning target by 0-based index.
	TargetIndex *int `json:"target_index" example:"0"`
	// X, Y are impact coordinates (normalized or millimetres).
	X *float64 `json:"x" example:"0.12"`
	Y *float64 `json:"y" example:"-0.03"`
	// Score records a manual score in [0, 10.9] instead of computing one.
	Score *float64 `json:"score" example:"9.5"`
	// Timestamp is the impact time (defaults to now on add).
	Timestamp *time.Time `json:"timestamp"`
	// Client-side sequencing metadata, stored verbatim.
	TargetShotIndex  *int `json:"target_shot_index"`
	TargetShotNumber *int `json:"target_shot_number"`
}

// input converts the request into the service-layer shape.
func (r ShotRequest) input() services.ShotInput {
	return services.ShotInput{
		TargetNumber:     r.TargetNumber,
		TargetIndex:      r.TargetIndex,
		X:                r.X,
		Y:                r.Y,
		Score:            r.Score,
		Timestamp:        r.Timestamp,
		TargetShotIndex:  r.TargetShotIndex,
		TargetShotNumber: r.TargetShotNumber,
	}
}

// validScore rejects manual scores outside [0, 10.9] at the boundary.
func validScore(s *float64) bool {
	return s == nil || (*s >= 0 && *s <= 10.9)
}

// shotIDParam validates the :id path parameter as a UUID.
func shotIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shot id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// AddShot godoc
// @ID          addShot
// @Summary     Record a shot
// @Description Records a shot in a session. The owning target is addressed by number or 0-based index and is created on first use. Without a manual score the score is computed from the position.
// @Tags        Shots
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.ShotRequest  true  "Shot payload"
//
// @Success     201  {object} domain.Shot
// @Failure     400  {object} handlers.ErrorResponse "Missing/invalid target number or score"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/shots [post]
func (h *Handlers) AddShot(c *gin.Context) {
	sessionID, okID := sessionIDParam(c)
	if !okID {
		return
	}
	var req ShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if !validScore(req.Score) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "score must be between 0 and 10.9")
		return
	}

	shot, err := h.shotSvc.Add(c.Request.Context(), sessionID, userID(c), req.input())
	if err != nil {
		failServiceError(c, err)
		return
	}
	middleware.ShotsRecorded("manual", 1)
	ok(c, http.StatusCreated, shot)
}

// ListShots godoc
// @ID          listShots
// @Summary     List a session's shots grouped by target
// @Description Returns targets ordered by number, each populated with its shots ordered by impact time.
// @Tags        Shots
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {array}  services.TargetWithShots
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/shots [get]
func (h *Handlers) ListShots(c *gin.Context) {
	sessionID, okID := sessionIDParam(c)
	if !okID {
		return
	}
	groups, err := h.shotSvc.ListBySession(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, groups)
}

// UpdateShot godoc
// @ID          updateShot
// @Summary     Update a shot
// @Description Updates a shot's position, score, metadata, or owning target. Manual score updates stick; position-only updates recompute unless the score is manual.
// @Tags        Shots
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Shot ID (UUID)"         format(uuid)
// @Param       body       body    handlers.ShotRequest  true  "Fields to update"
//
// @Success     200  {object} domain.Shot
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Shot not found"
// @Router      /shots/{id} [put]
func (h *Handlers) UpdateShot(c *gin.Context) {
	shotID, okID := shotIDParam(c)
	if !okID {
		return
	}
	var req ShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if !validScore(req.Score) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "score must be between 0 and 10.9")
		return
	}

	shot, err := h.shotSvc.Update(c.Request.Context(), userID(c), shotID, req.input())
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, shot)
}

// DeleteShot godoc
// @ID          deleteShot
// @Summary     Delete a shot
// @Description Deletes a shot, removes its target when the shot was the last one, and refreshes session statistics. When the id addresses a target, the whole target is deleted (legacy clients).
// @Tags        Shots
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Shot ID (UUID)"         format(uuid)
//
// @Success     200  {object} handlers.MessageResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Shot not found"
// @Router      /shots/{id} [delete]
func (h *Handlers) DeleteShot(c *gin.Context) {
	shotID, okID := shotIDParam(c)
	if !okID {
		return
	}
	if err := h.shotSvc.Delete(c.Request.Context(), userID(c), shotID); err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "shot deleted"})
}
