// Target HTTP handlers.
//
// This file exposes REST endpoints for target resources:
//   - POST   /sessions/{id}/targets        (create, auto- or explicit number)
//   - GET    /sessions/{id}/targets        (list in number order, self-healing)
//   - PUT    /targets/{id}                 (move to a new number)
//   - DELETE /targets/{id}                 (cascade-delete shots, renumber)
//   - PATCH  /sessions/{id}/targets/order  (full reorder)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

//
// DTOs
//

// CreateTargetRequest is the JSON payload for creating a target.
type CreateTargetRequest struct {
	// TargetNumber optionally requests a specific number (>= 1). Omitted,
	// the next free number is assigned.
	TargetNumber *int `json:"target_number" example:"2"`
}

// UpdateTargetRequest is the JSON payload for moving a target.
type UpdateTargetRequest struct {
	// TargetNumber is the desired number (>= 1).
	TargetNumber int `json:"target_number" binding:"required" example:"3"`
}

// targetIDParam validates the :id path parameter as a UUID.
func targetIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// CreateTarget godoc
// @ID          createTarget
// @Summary     Create a target
// @Description Creates a target in a session. Without a number the next free one is assigned; an explicit number already in use is a conflict.
// @Tags        Targets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.CreateTargetRequest  true  "Create target payload"
//
// @Success     201  {object} domain.Target
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Number already in use"
// @Router      /sessions/{id}/targets [post]
func (h *Handlers) CreateTarget(c *gin.Context) {
	sessionID, okID := sessionIDParam(c)
	if !okID {
		return
	}
	var req CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	t, err := h.targetSvc.Create(c.Request.Context(), sessionID, userID(c), req.TargetNumber)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, t)
}

// ListTargets godoc
// @ID          listTargets
// @Summary     List a session's targets
// @Description Returns the session's targets ordered by number. Numbering is resequenced to a contiguous 1..N run before the read.
// @Tags        Targets
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {array}  domain.Target
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/targets [get]
func (h *Handlers) ListTargets(c *gin.Context) {
	sessionID, okID := sessionIDParam(c)
	if !okID {
		return
	}
	targets, err := h.targetSvc.List(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, targets)
}

// UpdateTarget godoc
// @ID          updateTarget
// @Summary     Move a target to a new number
// @Description Renumbers a target. The number must not be held by another target; the target's shots follow, and the gap left behind closes.
// @Tags        Targets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Target ID (UUID)"       format(uuid)
// @Param       body       body    handlers.UpdateTargetRequest  true  "New number"
//
// @Success     200  {object} domain.Target
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Target not found"
// @Failure     409  {object} handlers.ErrorResponse "Number already in use"
// @Router      /targets/{id} [put]
func (h *Handlers) UpdateTarget(c *gin.Context) {
	targetID, okID := targetIDParam(c)
	if !okID {
		return
	}
	var req UpdateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target_number required")
		return
	}

	t, err := h.targetSvc.Update(c.Request.Context(), userID(c), targetID, req.TargetNumber)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteTarget godoc
// @ID          deleteTarget
// @Summary     Delete a target
// @Description Deletes a target and its shots, refreshes session statistics, and renumbers the remaining targets.
// @Tags        Targets
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Target ID (UUID)"       format(uuid)
//
// @Success     200  {object} handlers.MessageResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Target not found"
// @Router      /targets/{id} [delete]
func (h *Handlers) DeleteTarget(c *gin.Context) {
	targetID, okID := targetIDParam(c)
	if !okID {
		return
	}
	if err := h.targetSvc.Delete(c.Request.Context(), userID(c), targetID); err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "target deleted"})
}

// ReorderTargets godoc
// @ID          reorderTargets
// @Summary     Reorder a session's targets
// @Description Assigns numbers 1..N to the targets in the given order. The list must name every current target exactly once; entries are ids, {"id"} objects, or {"target_index"} positions.
// @Tags        Targets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.ReorderTargetsRequest  true  "Desired order"
//
// @Success     200  {array}  domain.Target
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/targets/order [patch]
func (h *Handlers) ReorderTargets(c *gin.Context) {
	sessionID, okID := sessionIDParam(c)
	if !okID {
		return
	}
	var req ReorderTargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid reorder payload")
		return
	}
	if len(req.Order) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order must not be empty")
		return
	}

	uid := userID(c)
	current, err := h.targetSvc.List(c.Request.Context(), sessionID, uid)
	if err != nil {
		failServiceError(c, err)
		return
	}
	orderedIDs, err := resolveOrder(req.Order, current)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	targets, err := h.targetSvc.Reorder(c.Request.Context(), sessionID, uid, orderedIDs)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, targets)
}
