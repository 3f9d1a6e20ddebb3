// Target scan handler.
//
// POST /sessions/{id}/targets/{number}/scan accepts a multipart image of a
// paper target, stores it under the upload directory, runs the external shot
// detector, and records the returned observations as shots on the addressed
// target. A failed detection surfaces as 502 detection_failed and records
// nothing; shot data is never fabricated.
package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-range-backend/internal/detect"
	"github.com/tbourn/go-range-backend/internal/domain"
	"github.com/tbourn/go-range-backend/internal/http/middleware"
	"github.com/tbourn/go-range-backend/internal/scoring"
	"github.com/tbourn/go-range-backend/internal/services"
	"github.com/tbourn/go-range-backend/internal/utils"
)

// ScanResponse is the result of a processed target scan.
type ScanResponse struct {
	Target *domain.Target `json:"target"`
	Shots  []domain.Shot  `json:"shots"`
}

// allowed upload extensions; anything else is rejected before disk I/O.
var scanImageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}, ".webp": {},
}

// ScanTarget godoc
// @ID          scanTarget
// @Summary     Scan a target image
// @Description Uploads a target photo, runs shot detection, and records the detected shots on the addressed target (created on first use). The scan and debug image paths are stored on the target.
// @Tags        Targets
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       number     path    int     true  "Target number (>= 1)"
// @Param       image      formData file   true  "Target photo"
//
// @Success     201  {object} handlers.ScanResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the session owner"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     502  {object} handlers.ErrorResponse "Detection failed"
// @Router      /sessions/{id}/targets/{number}/scan [post]
func (h *Handlers) ScanTarget(c *gin.Context) {
	sessionID, okID := sessionIDParam(c)
	if !okID {
		return
	}
	number := utils.AtoiDefault(c.Param("number"), 0)
	if number < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target number must be a positive integer")
		return
	}
	uid := userID(c)

	// Ownership check before any disk or subprocess work.
	if _, err := h.sessionSvc.Get(c.Request.Context(), sessionID, uid); err != nil {
		failServiceError(c, err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `multipart "image" file required`)
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, allowed := scanImageExts[ext]; !allowed {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unsupported image type")
		return
	}

	scanDir := filepath.Join(h.uploadDir, "targets")
	if err := os.MkdirAll(scanDir, 0o755); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cannot prepare upload directory")
		return
	}
	scanPath := filepath.Join(scanDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, scanPath); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cannot store upload")
		return
	}

	if h.detector == nil {
		fail(c, http.StatusBadGateway, ErrCodeDetectionFailed, "shot detector not configured")
		return
	}
	observations, err := h.detector.Detect(c.Request.Context(), scanPath)
	if err != nil {
		if errors.Is(err, detect.ErrDetectionFailed) {
			fail(c, http.StatusBadGateway, ErrCodeDetectionFailed, "shot detection failed")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	target, err := h.targetSvc.Ensure(c.Request.Context(), sessionID, uid, number)
	if err != nil {
		failServiceError(c, err)
		return
	}

	cfg := scoring.ISSFAirPistol10m()
	shots := make([]domain.Shot, 0, len(observations))
	for _, obs := range observations {
		shot, err := h.shotSvc.Add(c.Request.Context(), sessionID, uid, scanShotInput(obs, target.TargetNumber, cfg))
		if err != nil {
			failServiceError(c, err)
			return
		}
		shots = append(shots, *shot)
	}
	middleware.ShotsRecorded("scan", len(shots))

	debugPath := detect.DebugImagePath(scanPath)
	if _, err := os.Stat(debugPath); err != nil {
		debugPath = ""
	}
	if err := h.targetSvc.SetImagePaths(c.Request.Context(), uid, target.ID, scanPath, debugPath); err != nil {
		failServiceError(c, err)
		return
	}
	target.ScanImagePath = scanPath
	if debugPath != "" {
		target.DebugImagePath = debugPath
	}

	ok(c, http.StatusCreated, ScanResponse{Target: target, Shots: shots})
}

// scanShotInput maps a detector observation onto a shot input. The detector's
// score is recorded as authoritative; an observation without a position gets
// a synthesized spot inside its scoring ring so it has somewhere to render.
func scanShotInput(obs detect.Observation, targetNumber int, cfg scoring.TargetConfig) services.ShotInput {
	n := targetNumber
	score := obs.Score
	x, y := obs.X, obs.Y
	if x == 0 && y == 0 && score > 0 {
		x, y = scoring.RandomPositionInRing(scoring.ManualScore(score).RingScore, cfg)
	}
	return services.ShotInput{
		TargetNumber: &n,
		X:            &x,
		Y:            &y,
		Score:        &score,
	}
}
