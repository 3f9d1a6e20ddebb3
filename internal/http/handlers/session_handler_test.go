package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-range-backend/internal/domain"
	"github.com/tbourn/go-range-backend/internal/services"
)

// ---------- shared test fixtures ----------

func newRangeDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:range_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Session{}, &domain.Target{}, &domain.Shot{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// realHandlers wires handlers to real services over an in-memory DB, the same
// way the router does. The detector defaults to nil (scan tests inject one).
func realHandlers(t *testing.T, db *gorm.DB) *Handlers {
	t.Helper()
	return New(
		services.NewSessionService(db),
		&services.TargetService{DB: db},
		services.NewShotService(db),
		nil,
		t.TempDir(),
	)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r *gin.Engine, user, body string) domain.Session {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/sessions", user, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session -> %d body=%s", w.Code, w.Body.String())
	}
	var s domain.Session
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return s
}

// ---------- helpers-only tests ----------

func Test_userID_and_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// userID helper
	rc := gin.CreateTestContextOnly(httptest.NewRecorder(), gin.New())
	if got := userID(rc); got != "demo-user" {
		t.Fatalf("fallback userID = %q", got)
	}
	rc.Set("userID", "u1")
	if got := userID(rc); got != "u1" {
		t.Fatalf("ctx userID = %q", got)
	}
	rc.Set("userID", 123) // wrong type → fallback
	if got := userID(rc); got != "demo-user" {
		t.Fatalf("wrong-type fallback userID = %q", got)
	}

	// header fallback
	cH, _ := gin.CreateTestContext(httptest.NewRecorder())
	reqH := httptest.NewRequest("GET", "/", nil)
	reqH.Header.Set("X-User-ID", "u-123")
	cH.Request = reqH
	if got := userID(cH); got != "u-123" {
		t.Fatalf("header fallback userID = %q", got)
	}
	cH.Set("userID", "u-auth") // authenticated identity wins over the header
	if got := userID(cH); got != "u-auth" {
		t.Fatalf("auth precedence userID = %q", got)
	}

	// clampPagination bounds
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}

// ---------- CreateSession ----------

func TestCreateSession_BadJSON_Defaults_InvalidMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := realHandlers(t, newRangeDB(t))
	r := gin.New()
	r.POST("/sessions", h.CreateSession)

	// Bad JSON -> 400
	w := doJSON(t, r, http.MethodPost, "/sessions", "u1", "{bad")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Empty body defaults to classic with a derived title
	s := createSession(t, r, "u1", `{}`)
	if s.ScoringMode != domain.ScoringModeClassic {
		t.Fatalf("default mode = %q", s.ScoringMode)
	}
	if s.Title != "Classic Practice" {
		t.Fatalf("default title = %q", s.Title)
	}

	// Invalid scoring mode -> 400
	w = doJSON(t, r, http.MethodPost, "/sessions", "u1", `{"scoring_mode":"hexadecimal"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid mode -> %d body=%s", w.Code, w.Body.String())
	}
}

// ---------- ListSessions ----------

func TestListSessions_Pagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := realHandlers(t, newRangeDB(t))
	r := gin.New()
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)

	for i := 0; i < 5; i++ {
		createSession(t, r, "u1", fmt.Sprintf(`{"title":"S%d"}`, i))
	}
	createSession(t, r, "someone-else", `{}`)

	w := doJSON(t, r, http.MethodGet, "/sessions?page=1&page_size=2", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	var out ListSessionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Sessions) != 2 {
		t.Fatalf("expected 2 sessions on page, got %d", len(out.Sessions))
	}
	if out.Pagination.Total != 5 || out.Pagination.TotalPages != 3 || !out.Pagination.HasNext {
		t.Fatalf("pagination mismatch: %#v", out.Pagination)
	}
}

// ---------- GetSession ----------

func TestGetSession_UUID_NotFound_Foreign(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := realHandlers(t, newRangeDB(t))
	r := gin.New()
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions/:id", h.GetSession)

	// bad UUID -> 400
	w := doJSON(t, r, http.MethodGet, "/sessions/not-a-uuid", "u1", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid -> %d", w.Code)
	}

	// unknown id -> 404
	w = doJSON(t, r, http.MethodGet, "/sessions/"+uuid.NewString(), "u1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing -> %d", w.Code)
	}

	// foreign session -> 403
	s := createSession(t, r, "owner", `{}`)
	w = doJSON(t, r, http.MethodGet, "/sessions/"+s.ID, "intruder", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign -> %d body=%s", w.Code, w.Body.String())
	}

	// owner -> 200
	w = doJSON(t, r, http.MethodGet, "/sessions/"+s.ID, "owner", "")
	if w.Code != http.StatusOK {
		t.Fatalf("owner get -> %d", w.Code)
	}
}

// ---------- DeleteSession / RecalculateSession ----------

func TestDeleteSession_ThenGone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := realHandlers(t, newRangeDB(t))
	r := gin.New()
	r.POST("/sessions", h.CreateSession)
	r.DELETE("/sessions/:id", h.DeleteSession)

	s := createSession(t, r, "u1", `{}`)
	w := doJSON(t, r, http.MethodDelete, "/sessions/"+s.ID, "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete -> %d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodDelete, "/sessions/"+s.ID, "u1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete -> %d", w.Code)
	}
}

func TestRecalculateSession_RefreshesStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newRangeDB(t)
	h := realHandlers(t, db)
	r := gin.New()
	r.POST("/sessions", h.CreateSession)
	r.POST("/sessions/:id/shots", h.AddShot)
	r.POST("/sessions/:id/recalculate", h.RecalculateSession)

	s := createSession(t, r, "u1", `{}`)
	w := doJSON(t, r, http.MethodPost, "/sessions/"+s.ID+"/shots", "u1", `{"target_number":1,"score":8}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add shot -> %d body=%s", w.Code, w.Body.String())
	}

	// Drift the stored aggregates behind the services' back.
	if err := db.Model(&domain.Session{}).Where("id = ?", s.ID).Update("total_shots", 99).Error; err != nil {
		t.Fatalf("drift stats: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/sessions/"+s.ID+"/recalculate", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("recalculate -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.Session
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.TotalShots != 1 || out.AverageScore != 8 {
		t.Fatalf("recalculated stats wrong: total=%d avg=%v", out.TotalShots, out.AverageScore)
	}
}
