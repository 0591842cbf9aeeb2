package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"score_tracker/internal/database"
	"score_tracker/internal/handlers"
	"score_tracker/internal/migrations"
	"score_tracker/internal/repository"
	"score_tracker/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "tracker.db")
	db, err := database.Initialize("sqlite://"+path, database.Options{LogLevel: "silent"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations.Run: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repository.NewStore(db)
	userService := services.NewUserService(store.Users, "test-secret", time.Hour)
	stats := services.NewStatsService(store, services.NoopStatsCache{}, time.UTC)
	scores := services.NewDailyScoreService(store, time.UTC)
	events := services.NewEventService(store, scores, stats, time.UTC)
	eventTypes := services.NewEventTypeService(store, stats)

	return handlers.NewRouter(
		userService,
		handlers.NewAuthHandler(userService),
		handlers.NewAPIHandler(events, scores, stats, eventTypes, time.UTC),
		handlers.NewPlanHandler(services.NewPlanService(store)),
		5*time.Second,
	)
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func login(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "secret123"}
	if w, _ := do(t, router, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}
	w, body := do(t, router, http.MethodPost, "/api/auth/login", "", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %s", w.Body.String())
	}
	return token
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w, body := do(t, router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /health = %d %v", w.Code, body)
	}
}

func TestAuthFlow(t *testing.T) {
	router := newTestRouter(t)

	if w, _ := do(t, router, http.MethodGet, "/api/plans", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}
	if w, _ := do(t, router, http.MethodGet, "/api/plans", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", w.Code)
	}

	token := login(t, router, "alice")

	w, body := do(t, router, http.MethodGet, "/api/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/auth/me = %d", w.Code)
	}
	user, _ := body["user"].(map[string]interface{})
	if user["username"] != "alice" {
		t.Errorf("me = %v", body)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash serialized")
	}

	dup := map[string]string{"username": "alice", "password": "another1"}
	if w, _ := do(t, router, http.MethodPost, "/api/auth/register", "", dup); w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}
	wrong := map[string]string{"username": "alice", "password": "wrong-password"}
	if w, _ := do(t, router, http.MethodPost, "/api/auth/login", "", wrong); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}
	short := map[string]string{"username": "bob", "password": "123"}
	if w, _ := do(t, router, http.MethodPost, "/api/auth/register", "", short); w.Code != http.StatusBadRequest {
		t.Errorf("short password status = %d, want 400", w.Code)
	}
}

func TestPlanEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "alice")

	plan := map[string]interface{}{
		"title": "Fitness",
		"goals": []map[string]interface{}{
			{"name": "Run", "score_allocation": 40},
			{"name": "Lift", "score_allocation": 20},
		},
	}
	w, body := do(t, router, http.MethodPost, "/api/plans", token, plan)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	if body["remaining_score"] != float64(40) {
		t.Errorf("remaining_score = %v, want 40", body["remaining_score"])
	}
	created := body["plan"].(map[string]interface{})
	planID := created["id"].(string)
	goals := created["goals"].([]interface{})
	first := goals[0].(map[string]interface{})["id"].(string)
	second := goals[1].(map[string]interface{})["id"].(string)

	w, body = do(t, router, http.MethodPost, "/api/plans", token, plan)
	if w.Code != http.StatusConflict {
		t.Fatalf("over-budget status = %d, want 409", w.Code)
	}
	if body["remaining_score"] != float64(40) {
		t.Errorf("over-budget remaining_score = %v, want 40", body["remaining_score"])
	}

	w, _ = do(t, router, http.MethodPatch, "/api/plans/"+planID+"/goal-order", token, map[string]interface{}{"goal_ids": []string{first}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("partial reorder status = %d, want 400", w.Code)
	}
	w, body = do(t, router, http.MethodPatch, "/api/plans/"+planID+"/goal-order", token, map[string]interface{}{"goal_ids": []string{second, first}})
	if w.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body %s", w.Code, w.Body.String())
	}
	reordered := body["plan"].(map[string]interface{})["goals"].([]interface{})
	if reordered[0].(map[string]interface{})["id"] != second {
		t.Errorf("first goal after reorder = %v, want %s", reordered[0], second)
	}

	w, body = do(t, router, http.MethodPatch, "/api/goals/"+first+"/status", token, map[string]string{"status": "done"})
	if w.Code != http.StatusOK || body["goal"].(map[string]interface{})["status"] != "done" {
		t.Errorf("goal status = %d %v", w.Code, body)
	}

	other := login(t, router, "mallory")
	if w, _ := do(t, router, http.MethodDelete, "/api/plans/"+planID, other, nil); w.Code != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", w.Code)
	}

	w, body = do(t, router, http.MethodDelete, "/api/plans/"+planID, token, nil)
	if w.Code != http.StatusOK || body["remaining_score"] != float64(100) {
		t.Errorf("delete = %d %v", w.Code, body)
	}
}

func TestEventAndScoreEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "alice")

	event := map[string]interface{}{
		"title": "Write",
		"start": "2025-01-06T09:00:00Z",
		"end":   "2025-01-06T10:30:00Z",
	}
	w, body := do(t, router, http.MethodPost, "/api/events", token, event)
	if w.Code != http.StatusCreated {
		t.Fatalf("create event status = %d, body %s", w.Code, w.Body.String())
	}
	id := body["events"].([]interface{})[0].(map[string]interface{})["id"].(string)

	if w, _ := do(t, router, http.MethodPost, "/api/events/"+id+"/complete", token, map[string]string{"efficiency": "superb"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad efficiency status = %d, want 400", w.Code)
	}
	if w, _ := do(t, router, http.MethodPost, "/api/events/"+id+"/complete", token, map[string]string{"efficiency": "high"}); w.Code != http.StatusOK {
		t.Fatalf("complete status = %d", w.Code)
	}

	w, body = do(t, router, http.MethodGet, "/api/daily-scores?start_date=2025-01-01&end_date=2025-01-31", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("daily scores status = %d", w.Code)
	}
	scores := body["daily_scores"].([]interface{})
	if len(scores) != 1 {
		t.Fatalf("daily scores = %v", scores)
	}
	if s := scores[0].(map[string]interface{}); s["date"] != "2025-01-06" || s["total_score"] != float64(6) {
		t.Errorf("daily score = %v", s)
	}

	if w, _ := do(t, router, http.MethodPost, "/api/daily-scores/recompute", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("recompute without date status = %d, want 400", w.Code)
	}
	w, body = do(t, router, http.MethodPost, "/api/daily-scores/recompute?date=2025-01-06", token, nil)
	if w.Code != http.StatusOK || body["daily_score"].(map[string]interface{})["total_score"] != float64(6) {
		t.Errorf("recompute = %d %v", w.Code, body)
	}

	w, body = do(t, router, http.MethodGet, "/api/stats?year=2025&month=1", token, nil)
	if w.Code != http.StatusOK || body["completed_events"] != float64(1) {
		t.Errorf("stats = %d %v", w.Code, body)
	}
	if w, _ := do(t, router, http.MethodGet, "/api/stats?year=abc", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad year status = %d, want 400", w.Code)
	}

	other := login(t, router, "mallory")
	if w, _ := do(t, router, http.MethodDelete, "/api/events/"+id, other, nil); w.Code != http.StatusNotFound {
		t.Errorf("foreign event delete status = %d, want 404", w.Code)
	}
	if w, _ := do(t, router, http.MethodDelete, "/api/events/"+id+"?deleteAll=true", token, nil); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
}
