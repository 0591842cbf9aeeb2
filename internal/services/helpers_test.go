package services_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"score_tracker/internal/database"
	"score_tracker/internal/migrations"
	"score_tracker/internal/repository"
	"score_tracker/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

// recordingCache is an in-memory StatsCache that remembers invalidations.
type recordingCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated map[uint]int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string][]byte{}, invalidated: map[uint]int{}}
}

func cacheKey(userID uint, period string) string {
	return fmt.Sprintf("%d|%s", userID, period)
}

func (c *recordingCache) Get(_ context.Context, userID uint, period string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[cacheKey(userID, period)], nil
}

func (c *recordingCache) Set(_ context.Context, userID uint, period string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(userID, period)] = payload
	return nil
}

func (c *recordingCache) InvalidateUser(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated[userID]++
	prefix := fmt.Sprintf("%d|", userID)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *recordingCache) invalidations(userID uint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated[userID]
}

type testEnv struct {
	db         *gorm.DB
	store      *repository.Store
	cache      *recordingCache
	plans      services.PlanService
	scores     services.DailyScoreService
	stats      services.StatsService
	events     services.EventService
	eventTypes services.EventTypeService
	reconcile  services.ReconcileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	store := repository.NewStore(db)
	cache := newRecordingCache()
	stats := services.NewStatsService(store, cache, time.UTC)
	scores := services.NewDailyScoreService(store, time.UTC)
	return &testEnv{
		db:         db,
		store:      store,
		cache:      cache,
		plans:      services.NewPlanService(store),
		scores:     scores,
		stats:      stats,
		events:     services.NewEventService(store, scores, stats, time.UTC),
		eventTypes: services.NewEventTypeService(store, stats),
		reconcile:  services.NewReconcileService(store, scores, stats, time.UTC),
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func goal(name string, score int) services.GoalInput {
	return services.GoalInput{Name: name, ScoreAllocation: intPtr(score)}
}
