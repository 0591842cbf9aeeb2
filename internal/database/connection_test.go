package database_test

import (
	"path/filepath"
	"testing"

	"score_tracker/internal/database"
	"score_tracker/internal/migrations"
	"score_tracker/internal/models"
)

func TestInitializeSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	db, err := database.Initialize("sqlite://"+path, database.Options{LogLevel: "silent"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1 for sqlite", got)
	}
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations.Run: %v", err)
	}
	for _, model := range []interface{}{&models.Event{}, &models.DailyScore{}, &models.AnnualPlan{}, &models.PlanGoal{}, &models.PlanBudget{}} {
		if !db.Migrator().HasTable(model) {
			t.Errorf("table for %T missing after migration", model)
		}
	}
	// Running twice must be harmless.
	if err := migrations.Run(db); err != nil {
		t.Fatalf("second migrations.Run: %v", err)
	}
}
