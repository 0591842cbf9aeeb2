package migrations

import (
	"log"

	"gorm.io/gorm"

	"score_tracker/internal/models"
)

// Run creates or updates every table the service uses.
func Run(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.EventType{},
		&models.Event{},
		&models.DailyScore{},
		&models.PlanBudget{},
		&models.AnnualPlan{},
		&models.PlanGoal{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migrations completed successfully!")
	return nil
}
