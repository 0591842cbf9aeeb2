package repository

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"score_tracker/internal/models"
)

type DailyScoreRepository interface {
	// GetOrCreateForUpdate returns the (user, date) row locked for the rest
	// of the transaction, inserting it first when absent.
	GetOrCreateForUpdate(ctx context.Context, userID uint, date datatypes.Date) (*models.DailyScore, error)
	SetTotal(ctx context.Context, score *models.DailyScore, total int) error
	Get(ctx context.Context, userID uint, date datatypes.Date) (*models.DailyScore, error)
	ListRange(ctx context.Context, userID uint, from, to *datatypes.Date) ([]models.DailyScore, error)
	UserIDsOn(ctx context.Context, date datatypes.Date) ([]uint, error)
}

type dailyScoreRepository struct {
	db *gorm.DB
}

func NewDailyScoreRepository(db *gorm.DB) DailyScoreRepository {
	return &dailyScoreRepository{db: db}
}

func (r *dailyScoreRepository) GetOrCreateForUpdate(ctx context.Context, userID uint, date datatypes.Date) (*models.DailyScore, error) {
	db := r.db.WithContext(ctx)
	fresh := models.DailyScore{UserID: userID, Date: date}
	// A concurrent insert for the same key wins; ours becomes a no-op.
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, fmt.Errorf("insert daily score: %w", err)
	}

	var score models.DailyScore
	if err := forUpdate(db).Where("user_id = ? AND date = ?", userID, date).First(&score).Error; err != nil {
		return nil, fmt.Errorf("lock daily score: %w", err)
	}
	return &score, nil
}

func (r *dailyScoreRepository) SetTotal(ctx context.Context, score *models.DailyScore, total int) error {
	err := r.db.WithContext(ctx).Model(score).Update("total_score", total).Error
	if err != nil {
		return fmt.Errorf("update daily score: %w", err)
	}
	score.TotalScore = total
	return nil
}

func (r *dailyScoreRepository) Get(ctx context.Context, userID uint, date datatypes.Date) (*models.DailyScore, error) {
	var score models.DailyScore
	if err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&score).Error; err != nil {
		return nil, err
	}
	return &score, nil
}

func (r *dailyScoreRepository) ListRange(ctx context.Context, userID uint, from, to *datatypes.Date) ([]models.DailyScore, error) {
	var scores []models.DailyScore
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if from != nil {
		query = query.Where("date >= ?", *from)
	}
	if to != nil {
		query = query.Where("date <= ?", *to)
	}
	err := query.Order("date ASC").Find(&scores).Error
	return scores, err
}

func (r *dailyScoreRepository) UserIDsOn(ctx context.Context, date datatypes.Date) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.DailyScore{}).
		Where("date = ?", date).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}
