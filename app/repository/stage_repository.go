package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axdashboard/axdash/app/models"
)

// stageRepository implements the StageRepository interface
type stageRepository struct {
	db *gorm.DB
}

// NewStageRepository creates a new stage repository instance
func NewStageRepository(db *gorm.DB) StageRepository {
	return &stageRepository{db: db}
}

// List returns every known stage
func (r *stageRepository) List(ctx context.Context) ([]models.Stage, error) {
	stages := make([]models.Stage, 0)
	err := r.db.WithContext(ctx).Order("pipeline_id ASC, position ASC, name ASC").Find(&stages).Error
	return stages, err
}

// UpsertMany writes stages keyed by provider id. Tags are resolved from the
// stage name for stages that arrive without tags.
func (r *stageRepository) UpsertMany(ctx context.Context, stages []models.Stage) error {
	if len(stages) == 0 {
		return nil
	}
	for i := range stages {
		stages[i].ResolveTags()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"pipeline_id",
			"origin_id",
			"position",
			"show_in_funnel",
			"show_in_pie_chart",
			"tags",
			"updated_at",
		}),
	}).Create(&stages).Error
}
