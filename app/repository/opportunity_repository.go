package repository

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axdashboard/axdash/app/models"
)

var opportunityUpsertColumns = []string{
	"type",
	"location_id",
	"assigned_to",
	"contact_id",
	"name",
	"monetary_value",
	"pipeline_id",
	"pipeline_stage_id",
	"status",
	"source",
	"treatment_interest",
	"date_added",
	"last_stage_change_at",
	"last_status_change_at",
	"custom_fields",
	"updated_at",
}

// opportunityRepository implements the OpportunityRepository interface
type opportunityRepository struct {
	db *gorm.DB
}

// NewOpportunityRepository creates a new opportunity repository instance
func NewOpportunityRepository(db *gorm.DB) OpportunityRepository {
	return &opportunityRepository{db: db}
}

func preloadAttributions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// GetByID retrieves an opportunity with its attributions
func (r *opportunityRepository) GetByID(ctx context.Context, id string) (*models.Opportunity, error) {
	var opp models.Opportunity
	err := r.db.WithContext(ctx).
		Preload("Attributions", preloadAttributions).
		Where("id = ?", id).
		First(&opp).Error
	if err != nil {
		return nil, err
	}
	return &opp, nil
}

// Upsert writes the opportunity row and replaces its attributions in one transaction.
// The last write wins; there is no version check.
func (r *opportunityRepository) Upsert(ctx context.Context, opp *models.Opportunity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opp.IndexAttributions()
		attributions := opp.Attributions

		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(opportunityUpsertColumns),
		}).Create(opp).Error; err != nil {
			return err
		}

		if err := tx.Where("opportunity_id = ?", opp.ID).Delete(&models.Attribution{}).Error; err != nil {
			return err
		}
		if len(attributions) == 0 {
			return nil
		}
		return tx.Create(&attributions).Error
	})
}

// Delete removes the opportunity and reports whether a row existed
func (r *opportunityRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("opportunity_id = ?", id).Delete(&models.Attribution{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Opportunity{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// Find returns all opportunities matching q, oldest first
func (r *opportunityRepository) Find(ctx context.Context, q OpportunityQuery) ([]models.Opportunity, error) {
	opps := make([]models.Opportunity, 0)
	if q.StageIDs != nil && len(q.StageIDs) == 0 && q.OrStatus == "" {
		return opps, nil
	}

	db := r.db.WithContext(ctx).Model(&models.Opportunity{})
	if q.WithAttributions {
		db = db.Preload("Attributions", preloadAttributions)
	}
	if tr := q.CreatedOrStageChanged; tr != nil {
		db = db.Where("((opportunities.date_added BETWEEN ? AND ?) OR (opportunities.last_stage_change_at BETWEEN ? AND ?))",
			tr.Start, tr.End, tr.Start, tr.End)
	}
	if tr := q.DateAdded; tr != nil {
		db = db.Where("opportunities.date_added BETWEEN ? AND ?", tr.Start, tr.End)
	}
	if tr := q.StageChanged; tr != nil {
		db = db.Where("opportunities.last_stage_change_at BETWEEN ? AND ?", tr.Start, tr.End)
	}
	switch {
	case q.StageIDs != nil && q.OrStatus != "" && len(q.StageIDs) > 0:
		db = db.Where("(opportunities.pipeline_stage_id IN ? OR opportunities.status = ?)", q.StageIDs, q.OrStatus)
	case q.StageIDs != nil && q.OrStatus != "":
		db = db.Where("opportunities.status = ?", q.OrStatus)
	case q.StageIDs != nil:
		db = db.Where("opportunities.pipeline_stage_id IN ?", q.StageIDs)
	}
	if q.TreatmentInterest != nil {
		db = db.Where("opportunities.treatment_interest = ?", *q.TreatmentInterest)
	}
	if q.WithTreatment {
		db = db.Where("opportunities.treatment_interest IS NOT NULL")
	}
	if !q.Source.IsEmpty() {
		sql, args := q.Source.SQL()
		log.Debugf("[Repository] Source filter %v", q.Source.Document())
		db = db.Where(sql, args...)
	}

	err := db.Order("opportunities.date_added ASC").Find(&opps).Error
	return opps, err
}

// DistinctTreatmentInterests lists every non-empty treatment value across the whole store
func (r *opportunityRepository) DistinctTreatmentInterests(ctx context.Context) ([]string, error) {
	values := make([]string, 0)
	err := r.db.WithContext(ctx).Model(&models.Opportunity{}).
		Where("treatment_interest IS NOT NULL AND treatment_interest <> ''").
		Distinct("treatment_interest").
		Order("treatment_interest ASC").
		Pluck("treatment_interest", &values).Error
	return values, err
}
