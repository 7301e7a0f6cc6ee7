package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axdashboard/axdash/app/models"
)

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a credential repository backed by GORM.
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *models.TenantCredential) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "location_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token_enc",
			"refresh_token_enc",
			"scope",
			"token_expires_at",
			"updated_at",
		}),
	}).Create(cred).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("location_id = ?", cred.LocationID).First(cred).Error
}

func (r *credentialRepository) GetByLocationID(ctx context.Context, locationID string) (*models.TenantCredential, error) {
	var cred models.TenantCredential
	err := r.db.WithContext(ctx).Where("location_id = ?", locationID).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// GetLatest returns the most recently refreshed credential of any location.
func (r *credentialRepository) GetLatest(ctx context.Context) (*models.TenantCredential, error) {
	var cred models.TenantCredential
	err := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
