package models

import "time"

// PendingWebhook marks an opportunity whose details could not be fetched when its
// update event arrived. The reconciliation sweep after the next login backfills it.
type PendingWebhook struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OpportunityID string     `gorm:"type:varchar(64);not null;index" json:"opportunity_id"`
	LocationID    string     `gorm:"type:varchar(64);index" json:"location_id"`
	Processed     bool       `gorm:"not null;default:false;index" json:"processed"`
	ProcessedAt   *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
