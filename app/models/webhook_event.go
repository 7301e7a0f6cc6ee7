package models

import "time"

// Opportunity webhook event types sent by the provider.
const (
	WebhookTypeOpportunityCreate = "OpportunityCreate"
	WebhookTypeOpportunityUpdate = "OpportunityUpdate"
	WebhookTypeOpportunityDelete = "OpportunityDelete"
)

// WebhookEvent stores every accepted delivery verbatim so processing can be
// retried, replayed or audited independently of the HTTP request.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EventID         string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType       string     `gorm:"type:varchar(64);not null;index" json:"event_type"`
	OpportunityID   string     `gorm:"type:varchar(64);index" json:"opportunity_id"`
	LocationID      string     `gorm:"type:varchar(64);index" json:"location_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	ProcessedAt     *time.Time `gorm:"default:null;index" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"`
	DeadLetteredAt  *time.Time `gorm:"default:null;index" json:"dead_lettered_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// IsProcessed reports whether the event reached a terminal successful state.
func (e *WebhookEvent) IsProcessed() bool {
	return e.ProcessedAt != nil
}

func (e *WebhookEvent) IsDeadLettered() bool {
	return e.DeadLetteredAt != nil
}
