package models

import (
	"time"

	"gorm.io/datatypes"
)

// Opportunity status values the dashboard treats specially.
const (
	OpportunityStatusWon = "Won"
)

// Opportunity mirrors a CRM sales lead. The primary key is the id issued by the
// provider so webhook deliveries and detail fetches address the same row.
type Opportunity struct {
	ID                 string                           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Type               string                           `gorm:"type:varchar(64);default:''" json:"type,omitempty"`
	LocationID         string                           `gorm:"type:varchar(64);index" json:"locationId"`
	AssignedTo         string                           `gorm:"type:varchar(64);default:''" json:"assignedTo,omitempty"`
	ContactID          string                           `gorm:"type:varchar(64);default:''" json:"contactId,omitempty"`
	Name               string                           `gorm:"type:varchar(255);default:''" json:"name"`
	MonetaryValue      float64                          `gorm:"not null;default:0" json:"monetaryValue"`
	PipelineID         string                           `gorm:"type:varchar(64);index" json:"pipelineId"`
	PipelineStageID    string                           `gorm:"type:varchar(64);index" json:"pipelineStageId"`
	Status             string                           `gorm:"type:varchar(32);index" json:"status"`
	Source             *string                          `gorm:"type:varchar(191);index" json:"source"`
	TreatmentInterest  *string                          `gorm:"type:varchar(191);index" json:"treatmentInterest"`
	DateAdded          time.Time                        `gorm:"index" json:"dateAdded"`
	LastStageChangeAt  *time.Time                       `gorm:"index" json:"lastStageChangeAt,omitempty"`
	LastStatusChangeAt *time.Time                       `json:"lastStatusChangeAt,omitempty"`
	Attributions       []Attribution                    `gorm:"foreignKey:OpportunityID;constraint:OnDelete:CASCADE" json:"attributions"`
	CustomFields       datatypes.JSONSlice[CustomField] `json:"customFields"`
	CreatedAt          time.Time                        `gorm:"autoCreateTime" json:"-"`
	UpdatedAt          time.Time                        `gorm:"autoUpdateTime" json:"-"`
}

// Attribution is one marketing touch recorded by the provider. Position keeps
// the provider's ordering.
type Attribution struct {
	ID               uint   `gorm:"primaryKey" json:"-"`
	OpportunityID    string `gorm:"type:varchar(64);not null;index" json:"-"`
	Position         int    `gorm:"not null;default:0" json:"-"`
	UTMSessionSource string `gorm:"type:varchar(191);index" json:"utmSessionSource,omitempty"`
	Medium           string `gorm:"type:varchar(191)" json:"medium,omitempty"`
	MediumID         string `gorm:"type:varchar(191)" json:"mediumId,omitempty"`
	URL              string `gorm:"type:text" json:"url,omitempty"`
	IsFirst          bool   `json:"isFirst"`
	IsLast           bool   `json:"isLast"`
}

func (Attribution) TableName() string {
	return "opportunity_attributions"
}

// CustomField is an id/type/value triple stored as JSON on the opportunity.
type CustomField struct {
	ID               string `json:"id"`
	Type             string `json:"type,omitempty"`
	FieldValueString string `json:"fieldValueString,omitempty"`
}

// SourceValue returns the source label or "" when absent.
func (o *Opportunity) SourceValue() string {
	if o.Source == nil {
		return ""
	}
	return *o.Source
}

// HasTreatmentInterest reports whether a non-empty treatment interest is set.
func (o *Opportunity) HasTreatmentInterest() bool {
	return o.TreatmentInterest != nil && *o.TreatmentInterest != ""
}

// CreatedWithin reports whether DateAdded falls inside [start, end].
func (o *Opportunity) CreatedWithin(start, end time.Time) bool {
	return !o.DateAdded.Before(start) && !o.DateAdded.After(end)
}

// CustomFieldValue returns the string value of the custom field with the given id.
func (o *Opportunity) CustomFieldValue(fieldID string) (string, bool) {
	return FindCustomFieldValue(o.CustomFields, fieldID)
}

func FindCustomFieldValue(fields []CustomField, fieldID string) (string, bool) {
	for _, f := range fields {
		if f.ID == fieldID {
			return f.FieldValueString, f.FieldValueString != ""
		}
	}
	return "", false
}

// IndexAttributions assigns positions and the owning id before attributions are persisted.
func (o *Opportunity) IndexAttributions() {
	for i := range o.Attributions {
		o.Attributions[i].ID = 0
		o.Attributions[i].OpportunityID = o.ID
		o.Attributions[i].Position = i
	}
}
