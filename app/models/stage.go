package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Stage tags group pipeline stages by the role they play in dashboard reports.
const (
	StageTagLead             = "lead"
	StageTagConsult          = "consult"
	StageTagSurgeryScheduled = "surgery_scheduled"
	StageTagSurgeryCompleted = "surgery_completed"
	StageTagCanceled         = "canceled"
	StageTagRevenue          = "revenue"
	StageTagAppointment      = "appointment"
	StageTagReplied          = "replied"
	StageTagPatient          = "patient"
)

// defaultStageTags maps the stage names used by the clinic pipelines to their tags.
// Stages whose name is not listed stay untagged unless tags are supplied explicitly.
var defaultStageTags = map[string][]string{
	"Lead":              {StageTagLead},
	"Pre-Qualify Call":  {StageTagConsult, StageTagReplied},
	"Consult Booked":    {StageTagConsult, StageTagRevenue},
	"Consult Complete":  {StageTagConsult, StageTagRevenue, StageTagAppointment},
	"Surgery Scheduled": {StageTagSurgeryScheduled},
	"Surgery Complete":  {StageTagSurgeryCompleted, StageTagRevenue},
	"Cold":              {StageTagCanceled},
	"Not Good Fit":      {StageTagCanceled},
	"Booked":            {StageTagRevenue, StageTagAppointment},
	"Patient":           {StageTagRevenue, StageTagAppointment, StageTagPatient},
}

// Stage is a pipeline step. Tags are resolved when the stage is written and again
// when it is loaded, so rows inserted outside the sync still carry tags.
type Stage struct {
	ID             string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name           string                      `gorm:"type:varchar(191);not null;index" json:"name"`
	PipelineID     string                      `gorm:"type:varchar(64);index" json:"pipelineId,omitempty"`
	OriginID       string                      `gorm:"type:varchar(64)" json:"originId,omitempty"`
	Position       *int                        `json:"position,omitempty"`
	ShowInFunnel   bool                        `json:"showInFunnel"`
	ShowInPieChart bool                        `json:"showInPieChart"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt      time.Time                   `gorm:"autoCreateTime" json:"-"`
	UpdatedAt      time.Time                   `gorm:"autoUpdateTime" json:"-"`
}

// DefaultStageTags returns the tags implied by a stage name.
func DefaultStageTags(name string) []string {
	tags := defaultStageTags[name]
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// ResolveTags fills Tags from the stage name when none were supplied.
func (s *Stage) ResolveTags() {
	if len(s.Tags) == 0 {
		s.Tags = DefaultStageTags(s.Name)
	}
}

// AfterFind resolves tags for rows stored without them.
func (s *Stage) AfterFind(tx *gorm.DB) error {
	s.ResolveTags()
	return nil
}

func (s *Stage) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// StageIDsWithTag returns the ids of all stages carrying tag, in input order.
func StageIDsWithTag(stages []Stage, tag string) []string {
	ids := make([]string, 0)
	for i := range stages {
		if stages[i].HasTag(tag) {
			ids = append(ids, stages[i].ID)
		}
	}
	return ids
}
