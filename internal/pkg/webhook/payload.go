package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/axdashboard/axdash/app/models"
)

var ErrMissingOpportunityID = errors.New("webhook payload has no opportunity id")

// Payload is an opportunity event as delivered by the provider. Pointer fields
// distinguish "absent" from "zero" so updates only touch what was sent.
type Payload struct {
	Type               string                `json:"type"`
	WebhookID          string                `json:"webhookId,omitempty"`
	ID                 string                `json:"id"`
	LocationID         string                `json:"locationId"`
	AssignedTo         *string               `json:"assignedTo,omitempty"`
	ContactID          *string               `json:"contactId,omitempty"`
	Name               *string               `json:"name,omitempty"`
	MonetaryValue      *float64              `json:"monetaryValue,omitempty"`
	PipelineID         *string               `json:"pipelineId,omitempty"`
	PipelineStageID    *string               `json:"pipelineStageId,omitempty"`
	Status             *string               `json:"status,omitempty"`
	Source             *string               `json:"source,omitempty"`
	DateAdded          *time.Time            `json:"dateAdded,omitempty"`
	LastStageChangeAt  *time.Time            `json:"lastStageChangeAt,omitempty"`
	LastStatusChangeAt *time.Time            `json:"lastStatusChangeAt,omitempty"`
	Attributions       *[]models.Attribution `json:"attributions,omitempty"`
	CustomFields       *[]models.CustomField `json:"customFields,omitempty"`
}

// ParsePayload decodes a raw delivery body.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	p.Type = strings.TrimSpace(p.Type)
	p.ID = strings.TrimSpace(p.ID)
	p.WebhookID = strings.TrimSpace(p.WebhookID)
	return &p, nil
}

// DeliveryKey identifies the content of a delivery: the provider's webhook id
// when sent, otherwise a hash of the raw body.
func DeliveryKey(p *Payload, body []byte) string {
	if p.WebhookID != "" {
		return p.WebhookID
	}
	sum := sha256.Sum256(body)
	return "hash:" + hex.EncodeToString(sum[:])
}

// EventID is the stored id of a delivery. A provider webhook id is kept as is,
// so redeliveries collide on the unique index. Without one, identical bodies
// can be legitimate repeats (a stage moving A, B, A) and every delivery gets
// its own id.
func EventID(p *Payload, body []byte) string {
	key := DeliveryKey(p, body)
	if p.WebhookID != "" {
		return key
	}
	return key + ":" + uuid.NewString()
}

// NewOpportunity builds a full record from a create event. Missing monetary
// values become 0 and missing change timestamps fall back to dateAdded.
func (p *Payload) NewOpportunity(now time.Time) *models.Opportunity {
	opp := &models.Opportunity{
		ID:         p.ID,
		Type:       p.Type,
		LocationID: p.LocationID,
		DateAdded:  now,
	}
	if p.DateAdded != nil {
		opp.DateAdded = *p.DateAdded
	}
	p.apply(opp)

	added := opp.DateAdded
	if opp.LastStageChangeAt == nil {
		opp.LastStageChangeAt = &added
	}
	if opp.LastStatusChangeAt == nil {
		opp.LastStatusChangeAt = &added
	}
	return opp
}

// ApplyUpdate patches opp with the fields present in the event. A present stage
// or status stamps the matching change time with now.
func (p *Payload) ApplyUpdate(opp *models.Opportunity, now time.Time) {
	if p.LocationID != "" {
		opp.LocationID = p.LocationID
	}
	if p.DateAdded != nil {
		opp.DateAdded = *p.DateAdded
	}
	p.apply(opp)

	if p.PipelineStageID != nil {
		stamp := now
		opp.LastStageChangeAt = &stamp
	}
	if p.Status != nil {
		stamp := now
		opp.LastStatusChangeAt = &stamp
	}
}

func (p *Payload) apply(opp *models.Opportunity) {
	if p.AssignedTo != nil {
		opp.AssignedTo = *p.AssignedTo
	}
	if p.ContactID != nil {
		opp.ContactID = *p.ContactID
	}
	if p.Name != nil {
		opp.Name = *p.Name
	}
	if p.MonetaryValue != nil {
		opp.MonetaryValue = *p.MonetaryValue
	}
	if p.PipelineID != nil {
		opp.PipelineID = *p.PipelineID
	}
	if p.PipelineStageID != nil {
		opp.PipelineStageID = *p.PipelineStageID
	}
	if p.Status != nil {
		opp.Status = *p.Status
	}
	if p.Source != nil {
		source := *p.Source
		opp.Source = &source
	}
	if p.LastStageChangeAt != nil {
		t := *p.LastStageChangeAt
		opp.LastStageChangeAt = &t
	}
	if p.LastStatusChangeAt != nil {
		t := *p.LastStatusChangeAt
		opp.LastStatusChangeAt = &t
	}
	if p.Attributions != nil {
		opp.Attributions = append([]models.Attribution(nil), (*p.Attributions)...)
	}
	if p.CustomFields != nil {
		opp.CustomFields = append([]models.CustomField(nil), (*p.CustomFields)...)
	}
}
