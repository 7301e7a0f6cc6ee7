package leadconnector

import "time"

type SearchResponse struct {
	Opportunities []Opportunity `json:"opportunities"`
}

// Opportunity is the subset of the provider's opportunity record the mirror keeps.
type Opportunity struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	MonetaryValue   *float64      `json:"monetaryValue"`
	PipelineID      string        `json:"pipelineId"`
	PipelineStageID string        `json:"pipelineStageId"`
	Status          string        `json:"status"`
	Source          *string       `json:"source"`
	AssignedTo      string        `json:"assignedTo"`
	ContactID       string        `json:"contactId"`
	LocationID      string        `json:"locationId"`
	CreatedAt       *time.Time    `json:"createdAt"`
	Attributions    []Attribution `json:"attributions"`
	CustomFields    []CustomField `json:"customFields"`
}

type Attribution struct {
	UTMSessionSource string `json:"utmSessionSource"`
	Medium           string `json:"medium"`
	MediumID         string `json:"mediumId"`
	URL              string `json:"url"`
	IsFirst          bool   `json:"isFirst"`
	IsLast           bool   `json:"isLast"`
}

type CustomField struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	FieldValueString string `json:"fieldValueString"`
}

type PipelinesResponse struct {
	Pipelines []Pipeline `json:"pipelines"`
}

type Pipeline struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`
}

type Stage struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OriginID       string `json:"originId"`
	Position       *int   `json:"position"`
	ShowInFunnel   *bool  `json:"showInFunnel"`
	ShowInPieChart *bool  `json:"showInPieChart"`
}
