package webhook

import (
	"context"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/internal/pkg/env"
	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
)

// DefaultTreatmentInterestFieldID is the custom field holding the treatment a lead asked about.
const DefaultTreatmentInterestFieldID = "TloVurUlLLoJjD325POi"

// DetailFetcher loads the full provider view of one opportunity.
type DetailFetcher interface {
	FetchOpportunity(ctx context.Context, locationID, opportunityID string) (*leadconnector.Opportunity, error)
}

// ProviderDetails fetches details with the stored credentials of the event's location.
type ProviderDetails struct {
	client *leadconnector.Client
	creds  leadconnector.Credentials
}

func NewProviderDetails(client *leadconnector.Client, creds leadconnector.Credentials) *ProviderDetails {
	return &ProviderDetails{client: client, creds: creds}
}

func (d *ProviderDetails) FetchOpportunity(ctx context.Context, locationID, opportunityID string) (*leadconnector.Opportunity, error) {
	return leadconnector.WithRefresh(ctx, d.creds, locationID, func(token string) (*leadconnector.Opportunity, error) {
		return d.client.SearchOpportunity(ctx, token, locationID, opportunityID)
	})
}

// TreatmentInterestFieldID returns the configured custom field id.
func TreatmentInterestFieldID() string {
	return env.GetEnv("TREATMENT_INTEREST_FIELD_ID", DefaultTreatmentInterestFieldID)
}

// Enrich copies the detail-only fields onto opp: treatment interest, attributions
// and custom fields. Missing lists become empty lists.
func Enrich(opp *models.Opportunity, details *leadconnector.Opportunity, treatmentFieldID string) {
	fields := make([]models.CustomField, 0, len(details.CustomFields))
	for _, f := range details.CustomFields {
		fields = append(fields, models.CustomField{
			ID:               f.ID,
			Type:             f.Type,
			FieldValueString: f.FieldValueString,
		})
	}
	opp.CustomFields = fields

	attributions := make([]models.Attribution, 0, len(details.Attributions))
	for _, a := range details.Attributions {
		attributions = append(attributions, models.Attribution{
			UTMSessionSource: a.UTMSessionSource,
			Medium:           a.Medium,
			MediumID:         a.MediumID,
			URL:              a.URL,
			IsFirst:          a.IsFirst,
			IsLast:           a.IsLast,
		})
	}
	opp.Attributions = attributions

	if v, ok := models.FindCustomFieldValue(fields, treatmentFieldID); ok {
		opp.TreatmentInterest = &v
	} else {
		opp.TreatmentInterest = nil
	}
}
