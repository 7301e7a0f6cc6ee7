package repository

import (
	"context"
	"time"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/internal/pkg/sourcefilter"
)

// TimeRange is an inclusive [Start, End] interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// OpportunityQuery selects opportunities for reporting. All set criteria are
// combined with AND; zero-valued criteria are ignored.
type OpportunityQuery struct {
	// CreatedOrStageChanged matches dateAdded or lastStageChangeAt inside the range.
	CreatedOrStageChanged *TimeRange
	DateAdded             *TimeRange
	StageChanged          *TimeRange
	// StageIDs restricts pipelineStageId when non-nil. An empty non-nil slice matches nothing.
	StageIDs []string
	// OrStatus widens StageIDs to "stage in StageIDs OR status = OrStatus".
	OrStatus string
	// TreatmentInterest restricts to a single treatment value.
	TreatmentInterest *string
	// WithTreatment restricts to rows with a non-null treatment interest.
	WithTreatment bool
	Source        sourcefilter.Predicate
	// WithAttributions preloads attribution rows.
	WithAttributions bool
}

// OpportunityRepository defines the interface for opportunity mirror operations
type OpportunityRepository interface {
	GetByID(ctx context.Context, id string) (*models.Opportunity, error)
	Upsert(ctx context.Context, opp *models.Opportunity) error
	Delete(ctx context.Context, id string) (bool, error)
	Find(ctx context.Context, q OpportunityQuery) ([]models.Opportunity, error)
	DistinctTreatmentInterests(ctx context.Context) ([]string, error)
}

// StageRepository defines the interface for pipeline stage reference data
type StageRepository interface {
	List(ctx context.Context) ([]models.Stage, error)
	UpsertMany(ctx context.Context, stages []models.Stage) error
}

// CredentialRepository defines the interface for per-location OAuth credentials
type CredentialRepository interface {
	Upsert(ctx context.Context, cred *models.TenantCredential) error
	GetByLocationID(ctx context.Context, locationID string) (*models.TenantCredential, error)
	GetLatest(ctx context.Context) (*models.TenantCredential, error)
}

// PendingWebhookRepository defines the interface for reconciliation markers
type PendingWebhookRepository interface {
	Create(ctx context.Context, p *models.PendingWebhook) error
	ListUnprocessed(ctx context.Context, limit int) ([]models.PendingWebhook, error)
	MarkProcessed(ctx context.Context, id uint) error
	RecordFailure(ctx context.Context, id uint, msg string) error
}

// WebhookEventRepository defines the interface for the raw webhook event log
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error)
	MarkAttempt(ctx context.Context, id uint, processingError string) error
	Touch(ctx context.Context, id uint) error
	MarkProcessed(ctx context.Context, id uint) error
	MarkDeadLettered(ctx context.Context, id uint, processingError string) error
	ResetForReplay(ctx context.Context, id uint) error
	ListDeadLettered(ctx context.Context, offset, limit int) ([]models.WebhookEvent, int64, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.WebhookEvent, error)
}
