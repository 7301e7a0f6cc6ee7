package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/database"
	"github.com/axdashboard/axdash/internal/pkg/jobqueue"
	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	return repository.NewRepositories(db)
}

// fakeDetails answers detail fetches from a map keyed by opportunity id.
type fakeDetails struct {
	mu      sync.Mutex
	results map[string]*leadconnector.Opportunity
	errs    map[string]error
	calls   []string
}

func newFakeDetails() *fakeDetails {
	return &fakeDetails{
		results: map[string]*leadconnector.Opportunity{},
		errs:    map[string]error{},
	}
}

func (f *fakeDetails) FetchOpportunity(ctx context.Context, locationID, opportunityID string) (*leadconnector.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, locationID+"/"+opportunityID)
	if err, ok := f.errs[opportunityID]; ok {
		return nil, err
	}
	if res, ok := f.results[opportunityID]; ok {
		return res, nil
	}
	return nil, leadconnector.ErrNotFound
}

// fakeQueue records enqueued events instead of talking to redis.
type fakeQueue struct {
	mu     sync.Mutex
	events []uint
	err    error
}

func (q *fakeQueue) EnqueueWebhookEvent(ctx context.Context, eventID uint, eventType string) (*jobqueue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.events = append(q.events, eventID)
	return &jobqueue.Job{
		ID:      "job",
		Type:    jobqueue.JobTypeWebhookEvent,
		Payload: jobqueue.WebhookEventJobPayload{EventID: eventID, EventType: eventType}.ToMap(),
	}, nil
}

type fakeArchive struct {
	archived []string
}

func (a *fakeArchive) PutDeadLetter(ctx context.Context, event *models.WebhookEvent) error {
	a.archived = append(a.archived, event.EventID)
	return nil
}

// fakeCredentials hands out "stale" until refreshed, then "fresh".
type fakeCredentials struct {
	mu        sync.Mutex
	refreshed bool
	err       error
}

func (c *fakeCredentials) AccessToken(ctx context.Context, locationID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if c.refreshed {
		return "fresh", nil
	}
	return "stale", nil
}

func (c *fakeCredentials) RefreshAccessToken(ctx context.Context, locationID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed = true
	return "fresh", nil
}

var errProviderDown = errors.New("provider down")

func newTestProcessor(repos *repository.Repositories, details DetailFetcher) *Processor {
	p := NewProcessor(repos.Opportunity, repos.PendingWebhook, details, "")
	p.now = func() time.Time { return fixedNow }
	return p
}

func strPtr(s string) *string { return &s }
