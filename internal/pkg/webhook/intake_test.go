package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/jobqueue"
)

const createBody = `{"type":"OpportunityCreate","id":"opp-1","locationId":"loc-1","name":"Jane","dateAdded":"2024-05-01T09:00:00Z"}`

const createBodyWithID = `{"type":"OpportunityCreate","webhookId":"wh-1","id":"opp-1","locationId":"loc-1","name":"Jane","dateAdded":"2024-05-01T09:00:00Z"}`

func stageUpdateBody(stage, changedAt string) string {
	return `{"type":"OpportunityUpdate","id":"opp-1","locationId":"loc-1","pipelineStageId":"` + stage +
		`","lastStageChangeAt":"` + changedAt + `"}`
}

// memoryRecent is an in-process RecentDeliveries without expiry.
type memoryRecent struct {
	seen map[string]bool
	err  error
}

func newMemoryRecent() *memoryRecent {
	return &memoryRecent{seen: map[string]bool{}}
}

func (m *memoryRecent) FirstSeen(ctx context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memoryRecent) Forget(ctx context.Context, key string) error {
	delete(m.seen, key)
	return nil
}

// brokenEvents fails every insert.
type brokenEvents struct {
	repository.WebhookEventRepository
}

func (brokenEvents) CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	return false, nil, errors.New("database is locked")
}

func processQueued(t *testing.T, worker *Worker, queue *fakeQueue) {
	t.Helper()
	for _, id := range queue.events {
		job := &jobqueue.Job{Payload: jobqueue.WebhookEventJobPayload{EventID: id}.ToMap()}
		require.NoError(t, worker.HandleJob(context.Background(), job))
	}
	queue.events = nil
}

func TestIntakeRecordDeduplicates(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{}
	intake := NewIntake(repos.WebhookEvent, queue)
	ctx := context.Background()

	first, err := intake.Record(ctx, []byte(createBodyWithID))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.True(t, first.Enqueued)
	assert.Equal(t, "wh-1", first.Event.EventID)
	assert.Equal(t, models.WebhookTypeOpportunityCreate, first.Event.EventType)
	assert.Equal(t, "opp-1", first.Event.OpportunityID)
	assert.Equal(t, "loc-1", first.Event.LocationID)
	assert.Equal(t, createBodyWithID, first.Event.PayloadJSON)

	second, err := intake.Record(ctx, []byte(createBodyWithID))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Enqueued)
	assert.Equal(t, first.Event.ID, second.Event.ID)

	assert.Equal(t, []uint{first.Event.ID}, queue.events)
}

func TestIntakeKeepsRepeatedStageChanges(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{}
	intake := NewIntake(repos.WebhookEvent, queue)
	worker := NewWorker(repos.WebhookEvent, newTestProcessor(repos, newFakeDetails()), nil)
	ctx := context.Background()

	_, err := intake.Record(ctx, []byte(createBody))
	require.NoError(t, err)
	processQueued(t, worker, queue)

	toA := stageUpdateBody("s-a", "2024-05-01T10:00:00Z")
	toB := stageUpdateBody("s-b", "2024-05-01T10:00:00Z")
	for i, body := range []string{toA, toB, toA} {
		receipt, err := intake.Record(ctx, []byte(body))
		require.NoError(t, err)
		assert.False(t, receipt.Duplicate, "delivery %d", i)
		assert.True(t, receipt.Enqueued, "delivery %d", i)
		processQueued(t, worker, queue)
	}

	opp, err := repos.Opportunity.GetByID(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, "s-a", opp.PipelineStageID)
}

func TestIntakeRecentDeliveryWindow(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{}
	recent := newMemoryRecent()
	intake := NewIntake(repos.WebhookEvent, queue).WithRecentDeliveries(recent)
	worker := NewWorker(repos.WebhookEvent, newTestProcessor(repos, newFakeDetails()), nil)
	ctx := context.Background()

	first, err := intake.Record(ctx, []byte(createBody))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	again, err := intake.Record(ctx, []byte(createBody))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Nil(t, again.Event)
	assert.Len(t, queue.events, 1)
	processQueued(t, worker, queue)

	// a later move back to the same stage carries a new change time
	for _, body := range []string{
		stageUpdateBody("s-a", "2024-05-01T10:00:00Z"),
		stageUpdateBody("s-b", "2024-05-01T10:05:00Z"),
		stageUpdateBody("s-a", "2024-05-01T10:10:00Z"),
	} {
		receipt, err := intake.Record(ctx, []byte(body))
		require.NoError(t, err)
		assert.False(t, receipt.Duplicate)
		processQueued(t, worker, queue)
	}
	opp, err := repos.Opportunity.GetByID(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, "s-a", opp.PipelineStageID)

	// provider ids bypass the window and dedupe on the store
	withID, err := intake.Record(ctx, []byte(createBodyWithID))
	require.NoError(t, err)
	assert.False(t, withID.Duplicate)
	assert.NotContains(t, recent.seen, "wh-1")
}

func TestIntakeRecentDeliveryWindowFailures(t *testing.T) {
	ctx := context.Background()

	recent := newMemoryRecent()
	broken := NewIntake(brokenEvents{}, &fakeQueue{}).WithRecentDeliveries(recent)
	_, err := broken.Record(ctx, []byte(createBody))
	require.Error(t, err)
	assert.Empty(t, recent.seen, "a delivery that was not stored must be accepted on retry")

	repos := newTestRepos(t)
	queue := &fakeQueue{}
	down := NewIntake(repos.WebhookEvent, queue).WithRecentDeliveries(&memoryRecent{err: errors.New("redis down")})
	for i := 0; i < 2; i++ {
		receipt, err := down.Record(ctx, []byte(createBody))
		require.NoError(t, err)
		assert.False(t, receipt.Duplicate)
	}
	assert.Len(t, queue.events, 2)
}

func TestIntakeRejectsInvalidJSON(t *testing.T) {
	repos := newTestRepos(t)
	intake := NewIntake(repos.WebhookEvent, &fakeQueue{})

	_, err := intake.Record(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestIntakeKeepsEventWhenEnqueueFails(t *testing.T) {
	repos := newTestRepos(t)
	intake := NewIntake(repos.WebhookEvent, &fakeQueue{err: errors.New("redis down")})
	ctx := context.Background()

	receipt, err := intake.Record(ctx, []byte(createBody))
	require.NoError(t, err)
	assert.False(t, receipt.Enqueued)

	stored, err := repos.WebhookEvent.GetByID(ctx, receipt.Event.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsProcessed())
}

func TestWorkerProcessesStoredEventOnce(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{}
	intake := NewIntake(repos.WebhookEvent, queue)
	worker := NewWorker(repos.WebhookEvent, newTestProcessor(repos, newFakeDetails()), nil)
	ctx := context.Background()

	receipt, err := intake.Record(ctx, []byte(createBody))
	require.NoError(t, err)
	job := &jobqueue.Job{Payload: jobqueue.WebhookEventJobPayload{EventID: receipt.Event.ID}.ToMap()}

	require.NoError(t, worker.HandleJob(ctx, job))

	opp, err := repos.Opportunity.GetByID(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", opp.Name)

	event, err := repos.WebhookEvent.GetByID(ctx, receipt.Event.ID)
	require.NoError(t, err)
	assert.True(t, event.IsProcessed())
	assert.Equal(t, 1, event.Attempts)

	// A redelivered job is acknowledged without another attempt.
	require.NoError(t, worker.HandleJob(ctx, job))
	event, err = repos.WebhookEvent.GetByID(ctx, receipt.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, event.Attempts)
}

func TestWorkerPermanentFailures(t *testing.T) {
	repos := newTestRepos(t)
	worker := NewWorker(repos.WebhookEvent, newTestProcessor(repos, newFakeDetails()), nil)
	ctx := context.Background()

	err := worker.HandleJob(ctx, &jobqueue.Job{Payload: jobqueue.WebhookEventJobPayload{EventID: 404}.ToMap()})
	assert.True(t, jobqueue.IsPermanent(err), "missing events cannot be retried into existence")

	_, stored, err := repos.WebhookEvent.CreateIfNotExists(ctx, &models.WebhookEvent{
		EventID: "hash:noid", EventType: models.WebhookTypeOpportunityCreate, PayloadJSON: `{"type":"OpportunityCreate"}`,
	})
	require.NoError(t, err)
	err = worker.HandleJob(ctx, &jobqueue.Job{Payload: jobqueue.WebhookEventJobPayload{EventID: stored.ID}.ToMap()})
	assert.True(t, jobqueue.IsPermanent(err))
	assert.ErrorIs(t, err, ErrMissingOpportunityID)

	event, err := repos.WebhookEvent.GetByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, event.Attempts)
	assert.Contains(t, event.ProcessingError, "no opportunity id")
}

func TestWorkerDeadLetterMarksAndArchives(t *testing.T) {
	repos := newTestRepos(t)
	archive := &fakeArchive{}
	intake := NewIntake(repos.WebhookEvent, &fakeQueue{})
	worker := NewWorker(repos.WebhookEvent, newTestProcessor(repos, newFakeDetails()), archive)
	ctx := context.Background()

	receipt, err := intake.Record(ctx, []byte(createBody))
	require.NoError(t, err)

	worker.HandleDeadLetter(ctx, &jobqueue.Job{
		ID:       "job-1",
		ErrorMsg: "database unavailable",
		Payload:  jobqueue.WebhookEventJobPayload{EventID: receipt.Event.ID}.ToMap(),
	})

	event, err := repos.WebhookEvent.GetByID(ctx, receipt.Event.ID)
	require.NoError(t, err)
	assert.True(t, event.IsDeadLettered())
	assert.Equal(t, "database unavailable", event.ProcessingError)
	assert.Equal(t, []string{receipt.Event.EventID}, archive.archived)

	// Dead-lettered events are skipped until replayed.
	job := &jobqueue.Job{Payload: jobqueue.WebhookEventJobPayload{EventID: receipt.Event.ID}.ToMap()}
	require.NoError(t, worker.HandleJob(ctx, job))
	_, err = repos.Opportunity.GetByID(ctx, "opp-1")
	assert.Error(t, err)
}

func TestIntakeReplay(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{}
	intake := NewIntake(repos.WebhookEvent, queue)
	worker := NewWorker(repos.WebhookEvent, newTestProcessor(repos, newFakeDetails()), nil)
	ctx := context.Background()

	receipt, err := intake.Record(ctx, []byte(createBody))
	require.NoError(t, err)
	require.NoError(t, repos.WebhookEvent.MarkDeadLettered(ctx, receipt.Event.ID, "boom"))

	replayed, err := intake.Replay(ctx, receipt.Event.ID)
	require.NoError(t, err)
	assert.False(t, replayed.IsDeadLettered())
	assert.Equal(t, []uint{receipt.Event.ID, receipt.Event.ID}, queue.events)

	job := &jobqueue.Job{Payload: jobqueue.WebhookEventJobPayload{EventID: receipt.Event.ID}.ToMap()}
	require.NoError(t, worker.HandleJob(ctx, job))
	_, err = repos.Opportunity.GetByID(ctx, "opp-1")
	assert.NoError(t, err)

	_, err = intake.Replay(ctx, 9999)
	assert.Error(t, err)
}
