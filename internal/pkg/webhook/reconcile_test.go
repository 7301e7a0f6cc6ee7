package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
)

func TestReconcilerSweep(t *testing.T) {
	repos := newTestRepos(t)
	details := newFakeDetails()
	details.results["opp-ok"] = &leadconnector.Opportunity{
		ID:           "opp-ok",
		Attributions: []leadconnector.Attribution{{UTMSessionSource: "Paid Social", IsFirst: true}},
		CustomFields: []leadconnector.CustomField{{ID: DefaultTreatmentInterestFieldID, FieldValueString: "Facelift"}},
	}
	details.results["opp-unknown"] = &leadconnector.Opportunity{ID: "opp-unknown"}
	details.errs["opp-down"] = errProviderDown
	ctx := context.Background()

	require.NoError(t, repos.Opportunity.Upsert(ctx, &models.Opportunity{ID: "opp-ok", LocationID: "loc-1", DateAdded: fixedNow}))
	require.NoError(t, repos.Opportunity.Upsert(ctx, &models.Opportunity{ID: "opp-down", LocationID: "loc-1", DateAdded: fixedNow}))

	for _, m := range []models.PendingWebhook{
		{OpportunityID: "opp-ok", LocationID: "loc-1"},
		{OpportunityID: "opp-gone"},
		{OpportunityID: "opp-unknown", LocationID: "loc-1"},
		{OpportunityID: "opp-down", LocationID: "loc-1"},
		{OpportunityID: "opp-elsewhere", LocationID: "loc-2"},
	} {
		m := m
		require.NoError(t, repos.PendingWebhook.Create(ctx, &m))
	}

	r := NewReconciler(repos.PendingWebhook, repos.Opportunity, details, "")
	res, err := r.Sweep(ctx, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 1, Skipped: 2, Failed: 1}, res)

	opp, err := repos.Opportunity.GetByID(ctx, "opp-ok")
	require.NoError(t, err)
	require.NotNil(t, opp.TreatmentInterest)
	assert.Equal(t, "Facelift", *opp.TreatmentInterest)
	require.Len(t, opp.Attributions, 1)

	_, err = repos.Opportunity.GetByID(ctx, "opp-unknown")
	assert.Error(t, err, "the sweep never creates records")

	left, err := repos.PendingWebhook.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "opp-down", left[0].OpportunityID)
	assert.Contains(t, left[0].LastError, "provider down")
	assert.Equal(t, "opp-elsewhere", left[1].OpportunityID)

	assert.NotContains(t, details.calls, "loc-2/opp-elsewhere")
	assert.Contains(t, details.calls, "loc-1/opp-gone")
}

func TestReconcilerSweepStopsOnCanceledContext(t *testing.T) {
	repos := newTestRepos(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, repos.PendingWebhook.Create(ctx, &models.PendingWebhook{OpportunityID: "opp-1", LocationID: "loc-1"}))
	cancel()

	r := NewReconciler(repos.PendingWebhook, repos.Opportunity, newFakeDetails(), "")
	_, err := r.Sweep(ctx, "loc-1")
	assert.ErrorIs(t, err, context.Canceled)
}

// fakePipelines rejects the "stale" token like the provider does with an expired one.
type fakePipelines struct {
	mu        sync.Mutex
	pipelines []leadconnector.Pipeline
	tokens    []string
}

func (f *fakePipelines) ListPipelines(ctx context.Context, accessToken, locationID string) ([]leadconnector.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	if accessToken == "stale" {
		return nil, leadconnector.ErrUnauthorized
	}
	return f.pipelines, nil
}

func boolPtr(b bool) *bool { return &b }

func testPipelines() []leadconnector.Pipeline {
	pos := 2
	return []leadconnector.Pipeline{{
		ID:   "p-1",
		Name: "Surgical",
		Stages: []leadconnector.Stage{
			{ID: "s-lead", Name: "Lead"},
			{ID: "s-consult", Name: "Consult Booked", Position: &pos, ShowInFunnel: boolPtr(false)},
			{ID: "", Name: "Broken"},
		},
	}}
}

func TestStagesFromPipelines(t *testing.T) {
	stages := StagesFromPipelines(testPipelines())
	require.Len(t, stages, 2)

	assert.Equal(t, "s-lead", stages[0].ID)
	assert.Equal(t, "p-1", stages[0].PipelineID)
	assert.True(t, stages[0].ShowInFunnel)
	assert.True(t, stages[0].ShowInPieChart)

	assert.False(t, stages[1].ShowInFunnel)
	assert.True(t, stages[1].ShowInPieChart)
	require.NotNil(t, stages[1].Position)
	assert.Equal(t, 2, *stages[1].Position)

	assert.Empty(t, StagesFromPipelines(nil))
}

func TestStageSyncRefreshesTokenOnce(t *testing.T) {
	repos := newTestRepos(t)
	lister := &fakePipelines{pipelines: testPipelines()}
	creds := &fakeCredentials{}
	stageSync := NewStageSync(lister, creds, repos.Stage)

	n, err := stageSync.Sync(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"stale", "fresh"}, lister.tokens)

	stages, err := repos.Stage.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stages, 2)
	for _, st := range stages {
		if st.ID == "s-consult" {
			assert.True(t, st.HasTag(models.StageTagRevenue), "tags are resolved from the name")
		}
	}
}

func TestStageSyncPropagatesCredentialErrors(t *testing.T) {
	repos := newTestRepos(t)
	creds := &fakeCredentials{err: errors.New("no credential")}
	stageSync := NewStageSync(&fakePipelines{}, creds, repos.Stage)

	_, err := stageSync.Sync(context.Background(), "loc-1")
	assert.ErrorContains(t, err, "no credential")
}

func TestBackfillRunsSyncAndSweep(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	details := newFakeDetails()
	details.results["opp-1"] = &leadconnector.Opportunity{ID: "opp-1"}
	require.NoError(t, repos.Opportunity.Upsert(ctx, &models.Opportunity{ID: "opp-1", LocationID: "loc-1", DateAdded: fixedNow}))
	require.NoError(t, repos.PendingWebhook.Create(ctx, &models.PendingWebhook{OpportunityID: "opp-1", LocationID: "loc-1"}))

	stageSync := NewStageSync(&fakePipelines{pipelines: testPipelines()}, &fakeCredentials{}, repos.Stage)
	reconciler := NewReconciler(repos.PendingWebhook, repos.Opportunity, details, "")

	Backfill(ctx, "loc-1", stageSync, reconciler)

	stages, err := repos.Stage.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stages, 2)
	left, err := repos.PendingWebhook.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)

	// Missing collaborators are tolerated.
	Backfill(ctx, "loc-1", nil, nil)
}
