package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(nil, tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
			assert.Equal(t, DefaultMaxRetries, queue.maxRetries)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_delayed", JobDelayedKey)
	assert.Equal(t, "job_dead_letter", JobDeadLetterKey)
	assert.Equal(t, "job_stats", JobStatsKey)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestWithRetryPolicy(t *testing.T) {
	q := NewQueue(nil, 1).WithRetryPolicy(7, time.Second, time.Minute)
	assert.Equal(t, 7, q.maxRetries)
	assert.Equal(t, time.Second, q.baseBackoff)
	assert.Equal(t, time.Minute, q.maxBackoff)

	q.WithRetryPolicy(0, 0, 0)
	assert.Equal(t, 7, q.maxRetries, "non-positive values keep the current setting")
	assert.Equal(t, time.Second, q.baseBackoff)
}

func newTestQueue(t *testing.T, client *redis.Client) *Queue {
	t.Helper()
	q := NewQueue(client, 1).WithRetryPolicy(3, 10*time.Millisecond, 20*time.Millisecond)
	q.promoteInterval = 10 * time.Millisecond
	t.Cleanup(q.Stop)
	return q
}

func TestQueueRunsRegisteredHandler(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := newTestQueue(t, client)
	ctx := context.Background()

	seen := make(chan *WebhookEventJobPayload, 1)
	q.Register(JobTypeWebhookEvent, func(ctx context.Context, job *Job) error {
		payload, err := WebhookEventJobPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		seen <- payload
		return nil
	})
	q.Start()

	job, err := q.EnqueueWebhookEvent(ctx, 9, "OpportunityCreate")
	require.NoError(t, err)
	assert.Equal(t, 3, job.MaxRetries)

	select {
	case payload := <-seen:
		assert.Equal(t, uint(9), payload.EventID)
		assert.Equal(t, "OpportunityCreate", payload.EventType)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	require.Eventually(t, func() bool {
		stats, err := q.GetJobStats(ctx)
		return err == nil && stats[JobStatusCompleted] == 1
	}, 5*time.Second, 20*time.Millisecond)

	_, err = q.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, redis.Nil, "completed jobs are removed")
}

func TestQueueRetriesThenDeadLetters(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := newTestQueue(t, client)
	ctx := context.Background()

	var attempts int32
	q.Register(JobTypeWebhookEvent, func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("provider unavailable")
	})
	dead := make(chan *Job, 1)
	q.OnDeadLetter(func(ctx context.Context, job *Job) {
		dead <- job
	})
	q.Start()

	job, err := q.EnqueueWebhookEvent(ctx, 1, "OpportunityUpdate")
	require.NoError(t, err)

	select {
	case got := <-dead:
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, JobStatusDeadLettered, got.Status)
		assert.Equal(t, 3, got.RetryCount)
		assert.Equal(t, "provider unavailable", got.ErrorMsg)
	case <-time.After(10 * time.Second):
		t.Fatal("job was not dead-lettered")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	size, err := q.GetDeadLetterSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusDeadLettered, stored.Status)
}

func TestQueuePermanentErrorSkipsRetries(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := newTestQueue(t, client)
	ctx := context.Background()

	var attempts int32
	q.Register(JobTypeWebhookEvent, func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&attempts, 1)
		return Permanent(errors.New("malformed payload"))
	})
	dead := make(chan *Job, 1)
	q.OnDeadLetter(func(ctx context.Context, job *Job) { dead <- job })
	q.Start()

	_, err := q.EnqueueWebhookEvent(ctx, 2, "OpportunityUpdate")
	require.NoError(t, err)

	select {
	case got := <-dead:
		assert.Equal(t, 1, got.RetryCount)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not dead-lettered")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestQueuePromoteDue(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueue(client, 1)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, client.ZAdd(ctx, JobDelayedKey,
		redis.Z{Score: float64(now.Add(-time.Second).UnixMilli()), Member: "due"},
		redis.Z{Score: float64(now.Add(time.Hour).UnixMilli()), Member: "later"},
	).Err())

	n, err := q.promoteDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, pending)

	delayed, err := q.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)
}

func TestQueueRecoverStuck(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueue(client, 1)
	ctx := context.Background()

	started := time.Now().Add(-time.Hour)
	stuck := &Job{ID: "stuck", Type: JobTypeWebhookEvent, Status: JobStatusProcessing, ProcessedAt: &started, UpdatedAt: started}
	fresh := time.Now()
	busy := &Job{ID: "busy", Type: JobTypeWebhookEvent, Status: JobStatusProcessing, ProcessedAt: &fresh, UpdatedAt: fresh}
	for _, j := range []*Job{stuck, busy} {
		data, err := json.Marshal(j)
		require.NoError(t, err)
		require.NoError(t, client.Set(ctx, JobKeyPrefix+j.ID, data, JobTTL).Err())
		require.NoError(t, client.LPush(ctx, JobProcessingKey, j.ID).Err())
	}
	require.NoError(t, client.LPush(ctx, JobProcessingKey, "orphan").Err())

	recovered := q.recoverStuck(ctx, time.Now(), 10*time.Minute)
	assert.Equal(t, 1, recovered)

	processing, err := client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"busy"}, processing)

	pending, err := client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck"}, pending)

	job, err := q.GetJob(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
}

func TestQueueSnapshot(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueue(client, 1)
	ctx := context.Background()

	_, err := q.EnqueueWebhookEvent(ctx, 1, "OpportunityCreate")
	require.NoError(t, err)
	_, err = q.EnqueueWebhookEvent(ctx, 2, "OpportunityDelete")
	require.NoError(t, err)

	snap, err := q.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Pending)
	assert.Equal(t, int64(0), snap.Processing)
	assert.Equal(t, int64(2), snap.Totals[JobStatusPending])
}
