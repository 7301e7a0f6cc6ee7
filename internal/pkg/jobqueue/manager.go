package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/env"
	"github.com/axdashboard/axdash/internal/pkg/metrics"
)

const staleBatchSize = 100

// Manager manages the global job queue and background tasks
type Manager struct {
	queue       *Queue
	events      repository.WebhookEventRepository
	staleAfter  time.Duration
	staleTicker *time.Ticker
	gaugeTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager wires a queue to the webhook event log used for crash recovery
func NewManager(queue *Queue, events repository.WebhookEventRepository) *Manager {
	return &Manager{
		queue:      queue,
		events:     events,
		staleAfter: env.GetEnvDuration("WEBHOOK_STALE_AFTER", 10*time.Minute),
		stopCh:     make(chan struct{}),
	}
}

// InitializeManager builds the global manager from the environment. Later calls
// return the first instance.
func InitializeManager(client *redis.Client, events repository.WebhookEventRepository) *Manager {
	managerOnce.Do(func() {
		queue := NewQueue(client, env.GetEnvInt("WEBHOOK_WORKERS", 4)).WithRetryPolicy(
			env.GetEnvInt("WEBHOOK_MAX_ATTEMPTS", DefaultMaxRetries),
			env.GetEnvDuration("WEBHOOK_RETRY_BASE", DefaultBaseBackoff),
			env.GetEnvDuration("WEBHOOK_RETRY_MAX", DefaultMaxBackoff),
		)
		globalManager = NewManager(queue, events)
	})
	return globalManager
}

// GetManager returns the global job queue manager, nil before InitializeManager
func GetManager() *Manager {
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.staleTicker = time.NewTicker(env.GetEnvDuration("WEBHOOK_STALE_INTERVAL", 2*time.Minute))
	m.wg.Add(1)
	go m.staleWorker(m.stopCh, m.staleTicker)

	m.gaugeTicker = time.NewTicker(15 * time.Second)
	m.wg.Add(1)
	go m.gaugeWorker(m.stopCh, m.gaugeTicker)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.staleTicker != nil {
		m.staleTicker.Stop()
	}
	if m.gaugeTicker != nil {
		m.gaugeTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// staleWorker re-enqueues events that were stored but never finished, e.g.
// because the process died between persisting and enqueueing.
func (m *Manager) staleWorker(stop <-chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started stale event worker (stale after %s)", m.staleAfter)

	for {
		select {
		case <-stop:
			log.Info("[JobQueue Manager] Stale event worker stopping")
			return
		case <-ticker.C:
			if n, err := m.RequeueStale(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Error requeueing stale events: %v", err)
			} else if n > 0 {
				log.Infof("[JobQueue Manager] Requeued %d stale webhook events", n)
			}
		}
	}
}

// RequeueStale enqueues one job for every unfinished event untouched for staleAfter.
func (m *Manager) RequeueStale(ctx context.Context) (int, error) {
	if m.events == nil {
		return 0, nil
	}
	stale, err := m.events.ListStale(ctx, time.Now().Add(-m.staleAfter), staleBatchSize)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for i := range stale {
		ev := &stale[i]
		if _, err := m.queue.EnqueueWebhookEvent(ctx, ev.ID, ev.EventType); err != nil {
			return requeued, err
		}
		// Touch the row so the next sweep does not pick it up again right away.
		if err := m.events.Touch(ctx, ev.ID); err != nil {
			log.Warnf("[JobQueue Manager] Could not mark event %d as requeued: %v", ev.ID, err)
		}
		requeued++
	}
	return requeued, nil
}

func (m *Manager) gaugeWorker(stop <-chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.reportDepths(context.Background())
		}
	}
}

func (m *Manager) reportDepths(ctx context.Context) {
	snap, err := m.queue.Snapshot(ctx)
	if err != nil {
		log.Debugf("[JobQueue Manager] Queue snapshot failed: %v", err)
		return
	}
	metrics.QueueJobs.WithLabelValues("pending").Set(float64(snap.Pending))
	metrics.QueueJobs.WithLabelValues("processing").Set(float64(snap.Processing))
	metrics.QueueJobs.WithLabelValues("delayed").Set(float64(snap.Delayed))
	metrics.QueueJobs.WithLabelValues("dead_lettered").Set(float64(snap.DeadLettered))
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
