package webhook

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
)

const defaultSweepBatch = 500

// SweepResult counts what one reconciliation pass did with the pending markers.
type SweepResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Reconciler backfills opportunities whose details could not be fetched when
// their update arrived.
type Reconciler struct {
	pending          repository.PendingWebhookRepository
	opportunities    repository.OpportunityRepository
	details          DetailFetcher
	treatmentFieldID string
	batch            int
}

func NewReconciler(pending repository.PendingWebhookRepository, opportunities repository.OpportunityRepository, details DetailFetcher, treatmentFieldID string) *Reconciler {
	if treatmentFieldID == "" {
		treatmentFieldID = DefaultTreatmentInterestFieldID
	}
	return &Reconciler{
		pending:          pending,
		opportunities:    opportunities,
		details:          details,
		treatmentFieldID: treatmentFieldID,
		batch:            defaultSweepBatch,
	}
}

// Sweep resolves the unprocessed markers of locationID. Markers without a
// location are attributed to it; markers of other locations wait for their own
// login. Only records already in the mirror are updated. A failing marker is
// logged and recorded and the sweep moves on.
func (r *Reconciler) Sweep(ctx context.Context, locationID string) (SweepResult, error) {
	var res SweepResult
	markers, err := r.pending.ListUnprocessed(ctx, r.batch)
	if err != nil {
		return res, err
	}

	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		loc := m.LocationID
		if loc == "" {
			loc = locationID
		}
		if loc != locationID {
			continue
		}

		details, err := r.details.FetchOpportunity(ctx, loc, m.OpportunityID)
		if errors.Is(err, leadconnector.ErrNotFound) {
			r.markProcessed(ctx, m.ID)
			res.Skipped++
			continue
		}
		if err != nil {
			r.recordFailure(ctx, m.ID, m.OpportunityID, err)
			res.Failed++
			continue
		}

		opp, err := r.opportunities.GetByID(ctx, m.OpportunityID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.markProcessed(ctx, m.ID)
			res.Skipped++
			continue
		}
		if err != nil {
			r.recordFailure(ctx, m.ID, m.OpportunityID, err)
			res.Failed++
			continue
		}

		Enrich(opp, details, r.treatmentFieldID)
		if err := r.opportunities.Upsert(ctx, opp); err != nil {
			r.recordFailure(ctx, m.ID, m.OpportunityID, err)
			res.Failed++
			continue
		}
		r.markProcessed(ctx, m.ID)
		res.Processed++
	}

	log.Infof("[Webhook] Reconciliation for %s: processed=%d skipped=%d failed=%d", locationID, res.Processed, res.Skipped, res.Failed)
	return res, nil
}

func (r *Reconciler) markProcessed(ctx context.Context, id uint) {
	if err := r.pending.MarkProcessed(ctx, id); err != nil {
		log.Errorf("[Webhook] Could not mark pending webhook %d processed: %v", id, err)
	}
}

func (r *Reconciler) recordFailure(ctx context.Context, id uint, opportunityID string, cause error) {
	log.Errorf("[Webhook] Error processing pending opportunity %s: %v", opportunityID, cause)
	if err := r.pending.RecordFailure(ctx, id, cause.Error()); err != nil {
		log.Errorf("[Webhook] Could not record failure on pending webhook %d: %v", id, err)
	}
}

// Backfill runs the post-login work for a location: stage sync and the
// reconciliation sweep, concurrently. Failures are logged, never returned, so a
// login always completes.
func Backfill(ctx context.Context, locationID string, stages *StageSync, reconciler *Reconciler) {
	var g errgroup.Group
	if stages != nil {
		g.Go(func() error {
			if _, err := stages.Sync(ctx, locationID); err != nil {
				log.Errorf("[Webhook] Stage sync for %s failed: %v", locationID, err)
			}
			return nil
		})
	}
	if reconciler != nil {
		g.Go(func() error {
			if _, err := reconciler.Sweep(ctx, locationID); err != nil {
				log.Errorf("[Webhook] Reconciliation for %s failed: %v", locationID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
