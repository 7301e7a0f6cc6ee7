package webhook

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
)

// PipelineLister reads the pipeline definitions of a location.
type PipelineLister interface {
	ListPipelines(ctx context.Context, accessToken, locationID string) ([]leadconnector.Pipeline, error)
}

// StageSync loads stage reference data from the provider into the stage store.
type StageSync struct {
	pipelines PipelineLister
	creds     leadconnector.Credentials
	stages    repository.StageRepository
}

func NewStageSync(pipelines PipelineLister, creds leadconnector.Credentials, stages repository.StageRepository) *StageSync {
	return &StageSync{pipelines: pipelines, creds: creds, stages: stages}
}

// Sync upserts every stage of every pipeline of locationID and returns how
// many were written. Tags are resolved from the stage names on write.
func (s *StageSync) Sync(ctx context.Context, locationID string) (int, error) {
	pipelines, err := leadconnector.WithRefresh(ctx, s.creds, locationID, func(token string) ([]leadconnector.Pipeline, error) {
		return s.pipelines.ListPipelines(ctx, token, locationID)
	})
	if err != nil {
		return 0, fmt.Errorf("list pipelines: %w", err)
	}

	stages := StagesFromPipelines(pipelines)
	if len(stages) == 0 {
		return 0, nil
	}
	if err := s.stages.UpsertMany(ctx, stages); err != nil {
		return 0, fmt.Errorf("store stages: %w", err)
	}
	log.Infof("[Webhook] Synced %d stages from %d pipelines for %s", len(stages), len(pipelines), locationID)
	return len(stages), nil
}

// StagesFromPipelines flattens provider pipelines into stage rows. Display
// flags absent from the payload default to true.
func StagesFromPipelines(pipelines []leadconnector.Pipeline) []models.Stage {
	out := make([]models.Stage, 0)
	for _, p := range pipelines {
		for _, st := range p.Stages {
			if st.ID == "" {
				continue
			}
			out = append(out, models.Stage{
				ID:             st.ID,
				Name:           st.Name,
				PipelineID:     p.ID,
				OriginID:       st.OriginID,
				Position:       st.Position,
				ShowInFunnel:   boolOr(st.ShowInFunnel, true),
				ShowInPieChart: boolOr(st.ShowInPieChart, true),
			})
		}
	}
	return out
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
