package reporting

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/metrics"
	"github.com/axdashboard/axdash/internal/pkg/sourcefilter"
)

// Params are the shared query inputs of the dashboard reports.
type Params struct {
	Source string
	WindowParams
}

// Service computes dashboard reports from the opportunity mirror.
type Service struct {
	opportunities repository.OpportunityRepository
	stages        repository.StageRepository

	now      func() time.Time
	location *time.Location
}

// NewService creates a reporting service that resolves bare dates in the server's local zone.
func NewService(opportunities repository.OpportunityRepository, stages repository.StageRepository) *Service {
	return &Service{
		opportunities: opportunities,
		stages:        stages,
		now:           time.Now,
		location:      time.Local,
	}
}

// WithClock overrides the clock and zone; used by tests.
func (s *Service) WithClock(now func() time.Time, loc *time.Location) *Service {
	s.now = now
	s.location = loc
	return s
}

func (s *Service) window(p WindowParams) (Window, error) {
	return ResolveWindow(p, s.now(), s.location)
}

func timeRange(w Window) *repository.TimeRange {
	return &repository.TimeRange{Start: w.Start, End: w.End}
}

// Funnel counts leads that were created or changed stage inside the window.
func (s *Service) Funnel(ctx context.Context, p Params) (report *FunnelReport, err error) {
	defer observe("funnel", &err)

	w, err := s.window(p.WindowParams)
	if err != nil {
		return nil, err
	}

	var stages []models.Stage
	var opps []models.Opportunity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stages, err = s.stages.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		opps, err = s.opportunities.Find(gctx, repository.OpportunityQuery{
			CreatedOrStageChanged: timeRange(w),
			Source:                sourcefilter.Build(p.Source),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debugf("[Reporting] Funnel over %d opportunities and %d stages", len(opps), len(stages))
	out := BuildFunnel(stages, opps, w)
	return &out, nil
}

// Trend buckets leads created during the lookback of interval.
func (s *Service) Trend(ctx context.Context, interval string) (report *TrendReport, err error) {
	defer observe("trend", &err)

	iv, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.location)

	var stages []models.Stage
	var opps []models.Opportunity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stages, err = s.stages.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		opps, err = s.opportunities.Find(gctx, repository.OpportunityQuery{
			DateAdded: &repository.TimeRange{Start: TrendStart(iv, now), End: now},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := BuildTrend(iv, now, stages, opps)
	return &out, nil
}

// Treatments breaks leads down by treatment interest. The date filter applies
// only when both start and end are given.
func (s *Service) Treatments(ctx context.Context, p Params) (rows []TreatmentRow, err error) {
	defer observe("treatments", &err)

	q := repository.OpportunityQuery{
		WithTreatment: true,
		Source:        sourcefilter.Build(p.Source),
	}
	if strings.TrimSpace(p.Start) != "" && strings.TrimSpace(p.End) != "" {
		w, err := s.window(WindowParams{Start: p.Start, End: p.End})
		if err != nil {
			return nil, err
		}
		q.CreatedOrStageChanged = timeRange(w)
	}

	var treatments []string
	var opps []models.Opportunity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		treatments, err = s.opportunities.DistinctTreatmentInterests(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		opps, err = s.opportunities.Find(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return BuildTreatments(treatments, opps), nil
}

// revenueSplit loads opportunities that entered a revenue stage inside the window.
func (s *Service) revenueSplit(ctx context.Context, p Params, w Window) (RevenueSplit, error) {
	stages, err := s.stages.List(ctx)
	if err != nil {
		return RevenueSplit{}, err
	}
	ids := models.StageIDsWithTag(stages, models.StageTagRevenue)
	if len(ids) == 0 {
		return RevenueSplit{}, missingReference(MsgNoRevenueStages)
	}

	opps, err := s.opportunities.Find(ctx, repository.OpportunityQuery{
		StageChanged: timeRange(w),
		StageIDs:     ids,
		Source:       sourcefilter.Build(p.Source),
	})
	if err != nil {
		return RevenueSplit{}, err
	}
	return SplitRevenue(opps, w), nil
}

func (s *Service) Revenue(ctx context.Context, p Params) (report *RevenueReport, err error) {
	defer observe("revenue", &err)

	w, err := s.window(p.WindowParams)
	if err != nil {
		return nil, err
	}
	split, err := s.revenueSplit(ctx, p, w)
	if err != nil {
		return nil, err
	}
	out := BuildRevenue(split)
	return &out, nil
}

// Nurture compares leads that replied inside the window with all converted leads.
func (s *Service) Nurture(ctx context.Context, p Params) (report *NurtureReport, err error) {
	defer observe("nurture", &err)

	w, err := s.window(p.WindowParams)
	if err != nil {
		return nil, err
	}

	stages, err := s.stages.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, missingReference(MsgNoStagesInDatabase)
	}
	replied := models.StageIDsWithTag(stages, models.StageTagReplied)
	if len(replied) == 0 {
		return nil, missingReference(MsgNoRepliedStage)
	}
	patient := models.StageIDsWithTag(stages, models.StageTagPatient)
	if len(patient) == 0 {
		return nil, missingReference(MsgNoPatientStage)
	}

	source := sourcefilter.Build(p.Source)
	var repliedOpps, convertedOpps []models.Opportunity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		repliedOpps, err = s.opportunities.Find(gctx, repository.OpportunityQuery{
			StageChanged: timeRange(w),
			StageIDs:     replied,
			Source:       source,
		})
		return err
	})
	g.Go(func() error {
		var err error
		convertedOpps, err = s.opportunities.Find(gctx, repository.OpportunityQuery{
			StageIDs: patient,
			OrStatus: models.OpportunityStatusWon,
			Source:   source,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := BuildNurture(len(repliedOpps), len(convertedOpps), w)
	return &out, nil
}

func (s *Service) ROI(ctx context.Context, p Params, totalInvestedCost float64) (report *ROIReport, err error) {
	defer observe("roi", &err)

	if !positive(totalInvestedCost) {
		return nil, validationError(MsgInvalidInvestment)
	}
	w, err := s.window(p.WindowParams)
	if err != nil {
		return nil, err
	}
	split, err := s.revenueSplit(ctx, p, w)
	if err != nil {
		return nil, err
	}
	out := BuildROI(split, totalInvestedCost)
	return &out, nil
}

// CAC allocates marketing cost across appointments made inside the window.
func (s *Service) CAC(ctx context.Context, p Params, totalMarketingCost float64) (report *CACReport, err error) {
	defer observe("cac", &err)

	if !positive(totalMarketingCost) {
		return nil, validationError(MsgInvalidMarketing)
	}
	w, err := s.window(p.WindowParams)
	if err != nil {
		return nil, err
	}

	stages, err := s.stages.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, missingReference(MsgNoStages)
	}
	ids := models.StageIDsWithTag(stages, models.StageTagAppointment)
	if len(ids) == 0 {
		return nil, missingReference(MsgNoAppointmentStage)
	}

	opps, err := s.opportunities.Find(ctx, repository.OpportunityQuery{
		StageChanged: timeRange(w),
		StageIDs:     ids,
		Source:       sourcefilter.Build(p.Source),
	})
	if err != nil {
		return nil, err
	}

	split := SplitRevenue(opps, w)
	out := BuildCAC(split.NewCount, split.ExistingCount, totalMarketingCost)
	return &out, nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func observe(report string, err *error) {
	outcome := "success"
	if *err != nil {
		var re *Error
		if errors.As(*err, &re) && re.Kind == KindValidation {
			outcome = "invalid"
		} else {
			outcome = "error"
			log.Errorf("[Reporting] %s report failed: %v", report, *err)
		}
	}
	metrics.ReportsTotal.WithLabelValues(report, outcome).Inc()
}
