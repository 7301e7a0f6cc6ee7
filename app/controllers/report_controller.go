package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/axdashboard/axdash/internal/pkg/reporting"
)

// ReportController serves the dashboard aggregation endpoints.
type ReportController struct {
	reports *reporting.Service
}

func NewReportController(reports *reporting.Service) *ReportController {
	return &ReportController{reports: reports}
}

type reportQuery struct {
	Source    string `query:"source"`
	Start     string `query:"start"`
	End       string `query:"end"`
	FixedDate string `query:"fixedDate"`
}

func (q reportQuery) params() reporting.Params {
	return reporting.Params{
		Source: q.Source,
		WindowParams: reporting.WindowParams{
			Start:     q.Start,
			End:       q.End,
			FixedDate: q.FixedDate,
		},
	}
}

type trendQuery struct {
	Interval string `query:"interval" validate:"oneof=D W M Y"`
}

type roiQuery struct {
	Source            string  `query:"source"`
	Start             string  `query:"start"`
	End               string  `query:"end"`
	FixedDate         string  `query:"fixedDate"`
	TotalInvestedCost float64 `query:"totalInvestedCost" validate:"required,gt=0"`
}

type cacQuery struct {
	Source             string  `query:"source"`
	Start              string  `query:"start"`
	End                string  `query:"end"`
	FixedDate          string  `query:"fixedDate"`
	TotalMarketingCost float64 `query:"totalMarketingCost" validate:"required,gt=0"`
}

var (
	errInternal      = fiber.Map{"error": "Internal server error"}
	errInternalTitle = fiber.Map{"error": "Internal Server Error"}
)

// HandleLeads GET /opportunities/plastic-leads
func (rc *ReportController) HandleLeads(c *fiber.Ctx) error {
	var q reportQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, reporting.MsgInvalidRange)
	}
	report, err := rc.reports.Funnel(c.UserContext(), q.params())
	if err != nil {
		return renderReportError(c, "funnel", err, fiber.Map{"error": "Failed to generate surgery metrics"})
	}
	return c.JSON(report)
}

// HandleTrend GET /opportunities/plastic-getOpportunityTrend
func (rc *ReportController) HandleTrend(c *fiber.Ctx) error {
	q := trendQuery{Interval: string(reporting.IntervalYear)}
	if err := bindQuery(c, &q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, reporting.MsgInvalidInterval)
	}
	report, err := rc.reports.Trend(c.UserContext(), q.Interval)
	if err != nil {
		return renderReportError(c, "trend", err, fiber.Map{
			"error":   "Failed to generate opportunity trend data",
			"message": err.Error(),
		})
	}
	return c.JSON(report)
}

// HandleTreatments GET /opportunities/plastic-treatments
func (rc *ReportController) HandleTreatments(c *fiber.Ctx) error {
	var q reportQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, reporting.MsgInvalidRange)
	}
	rows, err := rc.reports.Treatments(c.UserContext(), q.params())
	if err != nil {
		return renderReportError(c, "treatments", err, errInternalTitle)
	}
	return c.JSON(rows)
}

// HandleRevenue GET /opportunities/plastic-totalRevenue
func (rc *ReportController) HandleRevenue(c *fiber.Ctx) error {
	var q reportQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, reporting.MsgInvalidRange)
	}
	report, err := rc.reports.Revenue(c.UserContext(), q.params())
	if err != nil {
		return renderReportError(c, "revenue", err, errInternal)
	}
	return c.JSON(report)
}

// HandleNurture GET /opportunities/plastic-automatedNurtureConversionRate
func (rc *ReportController) HandleNurture(c *fiber.Ctx) error {
	var q reportQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, reporting.MsgInvalidRange)
	}
	report, err := rc.reports.Nurture(c.UserContext(), q.params())
	if err != nil {
		return renderReportError(c, "nurture", err, errInternal)
	}
	return c.JSON(report)
}

// HandleMarketingROI GET /opportunities/plastic-marketingROI
func (rc *ReportController) HandleMarketingROI(c *fiber.Ctx) error {
	var q roiQuery
	if err := bindQuery(c, &q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, reporting.MsgInvalidInvestment)
	}
	p := reportQuery{Source: q.Source, Start: q.Start, End: q.End, FixedDate: q.FixedDate}.params()
	report, err := rc.reports.ROI(c.UserContext(), p, q.TotalInvestedCost)
	if err != nil {
		return renderReportError(c, "roi", err, errInternal)
	}
	return c.JSON(report)
}

// HandleAcquisitionCost GET /opportunities/plastic-customerAcquisitionCost
func (rc *ReportController) HandleAcquisitionCost(c *fiber.Ctx) error {
	var q cacQuery
	if err := bindQuery(c, &q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, reporting.MsgInvalidMarketing)
	}
	p := reportQuery{Source: q.Source, Start: q.Start, End: q.End, FixedDate: q.FixedDate}.params()
	report, err := rc.reports.CAC(c.UserContext(), p, q.TotalMarketingCost)
	if err != nil {
		return renderReportError(c, "cac", err, errInternal)
	}
	return c.JSON(report)
}
