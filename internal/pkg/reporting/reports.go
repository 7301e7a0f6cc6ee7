package reporting

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/axdashboard/axdash/app/models"
)

// TreatmentRow is one slice of the treatment breakdown.
type TreatmentRow struct {
	Category   string `json:"category"`
	Value      int    `json:"value"`
	Percentage string `json:"percentage"`
}

// BuildTreatments counts opps per treatment value. treatments is the distinct
// value set of the whole store; opps is the filtered set with a treatment.
// Rows are ordered by count, largest first.
func BuildTreatments(treatments []string, opps []models.Opportunity) []TreatmentRow {
	counts := make(map[string]int, len(treatments))
	for i := range opps {
		if opps[i].TreatmentInterest != nil {
			counts[*opps[i].TreatmentInterest]++
		}
	}

	rows := make([]TreatmentRow, 0, len(treatments))
	for _, t := range treatments {
		if t == "" {
			continue
		}
		rows = append(rows, TreatmentRow{
			Category:   t,
			Value:      counts[t],
			Percentage: CalculatePercentage(counts[t], len(opps)),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Value > rows[j].Value
	})
	return rows
}

// RevenueSplit sums monetary values by whether the record was created inside the window.
type RevenueSplit struct {
	New           float64
	Existing      float64
	NewCount      int
	ExistingCount int
}

func (s RevenueSplit) Total() float64 {
	return s.New + s.Existing
}

func SplitRevenue(opps []models.Opportunity, w Window) RevenueSplit {
	var s RevenueSplit
	for i := range opps {
		if w.Contains(opps[i].DateAdded) {
			s.New += opps[i].MonetaryValue
			s.NewCount++
		} else {
			s.Existing += opps[i].MonetaryValue
			s.ExistingCount++
		}
	}
	return s
}

type RevenueReport struct {
	TotalRevenue    string `json:"totalRevenue"`
	NewRevenue      string `json:"newRevenue"`
	ExistingRevenue string `json:"existingRevenue"`
}

// BuildRevenue renders whole-dollar amounts. The total is the sum of the two
// truncated parts so the widgets always add up.
func BuildRevenue(s RevenueSplit) RevenueReport {
	newDollars := math.Trunc(s.New)
	existingDollars := math.Trunc(s.Existing)
	return RevenueReport{
		TotalRevenue:    formatDollars(newDollars + existingDollars),
		NewRevenue:      formatDollars(newDollars),
		ExistingRevenue: formatDollars(existingDollars),
	}
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type NurtureReport struct {
	TotalReplied   int       `json:"totalReplied"`
	TotalConverted int       `json:"totalConverted"`
	ConversionRate int       `json:"conversionRate"`
	Display        string    `json:"display"`
	DateRange      DateRange `json:"dateRange"`
}

func BuildNurture(replied, converted int, w Window) NurtureReport {
	return NurtureReport{
		TotalReplied:   replied,
		TotalConverted: converted,
		ConversionRate: percent(converted, replied),
		Display:        fmt.Sprintf("%d out of %d leads converted", converted, replied),
		DateRange:      DateRange{Start: w.Start.UTC(), End: w.End.UTC()},
	}
}

type ROIReport struct {
	Total    string `json:"total"`
	New      string `json:"new"`
	Existing string `json:"existing"`
}

// CalculateROI returns round((revenue-investment)/investment*100), or 0 when
// nothing was invested.
func CalculateROI(revenue, investment float64) int {
	if investment <= 0 {
		return 0
	}
	return roundHalfUp((revenue - investment) / investment * 100)
}

// BuildROI allocates the investment by revenue share and clamps negative ROI to 0%.
func BuildROI(s RevenueSplit, invested float64) ROIReport {
	total := s.Total()
	ratioBase := total
	if ratioBase == 0 {
		ratioBase = 1
	}
	newInvestment := invested * (s.New / ratioBase)
	existingInvestment := invested * (s.Existing / ratioBase)

	return ROIReport{
		Total:    clampedPercent(CalculateROI(total, invested)),
		New:      clampedPercent(CalculateROI(s.New, newInvestment)),
		Existing: clampedPercent(CalculateROI(s.Existing, existingInvestment)),
	}
}

func clampedPercent(v int) string {
	if v < 0 {
		v = 0
	}
	return fmt.Sprintf("%d%%", v)
}

type CACBreakdown struct {
	NewAppointmentsCount      int `json:"newAppointmentsCount"`
	ExistingAppointmentsCount int `json:"existingAppointmentsCount"`
}

type CACReport struct {
	Total     string       `json:"total"`
	New       string       `json:"new"`
	Existing  string       `json:"existing"`
	Breakdown CACBreakdown `json:"breakdown"`
}

// BuildCAC allocates the marketing cost by appointment share. Without any
// appointments the cost is split evenly.
func BuildCAC(newCount, existingCount int, cost float64) CACReport {
	newRatio, existingRatio := 0.5, 0.5
	if total := newCount + existingCount; total > 0 {
		newRatio = float64(newCount) / float64(total)
		existingRatio = float64(existingCount) / float64(total)
	}
	return CACReport{
		Total:    FormatCurrency(cost),
		New:      FormatCurrency(cost * newRatio),
		Existing: FormatCurrency(cost * existingRatio),
		Breakdown: CACBreakdown{
			NewAppointmentsCount:      newCount,
			ExistingAppointmentsCount: existingCount,
		},
	}
}
