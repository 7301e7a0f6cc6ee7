package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/axdashboard/axdash/app/models"
)

// Interval selects the lookback and bucket size of the trend series.
type Interval string

const (
	IntervalDay   Interval = "D"
	IntervalWeek  Interval = "W"
	IntervalMonth Interval = "M"
	IntervalYear  Interval = "Y"
)

const day = 24 * time.Hour

// ParseInterval validates an interval code. An empty code means IntervalYear.
func ParseInterval(s string) (Interval, error) {
	switch iv := Interval(strings.TrimSpace(s)); iv {
	case "":
		return IntervalYear, nil
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return iv, nil
	default:
		return "", validationError(MsgInvalidInterval)
	}
}

// TrendPoint is one bucket of the series.
type TrendPoint struct {
	Name             string `json:"name"`
	Booked           int    `json:"booked"`
	SurgeryScheduled int    `json:"surgeryScheduled"`
	Appointments     int    `json:"appointments"`
	Total            int    `json:"total"`
	LeadToBook       string `json:"leadToBook"`
	LeadToComplete   string `json:"leadToComplete"`
}

// TrendMetrics summarizes the whole series.
type TrendMetrics struct {
	TotalLeads       int    `json:"totalLeads"`
	ConsultsBooked   int    `json:"consultsBooked"`
	SurgeryScheduled int    `json:"surgeryScheduled"`
	SurgeryCompleted string `json:"surgeryCompleted"`
	LeadToCompleted  string `json:"leadToCompleted"`
}

type TrendReport struct {
	Data    []TrendPoint `json:"data"`
	Metrics TrendMetrics `json:"metrics"`
}

// trendBuckets holds the labels of an interval and assigns timestamps to them.
type trendBuckets struct {
	interval Interval
	now      time.Time
	start    time.Time
	labels   []string
}

func newTrendBuckets(iv Interval, now time.Time) trendBuckets {
	b := trendBuckets{interval: iv, now: now}
	y, m, d := now.Date()
	loc := now.Location()

	switch iv {
	case IntervalDay:
		b.start = now.Add(-day)
		for i := 0; i < 6; i++ {
			from := time.Date(y, m, d, i*4, 0, 0, 0, loc)
			to := from.Add(4*time.Hour - time.Millisecond)
			b.labels = append(b.labels, from.Format("3 PM")+" - "+to.Format("3 PM"))
		}
	case IntervalWeek:
		b.start = startOfDay(now.Add(-6 * day))
		for i := 1; i <= 7; i++ {
			b.labels = append(b.labels, fmt.Sprintf("Week %d", i))
		}
	case IntervalMonth:
		b.start = startOfDay(now.Add(-27 * day))
		for i := 1; i <= 4; i++ {
			b.labels = append(b.labels, fmt.Sprintf("Week %d", i))
		}
	default:
		b.start = time.Date(y, m-11, 1, 0, 0, 0, 0, loc)
		for i := 0; i < 12; i++ {
			b.labels = append(b.labels, time.Date(y, m-11+time.Month(i), 1, 0, 0, 0, 0, loc).Format("Jan 2006"))
		}
	}
	return b
}

// index returns the bucket of t, or -1 when t falls outside every bucket.
func (b trendBuckets) index(t time.Time) int {
	t = t.In(b.now.Location())
	if t.After(b.now) {
		return -1
	}
	age := b.now.Sub(t)

	switch b.interval {
	case IntervalDay:
		return t.Hour() / 4
	case IntervalWeek:
		diff := int(age / day)
		if diff >= 7 {
			return -1
		}
		return 6 - diff
	case IntervalMonth:
		diff := int(age / (7 * day))
		if diff >= 4 {
			return -1
		}
		return 3 - diff
	default:
		months := (t.Year()-b.start.Year())*12 + int(t.Month()) - int(b.start.Month())
		if months < 0 || months >= len(b.labels) {
			return -1
		}
		return months
	}
}

// TrendStart returns the earliest creation time the series covers.
func TrendStart(iv Interval, now time.Time) time.Time {
	return newTrendBuckets(iv, now).start
}

// BuildTrend buckets opportunities by creation time. A lead counts as booked
// when its stage carries the consult tag and as an appointment when the stage
// carries the surgery completed tag.
func BuildTrend(iv Interval, now time.Time, stages []models.Stage, opps []models.Opportunity) TrendReport {
	b := newTrendBuckets(iv, now)
	idx := indexStages(stages)

	points := make([]TrendPoint, len(b.labels))
	for i, label := range b.labels {
		points[i].Name = label
	}

	for i := range opps {
		opp := &opps[i]
		n := b.index(opp.DateAdded)
		if n < 0 {
			continue
		}
		p := &points[n]
		p.Total++
		if idx.has(opp.PipelineStageID, models.StageTagConsult) {
			p.Booked++
		}
		if idx.has(opp.PipelineStageID, models.StageTagSurgeryScheduled) {
			p.SurgeryScheduled++
		}
		if idx.has(opp.PipelineStageID, models.StageTagSurgeryCompleted) {
			p.Appointments++
		}
	}

	var m TrendMetrics
	completed := 0
	for i := range points {
		p := &points[i]
		p.LeadToBook = CalculatePercentage(p.Booked, p.Total)
		p.LeadToComplete = CalculatePercentage(p.Appointments, p.Total)
		m.TotalLeads += p.Total
		m.ConsultsBooked += p.Booked
		m.SurgeryScheduled += p.SurgeryScheduled
		completed += p.Appointments
	}
	m.SurgeryCompleted = CalculatePercentage(completed, m.SurgeryScheduled)
	m.LeadToCompleted = CalculatePercentage(completed, m.TotalLeads)

	return TrendReport{Data: points, Metrics: m}
}
