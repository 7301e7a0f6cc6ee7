package reporting

import "github.com/axdashboard/axdash/app/models"

// Counts splits a number into records created inside the window and before it.
type Counts struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Existing int `json:"existing"`
}

func (c *Counts) add(isNew bool) {
	c.Total++
	if isNew {
		c.New++
	} else {
		c.Existing++
	}
}

// Rates are conversion percentages per Counts column.
type Rates struct {
	Total    string `json:"total"`
	New      string `json:"new"`
	Existing string `json:"existing"`
}

func rates(part, whole Counts) Rates {
	return Rates{
		Total:    CalculatePercentage(part.Total, whole.Total),
		New:      CalculatePercentage(part.New, whole.New),
		Existing: CalculatePercentage(part.Existing, whole.Existing),
	}
}

// FunnelReport is the four count widgets plus four conversion widgets.
type FunnelReport struct {
	TotalLeads       Counts `json:"totalLeads"`
	ConsultsBooked   Counts `json:"consultsBooked"`
	SurgeryScheduled Counts `json:"surgeryScheduled"`
	SurgeryCompleted Counts `json:"surgeryCompleted"`

	LeadToConsult    Rates `json:"leadToConsult"`
	ConsultToSurgery Rates `json:"consultToSurgery"`
	LeadToCompleted  Rates `json:"leadToCompleted"`
	CanceledLead     Rates `json:"canceledLead"`
}

// BuildFunnel counts every opportunity as a lead and places it in at most one
// funnel bucket. Buckets are checked in the order consult, surgery scheduled,
// surgery completed, canceled and the first match wins.
func BuildFunnel(stages []models.Stage, opps []models.Opportunity, w Window) FunnelReport {
	idx := indexStages(stages)

	var leads, consult, scheduled, completed, canceled Counts
	for i := range opps {
		opp := &opps[i]
		isNew := w.Contains(opp.DateAdded)
		leads.add(isNew)

		switch stage := opp.PipelineStageID; {
		case idx.has(stage, models.StageTagConsult):
			consult.add(isNew)
		case idx.has(stage, models.StageTagSurgeryScheduled):
			scheduled.add(isNew)
		case idx.has(stage, models.StageTagSurgeryCompleted):
			completed.add(isNew)
		case idx.has(stage, models.StageTagCanceled):
			canceled.add(isNew)
		}
	}

	return FunnelReport{
		TotalLeads:       leads,
		ConsultsBooked:   consult,
		SurgeryScheduled: scheduled,
		SurgeryCompleted: completed,
		LeadToConsult:    rates(consult, leads),
		ConsultToSurgery: rates(scheduled, consult),
		LeadToCompleted:  rates(completed, leads),
		CanceledLead:     rates(canceled, leads),
	}
}
