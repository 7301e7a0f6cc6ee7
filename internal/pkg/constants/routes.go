package constants

// Route groups and paths
const (
	PublicRoute        = "/"
	AuthRoute          = "/auth"
	WebhookRoute       = "/webhook"
	OpportunitiesRoute = "/opportunities"
	AdminRoute         = "/admin"
	MetricsRoute       = "/metrics"
	MonitorRoute       = "/monitor"
	DocsRoute          = "/docs/api/v1"
	OpenAPISpecPath    = "./docs/v1/openapi.yml"
)

// Report paths below OpportunitiesRoute. The names are kept from the dashboard client.
const (
	ReportLeads          = "/plastic-leads"
	ReportTrend          = "/plastic-getOpportunityTrend"
	ReportTreatments     = "/plastic-treatments"
	ReportRevenue        = "/plastic-totalRevenue"
	ReportNurture        = "/plastic-automatedNurtureConversionRate"
	ReportMarketingROI   = "/plastic-marketingROI"
	ReportAcquisitionCAC = "/plastic-customerAcquisitionCost"
)
