package reporting

// Kind classifies a report failure for the HTTP layer.
type Kind int

const (
	// KindValidation means the caller supplied bad input.
	KindValidation Kind = iota + 1
	// KindMissingReference means required stage reference data is absent.
	KindMissingReference
)

// Error is returned for failures that carry a user-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func missingReference(msg string) error {
	return &Error{Kind: KindMissingReference, Message: msg}
}

// Messages shared by the reports and their HTTP handlers.
const (
	MsgInvalidRange       = "Invalid date format for start or end."
	MsgInvalidFixedDate   = "Invalid date format for fixedDate."
	MsgInvalidInterval    = "Invalid interval provided. Use D, W, M, or Y."
	MsgInvalidInvestment  = "Valid total invested cost is required."
	MsgInvalidMarketing   = "Valid total marketing cost is required."
	MsgNoRevenueStages    = "No revenue-generating stages found"
	MsgNoStagesInDatabase = "No stages found in the database."
	MsgNoRepliedStage     = "Replied stage not found in the database."
	MsgNoPatientStage     = "Patient stage not found in the database."
	MsgNoStages           = "No stages found."
	MsgNoAppointmentStage = "No appointment/booking stages found."
)
