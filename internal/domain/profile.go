package domain

// StatusProfileComplete is the status value marking a terminal payload.
const StatusProfileComplete = "profile_complete"

// Time horizon values accepted in a terminal payload.
const (
	HorizonShortTerm  = "short_term"
	HorizonMediumTerm = "medium_term"
	HorizonLongTerm   = "long_term"
)

// CollectedInfo holds the structured investment preferences gathered over
// the dialogue. Validate tags express the schema; the extractor translates
// tag failures into field-level reasons.
type CollectedInfo struct {
	InvestmentTheme     string   `json:"investment_theme" validate:"required"`
	RiskTolerance       int      `json:"risk_tolerance" validate:"min=0,max=10"`
	TimeHorizon         string   `json:"time_horizon" validate:"oneof=short_term medium_term long_term"`
	PreferredSectors    []string `json:"preferred_sectors" validate:"min=1,dive,required"`
	SpecificPreferences []string `json:"specific_preferences"`
}

// ProfileRecord is the validated terminal payload of an interview: the end
// artifact handed to portfolio construction. Created exactly once per
// successful session and never mutated afterwards.
type ProfileRecord struct {
	Status              string        `json:"status"`
	CollectedInfo       CollectedInfo `json:"collected_info" validate:"required"`
	ConversationSummary string        `json:"conversation_summary" validate:"required"`
}
