package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"profile-agent/internal/domain"
)

// ValidationError reports a terminal payload that parsed but failed the
// profile schema. Field names the offending collected_info field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("usecase: invalid profile payload: %s %s", e.Field, e.Reason)
}

// Extractor scans model replies for an embedded terminal payload and
// validates it against the profile schema. The model is untrusted; any
// reply that does not yield a fully valid payload is treated as ordinary
// conversation.
type Extractor struct {
	validate *validator.Validate
}

func NewExtractor() *Extractor {
	v := validator.New()
	// Report JSON field names in validation errors, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Extractor{validate: v}
}

// Extract returns one of three outcomes:
//   - (record, nil): the reply carried a valid terminal payload
//   - (nil, nil): the reply is not terminal; the conversation continues
//   - (nil, *ValidationError): a payload claimed profile_complete but
//     failed schema validation
//
// Candidates are balanced top-level {...} spans, examined most recent
// first, so example JSON echoed earlier in a reply never shadows the real
// terminal object.
func (e *Extractor) Extract(reply string) (*domain.ProfileRecord, error) {
	candidates := scanObjectCandidates(reply)
	var firstInvalid *ValidationError
	for i := len(candidates) - 1; i >= 0; i-- {
		rec, err := e.decodeCandidate(candidates[i])
		if rec != nil {
			return rec, nil
		}
		var verr *ValidationError
		if errors.As(err, &verr) && firstInvalid == nil {
			firstInvalid = verr
		}
	}
	if firstInvalid != nil {
		return nil, firstInvalid
	}
	return nil, nil
}

// rawEnvelope defers collected_info decoding so a status check happens
// before any schema judgement.
type rawEnvelope struct {
	Status              string          `json:"status"`
	CollectedInfo       json.RawMessage `json:"collected_info"`
	ConversationSummary string          `json:"conversation_summary"`
}

// rawCollectedInfo keeps risk_tolerance raw to support coercion from a
// JSON number or a numeric string, with a field-level error otherwise.
type rawCollectedInfo struct {
	InvestmentTheme     string          `json:"investment_theme"`
	RiskTolerance       json.RawMessage `json:"risk_tolerance"`
	TimeHorizon         string          `json:"time_horizon"`
	PreferredSectors    []string        `json:"preferred_sectors"`
	SpecificPreferences []string        `json:"specific_preferences"`
}

func (e *Extractor) decodeCandidate(candidate string) (*domain.ProfileRecord, error) {
	var env rawEnvelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return nil, nil // not an object we understand; not terminal
	}
	if env.Status != domain.StatusProfileComplete {
		return nil, nil
	}
	if len(env.CollectedInfo) == 0 {
		return nil, &ValidationError{Field: "collected_info", Reason: "is missing"}
	}
	var raw rawCollectedInfo
	if err := json.Unmarshal(env.CollectedInfo, &raw); err != nil {
		return nil, &ValidationError{Field: "collected_info", Reason: "has a malformed field: " + err.Error()}
	}
	risk, err := coerceRiskScore(raw.RiskTolerance)
	if err != nil {
		return nil, err
	}
	rec := &domain.ProfileRecord{
		Status: env.Status,
		CollectedInfo: domain.CollectedInfo{
			InvestmentTheme:     strings.TrimSpace(raw.InvestmentTheme),
			RiskTolerance:       risk,
			TimeHorizon:         raw.TimeHorizon,
			PreferredSectors:    raw.PreferredSectors,
			SpecificPreferences: raw.SpecificPreferences,
		},
		ConversationSummary: strings.TrimSpace(env.ConversationSummary),
	}
	if rec.CollectedInfo.SpecificPreferences == nil {
		rec.CollectedInfo.SpecificPreferences = []string{}
	}
	if err := e.validateRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Extractor) validateRecord(rec *domain.ProfileRecord) error {
	err := e.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "collected_info", Reason: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: validationReason(fe)}
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return "must be one of short_term, medium_term, long_term"
	case "min", "max":
		if fe.Kind() == reflect.Slice {
			return "must contain at least one entry"
		}
		return "must be an integer between 0 and 10"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// coerceRiskScore accepts a JSON integer or a numeric string; anything
// else, or a value outside [0,10], is a field-level validation failure.
func coerceRiskScore(raw json.RawMessage) (int, error) {
	fieldErr := func(reason string) (int, error) {
		return 0, &ValidationError{Field: "risk_tolerance", Reason: reason}
	}
	if len(raw) == 0 {
		return fieldErr("is missing")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 || n > 10 {
			return fieldErr("must be an integer between 0 and 10")
		}
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, convErr := strconv.Atoi(strings.TrimSpace(s))
		if convErr != nil {
			return fieldErr("must be an integer between 0 and 10")
		}
		if n < 0 || n > 10 {
			return fieldErr("must be an integer between 0 and 10")
		}
		return n, nil
	}
	return fieldErr("must be an integer between 0 and 10")
}

// scanObjectCandidates walks the reply once and collects every balanced
// top-level {...} span. The walk tracks nesting depth and JSON string
// state, so braces inside quoted values or surrounding prose never split
// or truncate a candidate. An unterminated open brace yields nothing.
func scanObjectCandidates(text string) []string {
	var (
		candidates []string
		start      = -1
		depth      = 0
		inString   bool
		escaped    bool
	)
	for i, r := range text {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray closer in prose
			}
			depth--
			if depth == 0 {
				candidates = append(candidates, text[start:i+1])
				start = -1
			}
		case '"':
			if depth > 0 {
				inString = true
			}
		}
	}
	return candidates
}
