package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"profile-agent/internal/domain"
)

const validPayload = `{"status":"profile_complete","collected_info":{` +
	`"investment_theme":"Stablecoins and Governance Tokens",` +
	`"risk_tolerance":3,` +
	`"time_horizon":"long_term",` +
	`"preferred_sectors":["Stablecoins","Governance Tokens"],` +
	`"specific_preferences":["avoid meme coins"]},` +
	`"conversation_summary":"User prefers stable long-term holdings."}`

func requireValidRecord(t *testing.T, rec *domain.ProfileRecord) {
	t.Helper()
	require.NotNil(t, rec)
	require.Equal(t, domain.StatusProfileComplete, rec.Status)
	require.Equal(t, "Stablecoins and Governance Tokens", rec.CollectedInfo.InvestmentTheme)
	require.Equal(t, 3, rec.CollectedInfo.RiskTolerance)
	require.Equal(t, domain.HorizonLongTerm, rec.CollectedInfo.TimeHorizon)
	require.Equal(t, []string{"Stablecoins", "Governance Tokens"}, rec.CollectedInfo.PreferredSectors)
	require.Equal(t, []string{"avoid meme coins"}, rec.CollectedInfo.SpecificPreferences)
	require.Equal(t, "User prefers stable long-term holdings.", rec.ConversationSummary)
}

func TestExtract_PayloadPositionDoesNotMatter(t *testing.T) {
	ex := NewExtractor()
	cases := []struct {
		name  string
		reply string
	}{
		{"bare", validPayload},
		{"leading prose", "Thanks for confirming! Here is your profile:\n" + validPayload},
		{"trailing prose", validPayload + "\nLet me know if anything looks off."},
		{"surrounded", "All set.\n" + validPayload + "\nHave a great day!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ex.Extract(tc.reply)
			require.NoError(t, err)
			requireValidRecord(t, rec)
		})
	}
}

func TestExtract_NonTerminalPassthrough(t *testing.T) {
	ex := NewExtractor()
	cases := []struct {
		name  string
		reply string
	}{
		{"plain prose", "Which of these themes interests you most?"},
		{"no status field", `Here is a note {"foo":"bar"} for you`},
		{"wrong status", `{"status":"in_progress","step":"timeline"}`},
		{"unbalanced brace", `I opened a brace { and never closed it`},
		{"stray closing brace", `odd } prose without an object`},
		{"empty reply", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ex.Extract(tc.reply)
			require.NoError(t, err)
			require.Nil(t, rec)
		})
	}
}

func TestExtract_NestedAndMultipleCandidates(t *testing.T) {
	ex := NewExtractor()

	// An echoed example object must not shadow the real terminal payload,
	// in either order.
	rec, err := ex.Extract(`Here's an example: {"status":"example"} but the real one is ` + validPayload)
	require.NoError(t, err)
	requireValidRecord(t, rec)

	rec, err = ex.Extract(validPayload + ` (unlike the earlier example {"status":"example"})`)
	require.NoError(t, err)
	requireValidRecord(t, rec)
}

func TestExtract_BracesInsideStringValues(t *testing.T) {
	ex := NewExtractor()
	payload := `{"status":"profile_complete","collected_info":{` +
		`"investment_theme":"DeFi {Bluechips}",` +
		`"risk_tolerance":7,"time_horizon":"medium_term",` +
		`"preferred_sectors":["DEXes"],"specific_preferences":[]},` +
		`"conversation_summary":"Likes {aggressive} growth."}`
	rec, err := ex.Extract("Done! " + payload + " Bye.")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "DeFi {Bluechips}", rec.CollectedInfo.InvestmentTheme)
	require.Equal(t, "Likes {aggressive} growth.", rec.ConversationSummary)
}

func TestExtract_RiskToleranceCoercion(t *testing.T) {
	ex := NewExtractor()
	rec, err := ex.Extract(terminalWithRisk(`"3"`))
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 3, rec.CollectedInfo.RiskTolerance)
}

func terminalWithRisk(risk string) string {
	return fmt.Sprintf(`{"status":"profile_complete","collected_info":{`+
		`"investment_theme":"Theme","risk_tolerance":%s,"time_horizon":"short_term",`+
		`"preferred_sectors":["A"],"specific_preferences":[]},`+
		`"conversation_summary":"done"}`, risk)
}

func TestExtract_SchemaRejection(t *testing.T) {
	ex := NewExtractor()
	cases := []struct {
		name  string
		reply string
		field string
	}{
		{"risk too high", terminalWithRisk("11"), "risk_tolerance"},
		{"risk negative", terminalWithRisk("-1"), "risk_tolerance"},
		{"risk non-numeric", terminalWithRisk(`"high"`), "risk_tolerance"},
		{"risk fractional", terminalWithRisk("3.5"), "risk_tolerance"},
		{"risk missing", `{"status":"profile_complete","collected_info":{"investment_theme":"T","time_horizon":"short_term","preferred_sectors":["A"],"specific_preferences":[]},"conversation_summary":"s"}`, "risk_tolerance"},
		{"bad horizon", `{"status":"profile_complete","collected_info":{"investment_theme":"T","risk_tolerance":2,"time_horizon":"forever","preferred_sectors":["A"],"specific_preferences":[]},"conversation_summary":"s"}`, "time_horizon"},
		{"empty sectors", `{"status":"profile_complete","collected_info":{"investment_theme":"T","risk_tolerance":2,"time_horizon":"short_term","preferred_sectors":[],"specific_preferences":[]},"conversation_summary":"s"}`, "preferred_sectors"},
		{"missing theme", `{"status":"profile_complete","collected_info":{"risk_tolerance":2,"time_horizon":"short_term","preferred_sectors":["A"],"specific_preferences":[]},"conversation_summary":"s"}`, "investment_theme"},
		{"empty summary", `{"status":"profile_complete","collected_info":{"investment_theme":"T","risk_tolerance":2,"time_horizon":"short_term","preferred_sectors":["A"],"specific_preferences":[]},"conversation_summary":""}`, "conversation_summary"},
		{"missing collected_info", `{"status":"profile_complete","conversation_summary":"s"}`, "collected_info"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ex.Extract(tc.reply)
			require.Nil(t, rec)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestExtract_ValidCandidatePreferredOverInvalid(t *testing.T) {
	ex := NewExtractor()
	// The invalid terminal candidate comes later, but the earlier valid one
	// must still win over surfacing a validation failure.
	reply := terminalWithRisk("11") + " ... sorry, corrected: " + validPayload
	rec, err := ex.Extract(reply)
	require.NoError(t, err)
	requireValidRecord(t, rec)

	// Same when the invalid candidate is the most recent one.
	reply = validPayload + " ... or alternatively: " + terminalWithRisk("11")
	rec, err = ex.Extract(reply)
	require.NoError(t, err)
	requireValidRecord(t, rec)
}

func TestExtract_EmptySpecificPreferencesAllowed(t *testing.T) {
	ex := NewExtractor()
	rec, err := ex.Extract(terminalWithRisk("0"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Empty(t, rec.CollectedInfo.SpecificPreferences)
	require.NotNil(t, rec.CollectedInfo.SpecificPreferences)
}

func TestScanObjectCandidates(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"none", "no objects here", nil},
		{"single", `a {"x":1} b`, []string{`{"x":1}`}},
		{"nested counts once", `{"a":{"b":2}}`, []string{`{"a":{"b":2}}`}},
		{"two top-level", `{"a":1} and {"b":2}`, []string{`{"a":1}`, `{"b":2}`}},
		{"brace in string", `{"s":"}{"} tail`, []string{`{"s":"}{"}`}},
		{"escaped quote in string", `{"s":"say \"hi\" {"}`, []string{`{"s":"say \"hi\" {"}`}},
		{"unterminated", `{"a":1`, nil},
		{"stray closer", `} {"a":1}`, []string{`{"a":1}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, scanObjectCandidates(tc.text))
		})
	}
}
