package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"profile-agent/internal/domain"
	"profile-agent/internal/usecase"
)

type stubUseCase struct {
	out usecase.MessageOutput
	err error
	in  usecase.MessageInput
}

func (s *stubUseCase) Message(_ context.Context, in usecase.MessageInput) (usecase.MessageOutput, error) {
	s.in = in
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/message",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_Continuation(t *testing.T) {
	uc := &stubUseCase{out: usecase.MessageOutput{SessionID: "sess-1", Reply: "And your timeline?"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"sessionId":"sess-1","message":"governance tokens"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.MessageInput{SessionID: "sess-1", Message: "governance tokens"}, uc.in)

	out := parseBody[messageResponse](t, resp.Body)
	require.Equal(t, "sess-1", out.SessionID)
	require.Equal(t, "And your timeline?", out.Reply)
	require.False(t, out.Done)
	require.Nil(t, out.Profile)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_Completion(t *testing.T) {
	profile := &domain.ProfileRecord{
		Status: domain.StatusProfileComplete,
		CollectedInfo: domain.CollectedInfo{
			InvestmentTheme:     "Stablecoins and Governance Tokens",
			RiskTolerance:       3,
			TimeHorizon:         domain.HorizonLongTerm,
			PreferredSectors:    []string{"Stablecoins", "Governance Tokens"},
			SpecificPreferences: []string{"avoid meme coins"},
		},
		ConversationSummary: "Long-term, risk-averse crypto allocation.",
	}
	uc := &stubUseCase{out: usecase.MessageOutput{SessionID: "sess-1", Done: true, Profile: profile}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"sessionId":"sess-1","message":"yes, that's right"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[messageResponse](t, resp.Body)
	require.True(t, out.Done)
	require.NotNil(t, out.Profile)
	require.Equal(t, profile.CollectedInfo, out.Profile.CollectedInfo)
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "invalid message", err: &usecase.Error{Code: usecase.ErrorInvalidMessage, Reason: "moderation_flagged"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidMessage)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "openai_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "openai_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "invalid profile", err: &usecase.Error{Code: usecase.ErrorInvalidProfile, Reason: "profile_validation_failed"}, status: http.StatusBadGateway, code: string(usecase.ErrorInvalidProfile)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "session_write_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{err: tc.err}
			h, err := NewHandler(uc)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"message":"hello"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{out: usecase.MessageOutput{SessionID: "sess-1", Reply: "ok"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := makeEvent(`{"message":"hello"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
