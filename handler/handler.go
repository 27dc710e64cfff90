package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"profile-agent/internal/domain"
	"profile-agent/internal/usecase"
)

// UseCase is the interview surface the handler depends on.
type UseCase interface {
	Message(ctx context.Context, in usecase.MessageInput) (usecase.MessageOutput, error)
}

type Handler struct {
	uc UseCase
}

type messageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type messageResponse struct {
	SessionID string                `json:"sessionId"`
	Reply     string                `json:"reply,omitempty"`
	Done      bool                  `json:"done"`
	Profile   *domain.ProfileRecord `json:"profile,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle processes one API Gateway request carrying a single user turn and
// returns either the continuation reply or the finalized profile.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := resolveCorrelationID(event.Headers)
	log := slog.With("correlationId", correlationID)

	var req messageRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		log.Warn("invalid request body", "err", err)
		return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "malformed_body"}), nil
	}

	out, err := h.uc.Message(ctx, usecase.MessageInput{SessionID: req.SessionID, Message: req.Message})
	if err != nil {
		code, status, reason := classifyError(err)
		log.Warn("interview turn failed", "code", code, "reason", reason)
		return jsonResponse(status, correlationID, errorResponse{Error: code, Reason: reason}), nil
	}

	log.Info("interview turn processed", "sessionId", out.SessionID, "done", out.Done)
	return jsonResponse(http.StatusOK, correlationID, messageResponse{
		SessionID: out.SessionID,
		Reply:     out.Reply,
		Done:      out.Done,
		Profile:   out.Profile,
	}), nil
}

func classifyError(err error) (code string, status int, reason string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return string(usecase.ErrorInternal), http.StatusInternalServerError, ""
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidMessage:
		return string(ucErr.Code), http.StatusBadRequest, ucErr.Reason
	case usecase.ErrorRateLimited:
		return string(ucErr.Code), http.StatusTooManyRequests, ucErr.Reason
	case usecase.ErrorUpstream, usecase.ErrorInvalidProfile:
		return string(ucErr.Code), http.StatusBadGateway, ucErr.Reason
	default:
		return string(usecase.ErrorInternal), http.StatusInternalServerError, ucErr.Reason
	}
}

func resolveCorrelationID(headers map[string]string) string {
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "X-Correlation-Id" && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": correlationID,
		},
		Body: string(raw),
	}
}
