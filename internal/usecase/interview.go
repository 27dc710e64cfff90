package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"profile-agent/internal/domain"
)

const (
	defaultMaxMessageLen   = 500
	defaultMaxSessionTurns = 12
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, temperature float64, turns []domain.Turn) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

// SessionStore persists serialized dialogue histories between turns and
// receives the finalized profile. The engine only writes after a
// successful transport call, so a failed call never mutates stored state.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*domain.History, bool, error)
	SaveSession(ctx context.Context, sessionID string, history *domain.History) error
	FinalizeSession(ctx context.Context, sessionID string, record *domain.ProfileRecord) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// InterviewService drives one preference-gathering dialogue per session:
// append the user turn, call the chat service with the full history, then
// either finalize the extracted profile or continue the conversation.
type InterviewService struct {
	params          ParamGetter
	llm             LLMClient
	sessions        SessionStore
	extractor       *Extractor
	paramPrefix     string
	maxMessageLen   int
	maxSessionTurns int

	cacheMu      sync.RWMutex
	cacheLoaded  bool
	model        string
	temperature  float64
	themeCatalog string
}

type MessageInput struct {
	SessionID string
	Message   string
}

type MessageOutput struct {
	SessionID string
	Reply     string
	Done      bool
	Profile   *domain.ProfileRecord
}

func NewInterviewService(p ParamGetter, llm LLMClient, s SessionStore, paramPrefix string, maxMessageLen, maxSessionTurns int) (*InterviewService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessageLen
	}
	if maxSessionTurns <= 0 {
		maxSessionTurns = defaultMaxSessionTurns
	}
	return &InterviewService{
		params:          p,
		llm:             llm,
		sessions:        s,
		extractor:       NewExtractor(),
		paramPrefix:     paramPrefix,
		maxMessageLen:   maxMessageLen,
		maxSessionTurns: maxSessionTurns,
	}, nil
}

// Message processes one user turn. An empty SessionID starts a new session.
func (s *InterviewService) Message(ctx context.Context, in MessageInput) (MessageOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return MessageOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return MessageOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return MessageOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	var history *domain.History
	if sessionID == "" {
		sessionID = newUUID()
		h, err := domain.NewHistory(buildProtocolPrompt(s.themeCatalog))
		if err != nil {
			return MessageOutput{}, newError(ErrorInternal, "history_init_error", err)
		}
		history = h
	} else {
		h, found, err := s.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return MessageOutput{}, newError(ErrorInternal, "session_read_error", err)
		}
		if !found {
			return MessageOutput{}, newError(ErrorInvalidInput, "unknown_session", nil)
		}
		history = h
	}
	if history.UserTurns() >= s.maxSessionTurns {
		return MessageOutput{}, newError(ErrorInvalidInput, "session_turn_limit", nil)
	}

	flagged, err := s.llm.Moderate(ctx, message)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return MessageOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
		}
		return MessageOutput{}, newError(ErrorUpstream, "moderation_error", err)
	}
	if flagged {
		return MessageOutput{}, newError(ErrorInvalidMessage, "moderation_flagged", nil)
	}

	if err := history.Append(domain.Turn{Role: domain.RoleUser, Content: message}); err != nil {
		return MessageOutput{}, newError(ErrorInternal, "history_invariant", err)
	}

	reply, err := s.chat(ctx, history)
	if err != nil {
		return MessageOutput{}, err
	}

	record, exErr := s.extractor.Extract(reply)
	if record == nil && exErr != nil {
		record, reply, exErr = s.correctionRound(ctx, history, reply, exErr)
	}
	switch {
	case record != nil:
		if err := s.sessions.FinalizeSession(ctx, sessionID, record); err != nil {
			return MessageOutput{}, newError(ErrorInternal, "session_write_error", err)
		}
		return MessageOutput{SessionID: sessionID, Done: true, Profile: record}, nil
	case exErr != nil:
		var verr *ValidationError
		if errors.As(exErr, &verr) {
			// Keep the session continuable; the caller decides how to retry.
			if appendErr := history.Append(domain.Turn{Role: domain.RoleAssistant, Content: reply}); appendErr == nil {
				_ = s.sessions.SaveSession(ctx, sessionID, history)
			}
			return MessageOutput{}, newError(ErrorInvalidProfile, "profile_validation_failed", verr)
		}
		return MessageOutput{}, exErr
	default:
		if err := history.Append(domain.Turn{Role: domain.RoleAssistant, Content: reply}); err != nil {
			return MessageOutput{}, newError(ErrorInternal, "history_invariant", err)
		}
		if err := s.sessions.SaveSession(ctx, sessionID, history); err != nil {
			return MessageOutput{}, newError(ErrorInternal, "session_write_error", err)
		}
		return MessageOutput{SessionID: sessionID, Reply: reply, Done: false}, nil
	}
}

// correctionRound re-prompts the model once after a terminal payload failed
// validation: the invalid reply joins the history, a corrective user turn
// names the offending field, and the new reply is extracted again.
func (s *InterviewService) correctionRound(ctx context.Context, history *domain.History, reply string, exErr error) (*domain.ProfileRecord, string, error) {
	var verr *ValidationError
	if !errors.As(exErr, &verr) {
		return nil, reply, exErr
	}
	if err := history.Append(domain.Turn{Role: domain.RoleAssistant, Content: reply}); err != nil {
		return nil, reply, newError(ErrorInternal, "history_invariant", err)
	}
	correction := fmt.Sprintf(
		"The profile JSON was invalid: %s %s. Please resend the complete terminal JSON object with that corrected.",
		verr.Field, verr.Reason,
	)
	if err := history.Append(domain.Turn{Role: domain.RoleUser, Content: correction}); err != nil {
		return nil, reply, newError(ErrorInternal, "history_invariant", err)
	}
	retryReply, err := s.chat(ctx, history)
	if err != nil {
		return nil, reply, err
	}
	record, retryErr := s.extractor.Extract(retryReply)
	if record != nil {
		return record, retryReply, nil
	}
	if retryErr == nil {
		// Still no valid terminal payload; surface the original failure.
		retryErr = verr
	}
	return nil, retryReply, retryErr
}

func (s *InterviewService) chat(ctx context.Context, history *domain.History) (string, error) {
	reply, err := s.llm.Chat(ctx, s.model, s.temperature, history.Snapshot())
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return "", newError(ErrorRateLimited, "openai_rate_limited", err)
		}
		return "", newError(ErrorUpstream, "openai_error", err)
	}
	return reply, nil
}

func (s *InterviewService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, temperature, themes, err := s.loadSSMParams(ctx)
	if err != nil {
		return err
	}

	s.model = model
	s.temperature = temperature
	s.themeCatalog = themes
	s.cacheLoaded = true
	return nil
}

func (s *InterviewService) loadSSMParams(ctx context.Context) (model string, temperature float64, themes string, err error) {
	prefix := strings.TrimRight(s.paramPrefix, "/")

	model, err = s.params.GetParameter(ctx, prefix+"/config/openai_model")
	if err != nil {
		return "", 0, "", fmt.Errorf("usecase: load openai model: %w", err)
	}
	rawTemp, err := s.params.GetParameter(ctx, prefix+"/config/temperature")
	if err != nil {
		return "", 0, "", fmt.Errorf("usecase: load temperature: %w", err)
	}
	temperature, err = parseTemperature(rawTemp)
	if err != nil {
		return "", 0, "", err
	}
	themes, err = s.params.GetParameter(ctx, prefix+"/themes")
	if err != nil {
		return "", 0, "", fmt.Errorf("usecase: load theme catalog: %w", err)
	}
	return model, temperature, themes, nil
}

func parseTemperature(raw string) (float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("usecase: parse temperature %q: %w", raw, err)
	}
	if t < 0 || t > 2 {
		return 0, fmt.Errorf("usecase: temperature %g out of range [0,2]", t)
	}
	return t, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
