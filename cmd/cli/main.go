// Command cli runs the interview loop against stdin/stdout with an
// in-memory session store, for local development without AWS.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"profile-agent/internal/integrations/openai"
	"profile-agent/internal/repository"
	"profile-agent/internal/usecase"
)

// envParams satisfies the paramstore Getter contract from environment
// variables, so the same service wiring works without SSM.
type envParams struct{}

func (envParams) GetParameter(_ context.Context, name string) (string, error) {
	var key, def string
	switch {
	case strings.HasSuffix(name, "/config/openai_model"):
		key, def = "OPENAI_MODEL", "gpt-4o-mini"
	case strings.HasSuffix(name, "/config/temperature"):
		key, def = "OPENAI_TEMPERATURE", "0.7"
	case strings.HasSuffix(name, "/themes"):
		key, def = "THEME_CATALOG", ""
	case strings.HasSuffix(name, "/open-ai-token"):
		token := os.Getenv("OPENAI_API_KEY")
		if token == "" {
			return "", errors.New("OPENAI_API_KEY is not set")
		}
		raw, err := json.Marshal(map[string]string{"token": token})
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("unknown parameter %q", name)
	}
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return def, nil
}

func main() {
	ctx := context.Background()

	params := envParams{}
	openaiClient, err := openai.NewClient(params, "/profile-agent")
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	svc, err := usecase.NewInterviewService(params, openaiClient, repository.NewMemStore(), "/profile-agent", 500, 12)
	if err != nil {
		slog.Error("failed to create interview service", "err", err)
		os.Exit(1)
	}

	fmt.Println("Investment preference interview. Type a message, or /quit to abandon the session.")

	var sessionID string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}

		out, err := svc.Message(ctx, usecase.MessageInput{SessionID: sessionID, Message: line})
		if err != nil {
			var ucErr *usecase.Error
			if errors.As(err, &ucErr) && ucErr.Code != usecase.ErrorInternal {
				fmt.Printf("(%s: %s — try again)\n", ucErr.Code, ucErr.Reason)
				continue
			}
			slog.Error("interview turn failed", "err", err)
			os.Exit(1)
		}
		sessionID = out.SessionID

		if out.Done {
			pretty, err := json.MarshalIndent(out.Profile, "", "  ")
			if err != nil {
				slog.Error("failed to render profile", "err", err)
				os.Exit(1)
			}
			fmt.Println("Profile complete:")
			fmt.Println(string(pretty))
			return
		}
		fmt.Println(out.Reply)
	}
}
