package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// History is the ordered, append-only dialogue log sent to the chat service
// on every turn. It begins with exactly one system turn and alternates
// user/assistant thereafter. There is no deletion or reordering.
//
// History serializes as a plain JSON array of turns so it can be persisted
// by a session store and rebuilt across process restarts.
type History struct {
	turns []Turn
}

// NewHistory creates a History seeded with the mandatory system turn.
func NewHistory(systemPrompt string) (*History, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, errors.New("domain: system prompt must not be empty")
	}
	return &History{turns: []Turn{{Role: RoleSystem, Content: systemPrompt}}}, nil
}

// Append adds a turn to the end of the log. It fails on an unknown role, a
// second system turn, or a user/assistant turn that breaks alternation with
// the previous turn. These are caller bugs, not runtime conditions.
func (h *History) Append(t Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("domain: invalid role %q", t.Role)
	}
	if t.Role == RoleSystem {
		return errors.New("domain: system turn may only appear once, first")
	}
	if len(h.turns) == 0 {
		return errors.New("domain: history must begin with a system turn")
	}
	last := h.turns[len(h.turns)-1]
	if last.Role == t.Role {
		return fmt.Errorf("domain: consecutive %s turns violate alternation", t.Role)
	}
	if last.Role == RoleSystem && t.Role != RoleUser {
		return errors.New("domain: first turn after system must be a user turn")
	}
	h.turns = append(h.turns, t)
	return nil
}

// Snapshot returns a copy of the full ordered turn sequence. Mutating the
// returned slice does not affect the History.
func (h *History) Snapshot() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns, including the system turn.
func (h *History) Len() int {
	return len(h.turns)
}

// UserTurns returns how many user turns the history holds.
func (h *History) UserTurns() int {
	n := 0
	for _, t := range h.turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// Last returns the most recent turn and false if the history is empty.
func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.turns)
}

func (h *History) UnmarshalJSON(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return fmt.Errorf("domain: decode history: %w", err)
	}
	if len(turns) == 0 || turns[0].Role != RoleSystem {
		return errors.New("domain: decoded history must begin with a system turn")
	}
	rebuilt := &History{turns: []Turn{turns[0]}}
	for _, t := range turns[1:] {
		if err := rebuilt.Append(t); err != nil {
			return err
		}
	}
	h.turns = rebuilt.turns
	return nil
}
