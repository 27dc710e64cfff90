package domain

// Role tags who produced a Turn. The remote chat service only understands
// these three values.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the permitted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one role-tagged message in a dialogue. Turns are immutable once
// appended to a History.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
