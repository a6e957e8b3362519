package chat

import "time"

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a counseling transcript. Immutable once
// appended; the triage fields are frozen at classification time so replaying
// a transcript always shows what the system saw on that turn.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	RiskLevel int       `json:"riskLevel,omitempty"`
	Needs     string    `json:"needs,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
