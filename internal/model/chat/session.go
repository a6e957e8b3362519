package chat

import "time"

// Session captures a transient anonymous counseling conversation.
// RiskLevel is the running maximum observed across all turns; it only goes
// up until an explicit reset.
type Session struct {
	ID        string    `json:"id"`
	RiskLevel int       `json:"riskLevel"`
	CreatedAt time.Time `json:"createdAt"`
}
