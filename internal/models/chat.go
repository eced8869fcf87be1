package models

import "time"

const (
	ChatStatusWaiting = "waiting"
	ChatStatusActive  = "active"
	ChatStatusClosed  = "closed"
)

const (
	RoleClient    = "client"
	RoleDietitian = "dietitian"
)

const (
	MessageKindPlain          = "plain"
	MessageKindPlanSuggestion = "plan_suggestion"
)

// UnreadCount carries the two independent per-role counters stored on a chat.
type UnreadCount struct {
	Client    int `json:"client"`
	Dietitian int `json:"dietitian"`
}

type Chat struct {
	ID              string      `json:"id"`
	ClientID        string      `json:"clientId"`
	DietitianID     string      `json:"dietitianId"`
	Status          string      `json:"status"`
	LastMessageText string      `json:"lastMessageText"`
	UnreadCount     UnreadCount `json:"unreadCount"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// IsOpen reports whether the chat still accepts engagement from either side.
func (c *Chat) IsOpen() bool {
	return c.Status == ChatStatusWaiting || c.Status == ChatStatusActive
}

type Message struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SenderID    string    `json:"senderId"`
	SenderRole  string    `json:"senderRole"`
	SentAt      time.Time `json:"sentAt"`
	Read        bool      `json:"read"`
	MessageKind string    `json:"messageKind,omitempty"`
	Plan        *Plan     `json:"plan,omitempty"`
}
