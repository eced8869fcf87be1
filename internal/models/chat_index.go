package models

const (
	AvailabilityOnline  = "online"
	AvailabilityBusy    = "busy"
	AvailabilityOffline = "offline"
)

// ChatIndex is the per-user denormalized roster document ("userChats" /
// "dietitianChats"). Chat ids are append-only; ids stay listed after a chat
// closes. Availability and the aggregate unread count are only meaningful on
// dietitian index documents.
type ChatIndex struct {
	ActiveChatIDs []string `json:"activeChatIds"`
	UnreadCount   int      `json:"unreadCount"`
	Availability  string   `json:"availability,omitempty"`
}

func ValidAvailability(status string) bool {
	switch status {
	case AvailabilityOnline, AvailabilityBusy, AvailabilityOffline:
		return true
	default:
		return false
	}
}
