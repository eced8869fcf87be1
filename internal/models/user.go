package models

// User is the profile document in the "users" collection. Only the fields the
// chat views need are modeled here; profile management itself lives elsewhere.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	PhotoURL    string `json:"photoURL,omitempty"`
}
