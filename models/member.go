package models

import "time"

// Member is one user's membership in a party roster.
type Member struct {
	ID       int        `json:"id"`
	PartyID  int        `json:"party_id"`
	UserID   int        `json:"user_id"`
	Level    SkillLevel `json:"level,omitempty"`
	JoinedAt time.Time  `json:"joined_at"`

	// Denormalized from users on read.
	Nickname  string  `json:"nickname,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
