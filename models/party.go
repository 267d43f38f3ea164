package models

import "time"

// PartyStatus matches the ENUM in the database.
type PartyStatus string

const (
	PartyStatusUpcoming PartyStatus = "upcoming"
	PartyStatusActive   PartyStatus = "active"
	PartyStatusFinished PartyStatus = "finished"
	PartyStatusCanceled PartyStatus = "canceled"
)

// Party is one scheduled badminton meetup. The host owns the session
// coordinator for it; everyone else is a viewer.
type Party struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Location    *string     `json:"location,omitempty"`
	HostID      int         `json:"host_id"`
	StartsAt    time.Time   `json:"starts_at"`
	// CourtCostCents and ShuttlePriceCents feed the bill split; money is
	// display-only, there is no payment processing.
	CourtCostCents    int         `json:"court_cost_cents"`
	ShuttlePriceCents int         `json:"shuttle_price_cents"`
	MaxPlayers        int         `json:"max_players"`
	Status            PartyStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`

	Host    *User    `json:"host,omitempty"`
	Members []Member `json:"members,omitempty"`
}
