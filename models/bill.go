package models

// BillShare is one participant's slice of the party bill.
type BillShare struct {
	UserID      int    `json:"user_id"`
	Nickname    string `json:"nickname"`
	AmountCents int    `json:"amount_cents"`
}

// BillBreakdown is the full split: court cost plus shuttles used, divided
// evenly with the remainder spread over the first payers.
type BillBreakdown struct {
	PartyID          int         `json:"party_id"`
	CourtCostCents   int         `json:"court_cost_cents"`
	ShuttlesUsed     int         `json:"shuttles_used"`
	ShuttleCostCents int         `json:"shuttle_cost_cents"`
	TotalCents       int         `json:"total_cents"`
	PerHeadCents     int         `json:"per_head_cents"`
	Shares           []BillShare `json:"shares"`
}
