package services

import (
	"context"
	"errors"

	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/repositories"
)

// BillService computes the display-only bill split for a party: court cost
// plus shuttles used, divided over the roster. No payments are processed
// anywhere.
type BillService interface {
	Split(ctx context.Context, partyID, shuttlesUsed int) (*models.BillBreakdown, error)
}

type billService struct {
	partyRepo  repositories.PartyRepository
	memberRepo repositories.MemberRepository
}

func NewBillService(partyRepo repositories.PartyRepository, memberRepo repositories.MemberRepository) BillService {
	return &billService{partyRepo: partyRepo, memberRepo: memberRepo}
}

func (s *billService) Split(ctx context.Context, partyID, shuttlesUsed int) (*models.BillBreakdown, error) {
	if shuttlesUsed < 0 {
		return nil, ErrValidationFailed
	}
	party, err := s.partyRepo.GetByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrPartyNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	members, err := s.memberRepo.ListByParty(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrMemberNotFound
	}

	return SplitBill(party, members, shuttlesUsed), nil
}

// SplitBill is the pure arithmetic: total split evenly in cents. PerHeadCents
// is the rounded-up headline figure; the actual shares spread the remainder
// one cent each over the first members so they always sum to the exact total.
func SplitBill(party *models.Party, members []models.Member, shuttlesUsed int) *models.BillBreakdown {
	shuttleCost := shuttlesUsed * party.ShuttlePriceCents
	total := party.CourtCostCents + shuttleCost

	n := len(members)
	base := total / n
	remainder := total % n

	shares := make([]models.BillShare, n)
	for i, m := range members {
		amount := base
		if i < remainder {
			amount++
		}
		shares[i] = models.BillShare{
			UserID:      m.UserID,
			Nickname:    m.Nickname,
			AmountCents: amount,
		}
	}

	perHead := base
	if remainder > 0 {
		perHead++
	}

	return &models.BillBreakdown{
		PartyID:          party.ID,
		CourtCostCents:   party.CourtCostCents,
		ShuttlesUsed:     shuttlesUsed,
		ShuttleCostCents: shuttleCost,
		TotalCents:       total,
		PerHeadCents:     perHead,
		Shares:           shares,
	}
}
