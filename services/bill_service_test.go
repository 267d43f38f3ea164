package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nurbekov/courtside/models"
)

func billParty(courtCost, shuttlePrice int) *models.Party {
	return &models.Party{
		ID:                testPartyID,
		HostID:            testHostID,
		Status:            models.PartyStatusActive,
		CourtCostCents:    courtCost,
		ShuttlePriceCents: shuttlePrice,
		MaxPlayers:        20,
	}
}

func billMembers(n int) []models.Member {
	members := make([]models.Member, n)
	for i := range members {
		members[i] = models.Member{PartyID: testPartyID, UserID: 100 + i, Nickname: "m"}
	}
	return members
}

func TestSplitBillEvenDivision(t *testing.T) {
	breakdown := SplitBill(billParty(6000, 500), billMembers(4), 4)

	require.Equal(t, 2000, breakdown.ShuttleCostCents)
	require.Equal(t, 8000, breakdown.TotalCents)
	require.Equal(t, 2000, breakdown.PerHeadCents)
	require.Len(t, breakdown.Shares, 4)
	for _, share := range breakdown.Shares {
		require.Equal(t, 2000, share.AmountCents)
	}
}

func TestSplitBillRemainderSpreadsOverFirstPayers(t *testing.T) {
	// 10001 over 3 people: 3334, 3334, 3333.
	breakdown := SplitBill(billParty(10001, 0), billMembers(3), 0)

	require.Equal(t, 3334, breakdown.PerHeadCents)
	require.Equal(t, 3334, breakdown.Shares[0].AmountCents)
	require.Equal(t, 3334, breakdown.Shares[1].AmountCents)
	require.Equal(t, 3333, breakdown.Shares[2].AmountCents)

	sum := 0
	for _, share := range breakdown.Shares {
		sum += share.AmountCents
	}
	require.Equal(t, breakdown.TotalCents, sum)
}

func TestSplitBillZeroCosts(t *testing.T) {
	breakdown := SplitBill(billParty(0, 0), billMembers(5), 0)

	require.Zero(t, breakdown.TotalCents)
	for _, share := range breakdown.Shares {
		require.Zero(t, share.AmountCents)
	}
}

func TestBillServiceValidation(t *testing.T) {
	svc := NewBillService(
		&fakePartyRepo{parties: map[int]*models.Party{testPartyID: billParty(6000, 500)}},
		&fakeMemberRepo{members: billMembers(4)},
	)

	_, err := svc.Split(context.Background(), testPartyID, -1)
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = svc.Split(context.Background(), testPartyID+1, 0)
	require.ErrorIs(t, err, ErrPartyNotFound)

	breakdown, err := svc.Split(context.Background(), testPartyID, 2)
	require.NoError(t, err)
	require.Equal(t, 7000, breakdown.TotalCents)
}

func TestBillServiceEmptyRoster(t *testing.T) {
	svc := NewBillService(
		&fakePartyRepo{parties: map[int]*models.Party{testPartyID: billParty(6000, 500)}},
		&fakeMemberRepo{},
	)

	_, err := svc.Split(context.Background(), testPartyID, 0)
	require.ErrorIs(t, err, ErrMemberNotFound)
}
