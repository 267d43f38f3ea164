package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/repositories"
)

type PartyInput struct {
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	Location          *string   `json:"location"`
	StartsAt          time.Time `json:"starts_at"`
	CourtCostCents    int       `json:"court_cost_cents"`
	ShuttlePriceCents int       `json:"shuttle_price_cents"`
	MaxPlayers        int       `json:"max_players"`
}

type PartyService interface {
	Create(ctx context.Context, hostID int, input PartyInput) (*models.Party, error)
	GetByID(ctx context.Context, id int) (*models.Party, error)
	List(ctx context.Context, status *models.PartyStatus, limit, offset int) ([]models.Party, error)
	Update(ctx context.Context, id, userID int, input PartyInput) (*models.Party, error)
	Cancel(ctx context.Context, id, userID int, confirm bool) error
}

type partyService struct {
	partyRepo  repositories.PartyRepository
	memberRepo repositories.MemberRepository
}

func NewPartyService(partyRepo repositories.PartyRepository, memberRepo repositories.MemberRepository) PartyService {
	return &partyService{partyRepo: partyRepo, memberRepo: memberRepo}
}

func validatePartyInput(input *PartyInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return ErrPartyNameRequired
	}
	if input.CourtCostCents < 0 || input.ShuttlePriceCents < 0 {
		return ErrInvalidPrice
	}
	if input.MaxPlayers <= 0 {
		input.MaxPlayers = 20
	}
	return nil
}

func (s *partyService) Create(ctx context.Context, hostID int, input PartyInput) (*models.Party, error) {
	if err := validatePartyInput(&input); err != nil {
		return nil, err
	}

	party := &models.Party{
		Name:              input.Name,
		Description:       input.Description,
		Location:          input.Location,
		HostID:            hostID,
		StartsAt:          input.StartsAt,
		CourtCostCents:    input.CourtCostCents,
		ShuttlePriceCents: input.ShuttlePriceCents,
		MaxPlayers:        input.MaxPlayers,
		Status:            models.PartyStatusUpcoming,
	}
	if err := s.partyRepo.Create(ctx, party); err != nil {
		return nil, fmt.Errorf("failed to create party: %w", err)
	}

	// The host plays too: auto-join them to their own roster.
	member := &models.Member{PartyID: party.ID, UserID: hostID}
	if err := s.memberRepo.Add(ctx, member); err != nil && !errors.Is(err, repositories.ErrAlreadyMember) {
		return nil, fmt.Errorf("failed to add host to party %d: %w", party.ID, err)
	}
	return party, nil
}

func (s *partyService) GetByID(ctx context.Context, id int) (*models.Party, error) {
	party, err := s.partyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPartyNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	members, err := s.memberRepo.ListByParty(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of party %d: %w", id, err)
	}
	party.Members = members
	return party, nil
}

func (s *partyService) List(ctx context.Context, status *models.PartyStatus, limit, offset int) ([]models.Party, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.partyRepo.List(ctx, status, limit, offset)
}

func (s *partyService) Update(ctx context.Context, id, userID int, input PartyInput) (*models.Party, error) {
	party, err := s.requireHost(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := validatePartyInput(&input); err != nil {
		return nil, err
	}

	party.Name = input.Name
	party.Description = input.Description
	party.Location = input.Location
	party.StartsAt = input.StartsAt
	party.CourtCostCents = input.CourtCostCents
	party.ShuttlePriceCents = input.ShuttlePriceCents
	party.MaxPlayers = input.MaxPlayers
	if err := s.partyRepo.Update(ctx, party); err != nil {
		return nil, fmt.Errorf("failed to update party %d: %w", id, err)
	}
	return party, nil
}

func (s *partyService) Cancel(ctx context.Context, id, userID int, confirm bool) error {
	if _, err := s.requireHost(ctx, id, userID); err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmationRequired
	}
	return s.partyRepo.UpdateStatus(ctx, id, models.PartyStatusCanceled)
}

func (s *partyService) requireHost(ctx context.Context, partyID, userID int) (*models.Party, error) {
	party, err := s.partyRepo.GetByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrPartyNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	if party.HostID != userID {
		return nil, ErrHostOnly
	}
	return party, nil
}
