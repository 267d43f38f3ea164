package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/repositories"
	"github.com/nurbekov/courtside/storage"
)

type MemberService interface {
	Join(ctx context.Context, partyID, userID int, level models.SkillLevel) (*models.Member, error)
	Leave(ctx context.Context, partyID, userID, actorID int) error
	ListByParty(ctx context.Context, partyID int) ([]models.Member, error)
	SetLevel(ctx context.Context, partyID, userID, actorID int, level models.SkillLevel) error
}

type memberService struct {
	memberRepo repositories.MemberRepository
	partyRepo  repositories.PartyRepository
	uploader   storage.FileUploader
}

func NewMemberService(
	memberRepo repositories.MemberRepository,
	partyRepo repositories.PartyRepository,
	uploader storage.FileUploader,
) MemberService {
	return &memberService{
		memberRepo: memberRepo,
		partyRepo:  partyRepo,
		uploader:   uploader,
	}
}

func (s *memberService) Join(ctx context.Context, partyID, userID int, level models.SkillLevel) (*models.Member, error) {
	if level != "" && !level.Valid() {
		return nil, ErrInvalidSkillLevel
	}
	party, err := s.partyRepo.GetByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrPartyNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	if party.Status != models.PartyStatusUpcoming && party.Status != models.PartyStatusActive {
		return nil, ErrPartyNotJoinable
	}

	count, err := s.memberRepo.CountByParty(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members of party %d: %w", partyID, err)
	}
	if count >= party.MaxPlayers {
		return nil, ErrPartyFull
	}

	member := &models.Member{PartyID: partyID, UserID: userID, Level: level}
	if err := s.memberRepo.Add(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrAlreadyMember) {
			return nil, ErrValidationFailed
		}
		return nil, err
	}
	return member, nil
}

// Leave removes a member. Members may remove themselves; the host may
// remove anyone.
func (s *memberService) Leave(ctx context.Context, partyID, userID, actorID int) error {
	if userID != actorID {
		party, err := s.partyRepo.GetByID(ctx, partyID)
		if err != nil {
			if errors.Is(err, repositories.ErrPartyNotFound) {
				return ErrPartyNotFound
			}
			return err
		}
		if party.HostID != actorID {
			return ErrForbiddenOperation
		}
	}
	if err := s.memberRepo.Remove(ctx, partyID, userID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

func (s *memberService) ListByParty(ctx context.Context, partyID int) ([]models.Member, error) {
	members, err := s.memberRepo.ListByParty(ctx, partyID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].AvatarURL != nil && *members[i].AvatarURL != "" {
			url := s.uploader.GetPublicURL(*members[i].AvatarURL)
			members[i].AvatarURL = &url
		}
	}
	return members, nil
}

// SetLevel updates the skill tag used by the matchmaking weighting. Self
// service for members, or the host for anyone.
func (s *memberService) SetLevel(ctx context.Context, partyID, userID, actorID int, level models.SkillLevel) error {
	if !level.Valid() {
		return ErrInvalidSkillLevel
	}
	if userID != actorID {
		party, err := s.partyRepo.GetByID(ctx, partyID)
		if err != nil {
			if errors.Is(err, repositories.ErrPartyNotFound) {
				return ErrPartyNotFound
			}
			return err
		}
		if party.HostID != actorID {
			return ErrForbiddenOperation
		}
	}
	if err := s.memberRepo.UpdateLevel(ctx, partyID, userID, level); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}
