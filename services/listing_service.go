package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/repositories"
	"github.com/nurbekov/courtside/storage"
)

type ListingInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	PriceCents  int     `json:"price_cents"`
	Condition   string  `json:"condition"`
}

type ListingService interface {
	Create(ctx context.Context, sellerID int, input ListingInput) (*models.Listing, error)
	GetByID(ctx context.Context, id int) (*models.Listing, error)
	List(ctx context.Context, status *models.ListingStatus, limit, offset int) ([]models.Listing, error)
	Update(ctx context.Context, id, userID int, input ListingInput) (*models.Listing, error)
	MarkSold(ctx context.Context, id, userID int) (*models.Listing, error)
	Delete(ctx context.Context, id, userID int) error
	UploadPhoto(ctx context.Context, id, userID int, contentType string, reader io.Reader) (*models.Listing, error)
}

type listingService struct {
	listingRepo repositories.ListingRepository
	uploader    storage.FileUploader
}

func NewListingService(listingRepo repositories.ListingRepository, uploader storage.FileUploader) ListingService {
	return &listingService{listingRepo: listingRepo, uploader: uploader}
}

func validateListingInput(input *ListingInput) error {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return ErrListingTitleRequired
	}
	if input.PriceCents < 0 {
		return ErrInvalidPrice
	}
	return nil
}

func (s *listingService) Create(ctx context.Context, sellerID int, input ListingInput) (*models.Listing, error) {
	if err := validateListingInput(&input); err != nil {
		return nil, err
	}
	listing := &models.Listing{
		SellerID:    sellerID,
		Title:       input.Title,
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Condition:   input.Condition,
		Status:      models.ListingStatusAvailable,
	}
	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	return listing, nil
}

func (s *listingService) GetByID(ctx context.Context, id int) (*models.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrListingNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	s.resolvePhoto(listing)
	return listing, nil
}

func (s *listingService) List(ctx context.Context, status *models.ListingStatus, limit, offset int) ([]models.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	listings, err := s.listingRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		s.resolvePhoto(&listings[i])
	}
	return listings, nil
}

func (s *listingService) Update(ctx context.Context, id, userID int, input ListingInput) (*models.Listing, error) {
	listing, err := s.requireSeller(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := validateListingInput(&input); err != nil {
		return nil, err
	}

	listing.Title = input.Title
	listing.Description = input.Description
	listing.PriceCents = input.PriceCents
	listing.Condition = input.Condition
	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, err
	}
	s.resolvePhoto(listing)
	return listing, nil
}

func (s *listingService) MarkSold(ctx context.Context, id, userID int) (*models.Listing, error) {
	listing, err := s.requireSeller(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	listing.Status = models.ListingStatusSold
	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, err
	}
	s.resolvePhoto(listing)
	return listing, nil
}

func (s *listingService) Delete(ctx context.Context, id, userID int) error {
	listing, err := s.requireSeller(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.listingRepo.Delete(ctx, id); err != nil {
		return err
	}
	if listing.PhotoKey != nil && *listing.PhotoKey != "" {
		_ = s.uploader.Delete(ctx, *listing.PhotoKey)
	}
	return nil
}

func (s *listingService) UploadPhoto(ctx context.Context, id, userID int, contentType string, reader io.Reader) (*models.Listing, error) {
	listing, err := s.requireSeller(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("listings/%d/%s", id, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload listing photo: %w", err)
	}

	oldKey := listing.PhotoKey
	listing.PhotoKey = &result.Key
	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != "" {
		_ = s.uploader.Delete(ctx, *oldKey)
	}
	s.resolvePhoto(listing)
	return listing, nil
}

func (s *listingService) requireSeller(ctx context.Context, id, userID int) (*models.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrListingNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if listing.SellerID != userID {
		return nil, ErrSellerOnly
	}
	return listing, nil
}

func (s *listingService) resolvePhoto(listing *models.Listing) {
	if listing.PhotoKey != nil && *listing.PhotoKey != "" {
		url := s.uploader.GetPublicURL(*listing.PhotoKey)
		listing.PhotoURL = &url
	}
}
