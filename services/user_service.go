package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/repositories"
	"github.com/nurbekov/courtside/storage"
)

type UserService interface {
	GetProfile(ctx context.Context, userID int) (*models.User, error)
	UploadAvatar(ctx context.Context, userID int, contentType string, reader io.Reader) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	uploader storage.FileUploader
}

func NewUserService(userRepo repositories.UserRepository, uploader storage.FileUploader) UserService {
	return &userService{userRepo: userRepo, uploader: uploader}
}

func (s *userService) GetProfile(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.resolveAvatar(user)
	return user, nil
}

func (s *userService) UploadAvatar(ctx context.Context, userID int, contentType string, reader io.Reader) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d/%s", userID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}
	if err := s.userRepo.UpdateAvatarKey(ctx, userID, &result.Key); err != nil {
		return nil, err
	}

	// Old avatar object is best-effort garbage.
	if user.AvatarKey != nil && *user.AvatarKey != "" {
		_ = s.uploader.Delete(ctx, *user.AvatarKey)
	}
	user.AvatarKey = &result.Key
	s.resolveAvatar(user)
	return user, nil
}

func (s *userService) resolveAvatar(user *models.User) {
	if user.AvatarKey != nil && *user.AvatarKey != "" {
		url := s.uploader.GetPublicURL(*user.AvatarKey)
		user.AvatarURL = &url
	}
}
