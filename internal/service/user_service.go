package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/cache"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/repository"
	"github.com/orirot10/GIVEIT-sub000/internal/validation"
)

// UserService is the user directory: profiles and registered push endpoints.
type UserService struct {
	userRepo     repository.UserRepositoryInterface
	endpointRepo repository.PushEndpointRepositoryInterface
	profiles     *cache.ProfileCache
	logger       *zap.Logger
}

func NewUserService(userRepo repository.UserRepositoryInterface, endpointRepo repository.PushEndpointRepositoryInterface, profiles *cache.ProfileCache, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		userRepo:     userRepo,
		endpointRepo: endpointRepo,
		profiles:     profiles,
		logger:       logger.Named("users"),
	}
}

type PushEndpointInput struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required,platform"`
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	if userID == 0 {
		return nil, apperr.ErrInvalidID
	}
	if user, ok := s.profiles.Get(ctx, userID); ok {
		return user, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Set(ctx, user); err != nil {
		s.logger.Debug("profile cache write failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return user, nil
}

func (s *UserService) GetPushEndpoints(ctx context.Context, userID uint) ([]models.PushEndpoint, error) {
	return s.endpointRepo.ListByUser(ctx, userID)
}

// RegisterPushEndpoint stores a device token for userID. Registering the same
// token again only refreshes it.
func (s *UserService) RegisterPushEndpoint(ctx context.Context, userID uint, input PushEndpointInput) (*models.PushEndpoint, error) {
	endpoint, err := s.endpointFromInput(userID, input)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.endpointRepo.Upsert(ctx, endpoint); err != nil {
		return nil, err
	}
	s.logger.Info("push endpoint registered", zap.Uint("user_id", userID), zap.String("platform", string(endpoint.Platform)))
	return endpoint, nil
}

func (s *UserService) UnregisterPushEndpoint(ctx context.Context, userID uint, input PushEndpointInput) error {
	endpoint, err := s.endpointFromInput(userID, input)
	if err != nil {
		return err
	}
	return s.RemovePushEndpoint(ctx, userID, endpoint.Token, endpoint.Platform)
}

// RemovePushEndpoint drops a token, e.g. after the provider reported it unregistered.
func (s *UserService) RemovePushEndpoint(ctx context.Context, userID uint, token string, platform models.Platform) error {
	return s.endpointRepo.Delete(ctx, userID, token, platform)
}

func (s *UserService) endpointFromInput(userID uint, input PushEndpointInput) (*models.PushEndpoint, error) {
	if userID == 0 {
		return nil, apperr.ErrInvalidID
	}
	token := validation.NormalizePushToken(input.Token)
	if token == "" {
		return nil, apperr.ErrInvalidPushToken
	}
	if !validation.ValidPlatform(input.Platform) {
		return nil, apperr.ErrInvalidPlatform
	}
	return &models.PushEndpoint{
		UserID:   userID,
		Token:    token,
		Platform: models.ParsePlatform(input.Platform),
	}, nil
}
