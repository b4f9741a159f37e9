package services

import (
	"context"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
)

type UserService struct {
	UserRepo *repositories.UserRepository
}

func (s *UserService) GetUsers(ctx context.Context) ([]models.User, error) {
	return s.UserRepo.GetUsers(ctx)
}

func (s *UserService) GetUserByID(ctx context.Context, id int) (models.User, error) {
	return s.UserRepo.GetUserByID(ctx, id)
}

// UpdateRole changes the role of a user account.
func (s *UserService) UpdateRole(ctx context.Context, id int, role string) (models.User, error) {
	if !models.ValidRole(role) {
		return models.User{}, models.NewValidationError("role", "is not a known role")
	}
	if err := s.UserRepo.UpdateRole(ctx, id, role); err != nil {
		return models.User{}, err
	}
	return s.UserRepo.GetUserByID(ctx, id)
}
