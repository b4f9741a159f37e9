package services

import (
	"context"
	"database/sql"
	"time"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
)

type ClientService struct {
	DB         *sql.DB
	ClientRepo *repositories.ClientRepository
	PackRepo   *repositories.MinutePackRepository
	Now        func() time.Time
}

func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	return s.ClientRepo.List(ctx)
}

func (s *ClientService) Get(ctx context.Context, id int) (models.Client, error) {
	return s.ClientRepo.GetByID(ctx, id)
}

// Delete removes the client's user account and its packs. A client with
// conversations or payments is refused with ErrInUse.
func (s *ClientService) Delete(ctx context.Context, id int) error {
	client, err := s.ClientRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := (&repositories.ClientRepository{DB: tx}).Delete(ctx, client.ID); err != nil {
			return err
		}
		return (&repositories.UserRepository{DB: tx}).DeleteUser(ctx, client.UserID)
	})
}

// Profile returns the client with the minutes it can still consume.
func (s *ClientService) Profile(ctx context.Context, clientID int) (models.ClientProfile, error) {
	client, err := s.ClientRepo.GetByID(ctx, clientID)
	if err != nil {
		return models.ClientProfile{}, err
	}
	available, err := s.PackRepo.SumAvailable(ctx, clientID, nowOr(s.Now))
	if err != nil {
		return models.ClientProfile{}, err
	}
	return models.ClientProfile{Client: client, AvailableMinutes: available}, nil
}
