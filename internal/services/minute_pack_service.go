package services

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
)

const expireBatchSize = 200

// maxGrantMinutes bounds a single grant so the INT counters cannot overflow.
const maxGrantMinutes = 100000

type MinutePackService struct {
	DB         *sql.DB
	PackRepo   *repositories.MinutePackRepository
	ClientRepo *repositories.ClientRepository
	Validity   time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

func (s *MinutePackService) validity() time.Duration {
	if s.Validity <= 0 {
		return billing.PackValidity
	}
	return s.Validity
}

// Grant credits a client with a new pack of minutes.
func (s *MinutePackService) Grant(ctx context.Context, req models.GrantMinutesRequest) (models.MinutePack, error) {
	if req.ClientID <= 0 {
		return models.MinutePack{}, models.NewValidationError("client_id", "is required")
	}
	if req.Minutes <= 0 {
		return models.MinutePack{}, models.NewValidationError("minutes", "must be positive")
	}
	if req.Minutes > maxGrantMinutes {
		return models.MinutePack{}, models.NewValidationError("minutes", "must be at most 100000")
	}
	if utf8.RuneCountInString(req.Reason) > 255 {
		return models.MinutePack{}, models.NewValidationError("reason", "must be at most 255 characters")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "admin_grant"
	}

	var pack models.MinutePack
	err := repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		pack, err = s.GrantTx(ctx, tx, req.ClientID, req.Minutes, reason)
		return err
	})
	if err != nil {
		return models.MinutePack{}, err
	}
	loggerOrDefault(s.Logger).Info("minutes granted", "client_id", req.ClientID, "minutes", req.Minutes, "reason", reason)
	return pack, nil
}

// GrantTx inserts a pack and raises the client's available counter inside tx.
func (s *MinutePackService) GrantTx(ctx context.Context, tx *sql.Tx, clientID, minutes int, reason string) (models.MinutePack, error) {
	clients := &repositories.ClientRepository{DB: tx}
	if _, err := clients.LockByID(ctx, clientID); err != nil {
		return models.MinutePack{}, err
	}
	expires := nowOr(s.Now).Add(s.validity())
	pack, err := (&repositories.MinutePackRepository{DB: tx}).Create(ctx, models.MinutePack{
		ClientID:         clientID,
		Minutes:          minutes,
		MinutesRemaining: minutes,
		Reason:           reason,
		ExpiresAt:        &expires,
	})
	if err != nil {
		return models.MinutePack{}, err
	}
	if err := clients.AdjustMinutes(ctx, clientID, minutes, 0); err != nil {
		return models.MinutePack{}, err
	}
	return pack, nil
}

// DrawTx consumes up to n minutes from the client's packs, soonest expiry first,
// and returns how many were taken. It never fails for lack of minutes.
func (s *MinutePackService) DrawTx(ctx context.Context, tx *sql.Tx, clientID, n int) (int, error) {
	return s.drawTx(ctx, tx, clientID, n, true)
}

// ConsumeTx consumes exactly n minutes or returns ErrInsufficientMinutes without writing.
func (s *MinutePackService) ConsumeTx(ctx context.Context, tx *sql.Tx, clientID, n int) error {
	_, err := s.drawTx(ctx, tx, clientID, n, false)
	return err
}

func (s *MinutePackService) drawTx(ctx context.Context, tx *sql.Tx, clientID, n int, partial bool) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	packs := &repositories.MinutePackRepository{DB: tx}
	available, err := packs.LockAvailable(ctx, clientID, nowOr(s.Now))
	if err != nil {
		return 0, err
	}
	balances := make([]billing.Balance, 0, len(available))
	for _, p := range available {
		balances = append(balances, billing.Balance{PackID: p.ID, Remaining: p.MinutesRemaining, ExpiresAt: p.ExpiresAt})
	}
	draws, shortfall := billing.Allocate(balances, n)
	if shortfall > 0 && !partial {
		return 0, models.ErrInsufficientMinutes
	}
	for _, d := range draws {
		if err := packs.SetRemaining(ctx, d.PackID, d.Remaining); err != nil {
			return 0, err
		}
	}
	taken := n - shortfall
	if taken > 0 {
		if err := (&repositories.ClientRepository{DB: tx}).AdjustMinutes(ctx, clientID, -taken, 0); err != nil {
			return 0, err
		}
	}
	return taken, nil
}

// Consume draws exactly n minutes in its own transaction.
func (s *MinutePackService) Consume(ctx context.Context, clientID, n int) error {
	if n <= 0 {
		return models.NewValidationError("minutes", "must be positive")
	}
	return repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		return s.ConsumeTx(ctx, tx, clientID, n)
	})
}

// ListAvailable returns the client's unused, unexpired packs, newest first.
func (s *MinutePackService) ListAvailable(ctx context.Context, clientID int) ([]models.MinutePack, error) {
	return s.PackRepo.ListAvailable(ctx, clientID, nowOr(s.Now))
}

func (s *MinutePackService) Available(ctx context.Context, clientID int) (int, error) {
	return s.PackRepo.SumAvailable(ctx, clientID, nowOr(s.Now))
}

func (s *MinutePackService) Summary(ctx context.Context, clientID int) (models.MinutesSummary, error) {
	packs, err := s.ListAvailable(ctx, clientID)
	if err != nil {
		return models.MinutesSummary{}, err
	}
	total := 0
	for _, p := range packs {
		total += p.MinutesRemaining
	}
	return models.MinutesSummary{Packs: packs, AvailableMinutes: total}, nil
}

// ListAll returns every pack of a client including used and expired ones.
func (s *MinutePackService) ListAll(ctx context.Context, clientID int) ([]models.MinutePack, error) {
	if _, err := s.ClientRepo.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	return s.PackRepo.ListByClient(ctx, clientID)
}

// ExpirePacks closes packs whose validity ended and removes their minutes from the
// owning clients' counters. It returns the number of packs expired.
func (s *MinutePackService) ExpirePacks(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.expireBatch(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n < expireBatchSize {
			break
		}
	}
	if total > 0 {
		loggerOrDefault(s.Logger).Info("minute packs expired", "count", total)
	}
	return total, nil
}

func (s *MinutePackService) expireBatch(ctx context.Context) (int, error) {
	var n int
	err := repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		packs := &repositories.MinutePackRepository{DB: tx}
		clients := &repositories.ClientRepository{DB: tx}
		expired, err := packs.LockExpired(ctx, nowOr(s.Now), expireBatchSize)
		if err != nil {
			return err
		}
		for _, p := range expired {
			if err := packs.SetRemaining(ctx, p.ID, 0); err != nil {
				return err
			}
			if p.MinutesRemaining > 0 {
				if err := clients.AdjustMinutes(ctx, p.ClientID, -p.MinutesRemaining, 0); err != nil {
					return err
				}
			}
		}
		n = len(expired)
		return nil
	})
	return n, err
}

// RevokeTx closes an untouched pack and removes its minutes from the client.
func (s *MinutePackService) RevokeTx(ctx context.Context, tx *sql.Tx, packID int) (models.MinutePack, error) {
	packs := &repositories.MinutePackRepository{DB: tx}
	pack, err := packs.LockByID(ctx, packID)
	if err != nil {
		return models.MinutePack{}, err
	}
	if !pack.Untouched() {
		return models.MinutePack{}, models.ErrPackAlreadyConsumed
	}
	if err := packs.SetRemaining(ctx, pack.ID, 0); err != nil {
		return models.MinutePack{}, err
	}
	if err := (&repositories.ClientRepository{DB: tx}).AdjustMinutes(ctx, pack.ClientID, -pack.Minutes, 0); err != nil {
		return models.MinutePack{}, err
	}
	pack.MinutesRemaining = 0
	pack.IsUsed = true
	return pack, nil
}
