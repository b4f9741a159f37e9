package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"voyanceBack/internal/models"
)

func TestMinutePackSumAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(minutes_remaining\\), 0\\) FROM minute_packs").
		WithArgs(7, now).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(35))

	repo := MinutePackRepository{DB: db}
	total, err := repo.SumAvailable(context.Background(), 7, now)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 35 {
		t.Fatalf("expected 35, got %d", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMinutePackSetRemainingFlagsExhausted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE minute_packs SET minutes_remaining").
		WithArgs(0, true, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE minute_packs SET minutes_remaining").
		WithArgs(4, false, sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := MinutePackRepository{DB: db}
	if err := repo.SetRemaining(context.Background(), 3, -2); err != nil {
		t.Fatalf("set remaining: %v", err)
	}
	if err := repo.SetRemaining(context.Background(), 9, 4); !errors.Is(err, models.ErrMinutePackNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMinutePackListAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)

	cols := []string{"id", "client_id", "minutes", "minutes_remaining", "reason", "expires_at", "is_used", "created_at", "updated_at"}
	mock.ExpectQuery("FROM minute_packs\\s+WHERE client_id = \\? AND is_used = FALSE").
		WithArgs(2, now).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(5, 2, 30, 12, "purchase:30", expires, false, now, now).
			AddRow(4, 2, 5, 5, "gift", nil, false, now, now))

	repo := MinutePackRepository{DB: db}
	packs, err := repo.ListAvailable(context.Background(), 2, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(packs) != 2 {
		t.Fatalf("expected 2 packs, got %d", len(packs))
	}
	if packs[0].ExpiresAt == nil || !packs[0].ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected expiry %v", packs[0].ExpiresAt)
	}
	if packs[1].ExpiresAt != nil {
		t.Fatal("expected nil expiry for second pack")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
