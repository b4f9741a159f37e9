package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/models"
)

func TestGrantValidatesInput(t *testing.T) {
	svc := &MinutePackService{}
	cases := []models.GrantMinutesRequest{
		{ClientID: 0, Minutes: 5},
		{ClientID: 3, Minutes: 0},
		{ClientID: 3, Minutes: -4},
		{ClientID: 3, Minutes: maxGrantMinutes + 1},
		{ClientID: 3, Minutes: 3_000_000_000},
		{ClientID: 3, Minutes: 5, Reason: strings.Repeat("r", 256)},
	}
	for _, req := range cases {
		if _, err := svc.Grant(context.Background(), req); !models.IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestGrantCreatesPackAndRaisesCounter(t *testing.T) {
	db, mock := newMock(t)
	svc := newPackService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM clients WHERE id = \\? FOR UPDATE").WithArgs(4).
		WillReturnRows(clientRow(4, 10, "alice", true))
	mock.ExpectExec("INSERT INTO minute_packs").
		WithArgs(4, 15, 15, "gift", sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("UPDATE clients\\s+SET total_minutes_available").
		WithArgs(15, 0, sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pack, err := svc.Grant(context.Background(), models.GrantMinutesRequest{ClientID: 4, Minutes: 15, Reason: " gift "})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if pack.ID != 11 || pack.MinutesRemaining != 15 || pack.IsUsed {
		t.Fatalf("unexpected pack %+v", pack)
	}
	if pack.ExpiresAt == nil || !pack.ExpiresAt.Equal(testNow.Add(billing.PackValidity)) {
		t.Fatalf("pack must expire after the validity period, got %v", pack.ExpiresAt)
	}
}

func TestGrantUnknownClientRollsBack(t *testing.T) {
	db, mock := newMock(t)
	svc := newPackService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM clients WHERE id = \\? FOR UPDATE").WithArgs(9).
		WillReturnRows(sqlmock.NewRows(clientCols))
	mock.ExpectRollback()

	_, err := svc.Grant(context.Background(), models.GrantMinutesRequest{ClientID: 9, Minutes: 5})
	if !errors.Is(err, models.ErrClientNotFound) {
		t.Fatalf("expected client not found, got %v", err)
	}
}

func TestDrawTxTakesSoonestExpiringFirst(t *testing.T) {
	db, mock := newMock(t)
	svc := newPackService(db)
	soon := testNow.Add(48 * time.Hour)
	later := testNow.Add(240 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM minute_packs\\s+WHERE client_id = \\?").WithArgs(7, testNow).
		WillReturnRows(sqlmock.NewRows(packCols).
			AddRow(2, 7, 10, 10, "purchase:15", later, false, testNow, testNow).
			AddRow(1, 7, 5, 3, "gift", soon, false, testNow, testNow))
	mock.ExpectExec("UPDATE minute_packs SET minutes_remaining").
		WithArgs(0, true, sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE minute_packs SET minutes_remaining").
		WithArgs(8, false, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE clients").
		WithArgs(-5, 0, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	taken, err := svc.DrawTx(context.Background(), tx, 7, 5)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if taken != 5 {
		t.Fatalf("expected 5 minutes taken, got %d", taken)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestConsumeInsufficientMinutesWritesNothing(t *testing.T) {
	db, mock := newMock(t)
	svc := newPackService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM minute_packs\\s+WHERE client_id = \\?").WithArgs(7, testNow).
		WillReturnRows(sqlmock.NewRows(packCols).
			AddRow(1, 7, 5, 3, "gift", testNow.Add(time.Hour), false, testNow, testNow))
	mock.ExpectRollback()

	if err := svc.Consume(context.Background(), 7, 5); !errors.Is(err, models.ErrInsufficientMinutes) {
		t.Fatalf("expected insufficient minutes, got %v", err)
	}
}

func TestExpirePacksReleasesRemainingMinutes(t *testing.T) {
	db, mock := newMock(t)
	svc := newPackService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE is_used = FALSE AND expires_at IS NOT NULL").WithArgs(testNow, expireBatchSize).
		WillReturnRows(sqlmock.NewRows(packCols).
			AddRow(6, 3, 15, 4, "purchase:15", testNow.Add(-time.Hour), false, testNow, testNow))
	mock.ExpectExec("UPDATE minute_packs SET minutes_remaining").
		WithArgs(0, true, sqlmock.AnyArg(), 6).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE clients").
		WithArgs(-4, 0, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := svc.ExpirePacks(context.Background())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired pack, got %d", n)
	}
}

func TestRevokeTxRejectsConsumedPack(t *testing.T) {
	db, mock := newMock(t)
	svc := newPackService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM minute_packs WHERE id = \\? FOR UPDATE").WithArgs(5).
		WillReturnRows(sqlmock.NewRows(packCols).
			AddRow(5, 3, 15, 14, "purchase:15", testNow.Add(time.Hour), false, testNow, testNow))
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.RevokeTx(context.Background(), tx, 5); !errors.Is(err, models.ErrPackAlreadyConsumed) {
		t.Fatalf("expected already consumed, got %v", err)
	}
	_ = tx.Rollback()
}
