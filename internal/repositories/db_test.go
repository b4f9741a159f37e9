package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"voyanceBack/internal/models"
)

func TestStorageErr(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"bad conn", driver.ErrBadConn, true},
		{"invalid conn", mysql.ErrInvalidConn, true},
		{"wrapped conn done", fmt.Errorf("query: %w", sql.ErrConnDone), true},
		{"duplicate key", &mysql.MySQLError{Number: 1062, Message: "dup"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := storageErr(tc.err)
			if errors.Is(got, models.ErrStorageUnavailable) != tc.unavailable {
				t.Fatalf("storageErr(%v) = %v", tc.err, got)
			}
		})
	}
	if storageErr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?,?,?" {
		t.Fatalf("unexpected placeholders %q", got)
	}
	if got := placeholders(0); got != "" {
		t.Fatalf("unexpected placeholders %q", got)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("stop")
	err = WithTx(context.Background(), db, func(tx *sql.Tx) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := WithTx(context.Background(), db, func(tx *sql.Tx) error { return nil }); err != nil {
		t.Fatalf("commit path: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
	if err := WithTx(context.Background(), nil, func(tx *sql.Tx) error { return nil }); !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable for nil db, got %v", err)
	}
}

func TestDeleteReferencedRowIsInUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	fkErr := &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"}
	mock.ExpectExec("DELETE FROM voyants WHERE id = \\?").WithArgs(2).WillReturnError(fkErr)
	mock.ExpectExec("DELETE FROM agents WHERE id = \\?").WithArgs(8).WillReturnError(fkErr)
	mock.ExpectExec("DELETE FROM clients WHERE id = \\?").WithArgs(3).WillReturnError(fkErr)
	mock.ExpectExec("DELETE FROM voyants WHERE id = \\?").WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := (&VoyantRepository{DB: db}).Delete(ctx, 2); !errors.Is(err, models.ErrInUse) {
		t.Fatalf("voyant: expected ErrInUse, got %v", err)
	}
	if err := (&AgentRepository{DB: db}).Delete(ctx, 8); !errors.Is(err, models.ErrInUse) {
		t.Fatalf("agent: expected ErrInUse, got %v", err)
	}
	if err := (&ClientRepository{DB: db}).Delete(ctx, 3); !errors.Is(err, models.ErrInUse) {
		t.Fatalf("client: expected ErrInUse, got %v", err)
	}
	if err := (&VoyantRepository{DB: db}).Delete(ctx, 4); err != nil {
		t.Fatalf("unreferenced voyant: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
