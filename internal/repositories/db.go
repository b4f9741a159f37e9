package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"

	"voyanceBack/internal/models"
)

// DBTX is implemented by both *sql.DB and *sql.Tx so a repository can be bound to either.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	if db == nil {
		return models.ErrStorageUnavailable
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

// storageErr normalises connection-level driver failures to ErrStorageUnavailable.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrStorageUnavailable) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return err
}

// StorageError normalises a driver error raised by a statement issued outside this package.
func StorageError(err error) error {
	return storageErr(err)
}

// notFound maps sql.ErrNoRows to the given sentinel and normalises everything else.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return storageErr(err)
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func isForeignKeyViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1452
}

// isReferenced reports a delete refused by a RESTRICT foreign key.
func isReferenced(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1451
}

// deleteErr maps a failed DELETE to ErrInUse when other rows still point at it.
func deleteErr(err error) error {
	if isReferenced(err) {
		return models.ErrInUse
	}
	return storageErr(err)
}

func lastInsertID(res sql.Result) (int, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

// expectAffected returns sentinel when res touched no row.
func expectAffected(res sql.Result, sentinel error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sentinel
	}
	return nil
}
