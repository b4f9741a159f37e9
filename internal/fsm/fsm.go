package fsm

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voyanceBack/internal/models"
)

var (
	// ErrInvalidTransition is returned when the target status is not reachable from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStaleStatus is returned when the row no longer holds the expected status.
	ErrStaleStatus = errors.New("conversation status changed concurrently")
)

var transitions = map[string]map[string]struct{}{
	models.ConversationActive: {
		models.ConversationCompleted: {},
		models.ConversationCancelled: {},
	},
	models.ConversationCompleted: {},
	models.ConversationCancelled: {},
}

// CanTransition returns whether a conversation can move from the current status to the target status.
func CanTransition(from, to string) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	allowed, ok := transitions[status]
	return ok && len(allowed) == 0
}

// Apply flips a conversation status inside tx using optimistic validation and stamps endedAt.
func Apply(ctx context.Context, tx *sql.Tx, conversationID int, fromStatus, toStatus string, at time.Time) error {
	if !CanTransition(fromStatus, toStatus) {
		return ErrInvalidTransition
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET status = ?, ended_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		toStatus, at, at, conversationID, fromStatus)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaleStatus
	}
	return nil
}
