package services

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/ws"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

var (
	clientCols       = []string{"id", "user_id", "username", "password_hash", "total_minutes_available", "total_minutes_used", "total_spent", "is_active", "last_activity_at", "created_at", "updated_at"}
	agentCols        = []string{"id", "user_id", "username", "password_hash", "is_active", "total_earnings", "total_minutes_served", "total_clients", "is_online", "last_activity_at", "fcm_token", "created_at", "updated_at"}
	voyantCols       = []string{"id", "agent_id", "name", "specialty", "description", "image_url", "price_per_minute", "rating", "total_reviews", "is_active", "created_at", "updated_at"}
	packCols         = []string{"id", "client_id", "minutes", "minutes_remaining", "reason", "expires_at", "is_used", "created_at", "updated_at"}
	conversationCols = []string{"id", "client_id", "voyant_id", "agent_id", "status", "minutes_used", "total_cost", "started_at", "ended_at", "created_at", "updated_at"}
	paymentCols      = []string{"id", "client_id", "pack_type", "minutes", "amount_cents", "currency", "status", "provider_id", "minute_pack_id", "created_at", "updated_at"}
	userCols         = []string{"id", "name", "email", "phone", "login_method", "role", "password_hash", "last_signed_in", "created_at", "updated_at"}
	reviewCols       = []string{"id", "voyant_id", "client_id", "rating", "comment", "is_approved", "is_published", "created_by_admin", "created_at", "updated_at"}
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func clientRow(id, userID int, username string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(clientCols).AddRow(id, userID, username, "", 0, 0, 0.0, active, nil, testNow, testNow)
}

func agentRow(id, userID int, username, hash string, active bool, fcm string) *sqlmock.Rows {
	return sqlmock.NewRows(agentCols).AddRow(id, userID, username, hash, active, 0.0, 0, 0, false, nil, fcm, testNow, testNow)
}

func voyantRow(id, agentID int, price float64, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(voyantCols).AddRow(id, agentID, "Madame Irma", "tarot", "", "", price, 5.0, 0, active, testNow, testNow)
}

func conversationRow(c models.Conversation) *sqlmock.Rows {
	return sqlmock.NewRows(conversationCols).AddRow(c.ID, c.ClientID, c.VoyantID, c.AgentID, c.Status,
		c.MinutesUsed, c.TotalCost, c.StartedAt, nil, c.StartedAt, c.StartedAt)
}

type recordedEvent struct {
	evt          ws.Event
	participants []string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(evt ws.Event, participants ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{evt: evt, participants: participants})
}

func newPackService(db *sql.DB) *MinutePackService {
	return &MinutePackService{
		DB:         db,
		PackRepo:   &repositories.MinutePackRepository{DB: db},
		ClientRepo: &repositories.ClientRepository{DB: db},
		Now:        fixedNow,
	}
}

var mysqlDuplicate = mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
