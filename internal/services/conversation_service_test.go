package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/ws"
)

func newConversationService(db *sql.DB, events EventPublisher) *ConversationService {
	return &ConversationService{
		DB:               db,
		ConversationRepo: &repositories.ConversationRepository{DB: db},
		VoyantRepo:       &repositories.VoyantRepository{DB: db},
		AgentRepo:        &repositories.AgentRepository{DB: db},
		Packs:            newPackService(db),
		Events:           events,
		Now:              fixedNow,
	}
}

func TestAuthorizeConversation(t *testing.T) {
	conv := models.Conversation{ClientID: 3, AgentID: 8}
	tests := []struct {
		name    string
		p       models.Principal
		allowed bool
	}{
		{"owner client", models.Principal{Role: models.RoleClient, ClientID: 3}, true},
		{"other client", models.Principal{Role: models.RoleClient, ClientID: 4}, false},
		{"owner agent", models.Principal{Role: models.RoleAgent, AgentID: 8}, true},
		{"other agent", models.Principal{Role: models.RoleAgent, AgentID: 9}, false},
		{"admin", models.Principal{Role: models.RoleAdmin}, true},
		{"plain user", models.Principal{Role: models.RoleUser, ClientID: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorizeConversation(tt.p, conv)
			if tt.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, models.ErrForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestStartRejectsInactiveVoyant(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(2).
		WillReturnRows(voyantRow(2, 8, 3, false))

	_, err := svc.Start(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 2)
	if !errors.Is(err, models.ErrVoyantUnavailable) {
		t.Fatalf("expected voyant unavailable, got %v", err)
	}
}

func TestStartRejectsSecondActiveConversation(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(2).
		WillReturnRows(voyantRow(2, 8, 3, true))
	mock.ExpectQuery("FROM agents WHERE id = \\?").WithArgs(8).
		WillReturnRows(agentRow(8, 20, "agent", "", true, ""))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM clients WHERE id = \\? FOR UPDATE").WithArgs(3).
		WillReturnRows(clientRow(3, 30, "alice", true))
	mock.ExpectQuery("FROM conversations\\s+WHERE client_id = \\? AND status = \\?").
		WithArgs(3, models.ConversationActive).
		WillReturnRows(conversationRow(models.Conversation{ID: 1, ClientID: 3, VoyantID: 2, AgentID: 8,
			Status: models.ConversationActive, StartedAt: testNow.Add(-time.Minute)}))
	mock.ExpectRollback()

	_, err := svc.Start(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 2)
	if !errors.Is(err, models.ErrActiveConversation) {
		t.Fatalf("expected active conversation error, got %v", err)
	}
}

func TestStartRequiresMinutes(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(2).
		WillReturnRows(voyantRow(2, 8, 3, true))
	mock.ExpectQuery("FROM agents WHERE id = \\?").WithArgs(8).
		WillReturnRows(agentRow(8, 20, "agent", "", true, ""))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM clients WHERE id = \\? FOR UPDATE").WithArgs(3).
		WillReturnRows(clientRow(3, 30, "alice", true))
	mock.ExpectQuery("FROM conversations\\s+WHERE client_id = \\? AND status = \\?").
		WithArgs(3, models.ConversationActive).
		WillReturnRows(sqlmock.NewRows(conversationCols))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(minutes_remaining\\), 0\\)").WithArgs(3, testNow).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(0))
	mock.ExpectRollback()

	_, err := svc.Start(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 2)
	if !errors.Is(err, models.ErrInsufficientMinutes) {
		t.Fatalf("expected insufficient minutes, got %v", err)
	}
}

func TestStartOpensConversation(t *testing.T) {
	db, mock := newMock(t)
	events := &recordingPublisher{}
	svc := newConversationService(db, events)

	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(2).
		WillReturnRows(voyantRow(2, 8, 3, true))
	mock.ExpectQuery("FROM agents WHERE id = \\?").WithArgs(8).
		WillReturnRows(agentRow(8, 20, "agent", "", true, ""))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM clients WHERE id = \\? FOR UPDATE").WithArgs(3).
		WillReturnRows(clientRow(3, 30, "alice", true))
	mock.ExpectQuery("FROM conversations\\s+WHERE client_id = \\? AND status = \\?").
		WithArgs(3, models.ConversationActive).
		WillReturnRows(sqlmock.NewRows(conversationCols))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(minutes_remaining\\), 0\\)").WithArgs(3, testNow).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(12))
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(3, 2, 8, models.ConversationActive, 0, 0.0, testNow, testNow, testNow).
		WillReturnResult(sqlmock.NewResult(44, 1))
	mock.ExpectCommit()

	conv, err := svc.Start(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conv.ID != 44 || conv.AgentID != 8 || conv.Status != models.ConversationActive {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	if len(events.events) != 1 || events.events[0].evt.Type != ws.EventConversationStarted {
		t.Fatalf("expected a conversation.started event, got %+v", events.events)
	}
}

func TestTickWithinStartedMinuteIsNoop(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM conversations WHERE id = \\? FOR UPDATE").WithArgs(5).
		WillReturnRows(conversationRow(models.Conversation{ID: 5, ClientID: 3, VoyantID: 2, AgentID: 8,
			Status: models.ConversationActive, MinutesUsed: 1, TotalCost: 3, StartedAt: testNow.Add(-30 * time.Second)}))
	mock.ExpectCommit()

	conv, err := svc.Tick(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 5)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if conv.MinutesUsed != 1 || conv.Status != models.ConversationActive {
		t.Fatalf("tick must not change the conversation, got %+v", conv)
	}
}

func TestTickSettlesWhenMinutesRunOut(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)
	started := testNow.Add(-3*time.Minute - 30*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM conversations WHERE id = \\? FOR UPDATE").WithArgs(5).
		WillReturnRows(conversationRow(models.Conversation{ID: 5, ClientID: 3, VoyantID: 2, AgentID: 8,
			Status: models.ConversationActive, MinutesUsed: 2, TotalCost: 5, StartedAt: started}))
	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(2).
		WillReturnRows(voyantRow(2, 8, 2.5, true))
	mock.ExpectQuery("FROM minute_packs\\s+WHERE client_id = \\?").WithArgs(3, testNow).
		WillReturnRows(sqlmock.NewRows(packCols).
			AddRow(9, 3, 5, 1, "gift", testNow.Add(time.Hour), false, testNow, testNow))
	mock.ExpectExec("UPDATE minute_packs SET minutes_remaining").
		WithArgs(0, true, sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE clients").
		WithArgs(-1, 0, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET minutes_used").
		WithArgs(3, 7.5, sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET status").
		WithArgs(models.ConversationCompleted, testNow, testNow, 5, models.ConversationActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM conversations").WithArgs(3, 8, 5, models.ConversationActive).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("UPDATE agents").
		WithArgs(7.5, 3, 1, sqlmock.AnyArg(), 8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE clients").
		WithArgs(0, 3, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	conv, err := svc.Tick(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 5)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if conv.Status != models.ConversationCompleted || conv.MinutesUsed != 3 || conv.TotalCost != 7.5 {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	if conv.EndedAt == nil || !conv.EndedAt.Equal(testNow) {
		t.Fatalf("endedAt must be stamped, got %v", conv.EndedAt)
	}
}

func TestEndRejectsForeignAgent(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM conversations WHERE id = \\? FOR UPDATE").WithArgs(5).
		WillReturnRows(conversationRow(models.Conversation{ID: 5, ClientID: 3, VoyantID: 2, AgentID: 8,
			Status: models.ConversationActive, StartedAt: testNow}))
	mock.ExpectRollback()

	_, err := svc.End(context.Background(), models.Principal{Role: models.RoleAgent, AgentID: 99}, 5)
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCancelClosedConversation(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM conversations WHERE id = \\? FOR UPDATE").WithArgs(5).
		WillReturnRows(conversationRow(models.Conversation{ID: 5, ClientID: 3, VoyantID: 2, AgentID: 8,
			Status: models.ConversationCompleted, StartedAt: testNow}))
	mock.ExpectRollback()

	_, err := svc.Cancel(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 5)
	if !errors.Is(err, models.ErrConversationClosed) {
		t.Fatalf("expected closed conversation, got %v", err)
	}
}

func TestEndSettlesRepeatClientWithoutNewClientCredit(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM conversations WHERE id = \\? FOR UPDATE").WithArgs(5).
		WillReturnRows(conversationRow(models.Conversation{ID: 5, ClientID: 3, VoyantID: 2, AgentID: 8,
			Status: models.ConversationActive, MinutesUsed: 2, TotalCost: 6, StartedAt: testNow.Add(-90 * time.Second)}))
	mock.ExpectExec("UPDATE conversations SET status").
		WithArgs(models.ConversationCompleted, testNow, testNow, 5, models.ConversationActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM conversations").WithArgs(3, 8, 5, models.ConversationActive).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectExec("UPDATE agents").
		WithArgs(6.0, 2, 0, sqlmock.AnyArg(), 8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE clients").
		WithArgs(0, 2, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	conv, err := svc.End(context.Background(), models.Principal{Role: models.RoleAgent, AgentID: 8}, 5)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if conv.Status != models.ConversationCompleted {
		t.Fatalf("unexpected status %q", conv.Status)
	}
}

func TestActiveReturnsNilWithoutConversation(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectQuery("FROM conversations\\s+WHERE client_id = \\? AND status = \\?").
		WithArgs(3, models.ConversationActive).
		WillReturnRows(sqlmock.NewRows(conversationCols))

	conv, err := svc.Active(context.Background(), 3)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if conv != nil {
		t.Fatalf("expected no conversation, got %+v", conv)
	}
}

func TestEndSurfacesLostConnectionAsUnavailable(t *testing.T) {
	db, mock := newMock(t)
	svc := newConversationService(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM conversations WHERE id = \\? FOR UPDATE").WithArgs(5).
		WillReturnRows(conversationRow(models.Conversation{ID: 5, ClientID: 3, VoyantID: 2, AgentID: 8,
			Status: models.ConversationActive, MinutesUsed: 1, TotalCost: 3, StartedAt: testNow.Add(-30 * time.Second)}))
	mock.ExpectExec("UPDATE conversations SET status").
		WithArgs(models.ConversationCompleted, testNow, testNow, 5, models.ConversationActive).
		WillReturnError(mysql.ErrInvalidConn)
	mock.ExpectRollback()

	_, err := svc.End(context.Background(), models.Principal{Role: models.RoleClient, ClientID: 3}, 5)
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
