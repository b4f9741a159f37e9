package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
)

func TestUpdateRoleRejectsUnknownRole(t *testing.T) {
	svc := &UserService{}
	if _, err := svc.UpdateRole(context.Background(), 1, "superuser"); !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateRoleToSameRole(t *testing.T) {
	db, mock := newMock(t)
	svc := &UserService{UserRepo: &repositories.UserRepository{DB: db}}

	mock.ExpectExec("UPDATE users SET role = \\?").WithArgs(models.RoleAdmin, sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM users WHERE id = \\?").WithArgs(5).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(5, "Eve", "eve@example.com", "", "password", models.RoleAdmin, "", nil, testNow, testNow))

	user, err := svc.UpdateRole(context.Background(), 5, models.RoleAdmin)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Fatalf("unexpected role %q", user.Role)
	}
}

func TestUpdateRoleUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	svc := &UserService{UserRepo: &repositories.UserRepository{DB: db}}

	mock.ExpectExec("UPDATE users SET role = \\?").WithArgs(models.RoleClient, sqlmock.AnyArg(), 404).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := svc.UpdateRole(context.Background(), 404, models.RoleClient); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
