package repositories

import (
	"context"
	"database/sql"
	"time"

	"voyanceBack/internal/models"
)

type UserRepository struct {
	DB DBTX
}

const userColumns = `id, name, email, phone, login_method, role, password_hash, last_signed_in, created_at, updated_at`

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.LoginMethod, &u.Role,
		&u.PasswordHash, &u.LastSignedIn, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	now := time.Now()
	if user.LoginMethod == "" {
		user.LoginMethod = "password"
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (name, email, phone, login_method, role, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.Phone, user.LoginMethod, user.Role, user.PasswordHash, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return models.User{}, models.ErrDuplicateEmail
		}
		return models.User{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.User{}, storageErr(err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return models.User{}, notFound(err, models.ErrUserNotFound)
	}
	return u, nil
}

// GetUserByEmail returns the first user registered with email and the given role.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email, role string) (models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND role = ? ORDER BY id LIMIT 1`, email, role))
	if err != nil {
		return models.User{}, notFound(err, models.ErrUserNotFound)
	}
	return u, nil
}

func (r *UserRepository) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		users = append(users, u)
	}
	return users, storageErr(rows.Err())
}

func (r *UserRepository) UpdateRole(ctx context.Context, id int, role string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrUserNotFound)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, hash string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, time.Now(), id)
	return storageErr(err)
}

func (r *UserRepository) DeleteUser(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return deleteErr(err)
	}
	return expectAffected(res, models.ErrUserNotFound)
}

func (r *UserRepository) TouchSignIn(ctx context.Context, id int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_signed_in = ? WHERE id = ?`, at, id)
	return storageErr(err)
}

// SetSession stores the refresh token of the user's current session.
func (r *UserRepository) SetSession(ctx context.Context, id int, session models.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, refresh_expires_at = ? WHERE id = ?`,
		session.RefreshToken, session.ExpiresAt, id)
	return storageErr(err)
}

func (r *UserRepository) GetSessionByToken(ctx context.Context, token string) (models.Session, error) {
	var (
		s       models.Session
		expires sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, role, refresh_token, refresh_expires_at FROM users WHERE refresh_token = ?`, token,
	).Scan(&s.UserID, &s.Role, &s.RefreshToken, &expires)
	if err != nil {
		return models.Session{}, notFound(err, models.ErrUnauthorized)
	}
	if expires.Valid {
		s.ExpiresAt = expires.Time
	}
	return s, nil
}

func (r *UserRepository) ClearSession(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET refresh_token = NULL, refresh_expires_at = NULL WHERE id = ?`, id)
	return storageErr(err)
}
