package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type VoyantRepository struct {
	DB DBTX
}

const voyantColumns = `id, agent_id, name, specialty, description, image_url, price_per_minute, rating,
	total_reviews, is_active, created_at, updated_at`

func scanVoyant(row rowScanner) (models.Voyant, error) {
	var v models.Voyant
	err := row.Scan(&v.ID, &v.AgentID, &v.Name, &v.Specialty, &v.Description, &v.ImageURL,
		&v.PricePerMinute, &v.Rating, &v.TotalReviews, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *VoyantRepository) queryVoyants(ctx context.Context, query string, args ...any) ([]models.Voyant, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	voyants := []models.Voyant{}
	for rows.Next() {
		v, err := scanVoyant(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		voyants = append(voyants, v)
	}
	return voyants, storageErr(rows.Err())
}

func (r *VoyantRepository) Create(ctx context.Context, v models.Voyant) (models.Voyant, error) {
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO voyants (agent_id, name, specialty, description, image_url, price_per_minute, rating,
		                     total_reviews, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.AgentID, v.Name, v.Specialty, v.Description, v.ImageURL, v.PricePerMinute, v.Rating,
		v.TotalReviews, v.IsActive, now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Voyant{}, models.ErrAgentNotFound
		}
		return models.Voyant{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.Voyant{}, storageErr(err)
	}
	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return v, nil
}

func (r *VoyantRepository) GetByID(ctx context.Context, id int) (models.Voyant, error) {
	v, err := scanVoyant(r.DB.QueryRowContext(ctx, `SELECT `+voyantColumns+` FROM voyants WHERE id = ?`, id))
	if err != nil {
		return models.Voyant{}, notFound(err, models.ErrVoyantNotFound)
	}
	return v, nil
}

func (r *VoyantRepository) List(ctx context.Context) ([]models.Voyant, error) {
	return r.queryVoyants(ctx, `SELECT `+voyantColumns+` FROM voyants ORDER BY created_at DESC, id DESC`)
}

// ListActive returns the voyants shown to the public, best rated first.
func (r *VoyantRepository) ListActive(ctx context.Context) ([]models.Voyant, error) {
	return r.queryVoyants(ctx, `SELECT `+voyantColumns+` FROM voyants WHERE is_active = TRUE ORDER BY rating DESC, id`)
}

func (r *VoyantRepository) ListByAgent(ctx context.Context, agentID int) ([]models.Voyant, error) {
	return r.queryVoyants(ctx, `SELECT `+voyantColumns+` FROM voyants WHERE agent_id = ? ORDER BY id`, agentID)
}

// Update applies the non-nil fields of req.
func (r *VoyantRepository) Update(ctx context.Context, id int, req models.UpdateVoyantRequest) error {
	set := "updated_at = ?"
	args := []any{time.Now()}
	if req.AgentID != nil {
		set += ", agent_id = ?"
		args = append(args, *req.AgentID)
	}
	if req.Name != nil {
		set += ", name = ?"
		args = append(args, *req.Name)
	}
	if req.Specialty != nil {
		set += ", specialty = ?"
		args = append(args, *req.Specialty)
	}
	if req.Description != nil {
		set += ", description = ?"
		args = append(args, *req.Description)
	}
	if req.ImageURL != nil {
		set += ", image_url = ?"
		args = append(args, *req.ImageURL)
	}
	if req.PricePerMinute != nil {
		set += ", price_per_minute = ?"
		args = append(args, *req.PricePerMinute)
	}
	if req.IsActive != nil {
		set += ", is_active = ?"
		args = append(args, *req.IsActive)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, `UPDATE voyants SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.ErrAgentNotFound
		}
		return storageErr(err)
	}
	return expectAffected(res, models.ErrVoyantNotFound)
}

func (r *VoyantRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM voyants WHERE id = ?`, id)
	if err != nil {
		return deleteErr(err)
	}
	return expectAffected(res, models.ErrVoyantNotFound)
}

func (r *VoyantRepository) SetRating(ctx context.Context, id int, rating float64, total int) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE voyants SET rating = ?, total_reviews = ?, updated_at = ? WHERE id = ?`,
		rating, total, time.Now(), id)
	return storageErr(err)
}
