package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type ReviewRepository struct {
	DB DBTX
}

const reviewColumns = `id, voyant_id, client_id, rating, comment, is_approved, is_published, created_by_admin, created_at, updated_at`

func scanReview(row rowScanner) (models.Review, error) {
	var rv models.Review
	err := row.Scan(&rv.ID, &rv.VoyantID, &rv.ClientID, &rv.Rating, &rv.Comment, &rv.IsApproved,
		&rv.IsPublished, &rv.CreatedByAdmin, &rv.CreatedAt, &rv.UpdatedAt)
	return rv, err
}

func (r *ReviewRepository) queryReviews(ctx context.Context, query string, args ...any) ([]models.Review, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, storageErr(rows.Err())
}

func (r *ReviewRepository) CreateReview(ctx context.Context, rv models.Review) (models.Review, error) {
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO reviews (voyant_id, client_id, rating, comment, is_approved, is_published, created_by_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rv.VoyantID, rv.ClientID, rv.Rating, rv.Comment, rv.IsApproved, rv.IsPublished, rv.CreatedByAdmin, now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Review{}, models.ErrVoyantNotFound
		}
		return models.Review{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.Review{}, storageErr(err)
	}
	rv.ID = id
	rv.CreatedAt = now
	rv.UpdatedAt = now
	return rv, nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id int) (models.Review, error) {
	rv, err := scanReview(r.DB.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id))
	if err != nil {
		return models.Review{}, notFound(err, models.ErrReviewNotFound)
	}
	return rv, nil
}

func (r *ReviewRepository) ListAll(ctx context.Context) ([]models.Review, error) {
	return r.queryReviews(ctx, `SELECT `+reviewColumns+` FROM reviews ORDER BY created_at DESC, id DESC`)
}

// ListPublished returns reviews both approved and published, newest first.
func (r *ReviewRepository) ListPublished(ctx context.Context) ([]models.Review, error) {
	return r.queryReviews(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE is_approved = TRUE AND is_published = TRUE
		ORDER BY created_at DESC, id DESC`)
}

func (r *ReviewRepository) ListPublishedByVoyant(ctx context.Context, voyantID int) ([]models.Review, error) {
	return r.queryReviews(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE voyant_id = ? AND is_approved = TRUE AND is_published = TRUE
		ORDER BY created_at DESC, id DESC`, voyantID)
}

// ListPending returns client reviews still waiting for moderation.
func (r *ReviewRepository) ListPending(ctx context.Context) ([]models.Review, error) {
	return r.queryReviews(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE is_approved = FALSE AND created_by_admin = FALSE
		ORDER BY created_at, id`)
}

func (r *ReviewRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE is_approved = FALSE AND created_by_admin = FALSE`).Scan(&n)
	return n, storageErr(err)
}

// Approve publishes a review. Approving an already published review leaves it unchanged.
func (r *ReviewRepository) Approve(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE reviews SET is_approved = TRUE, is_published = TRUE, updated_at = ? WHERE id = ?`, time.Now(), id)
	return storageErr(err)
}

func (r *ReviewRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrReviewNotFound)
}

// PublishedStats returns the average rating and count of a voyant's published reviews.
func (r *ReviewRepository) PublishedStats(ctx context.Context, voyantID int) (float64, int, error) {
	var (
		avg   float64
		count int
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews
		WHERE voyant_id = ? AND is_approved = TRUE AND is_published = TRUE`, voyantID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, storageErr(err)
	}
	return avg, count, nil
}
