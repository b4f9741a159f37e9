package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type AnalyticsRepository struct {
	DB DBTX
}

const analyticsColumns = `id, date, page_views, unique_visitors, new_clients, total_conversations,
	total_minutes_served, total_revenue, created_at, updated_at`

func scanAnalytics(row rowScanner) (models.Analytics, error) {
	var a models.Analytics
	err := row.Scan(&a.ID, &a.Date, &a.PageViews, &a.UniqueVisitors, &a.NewClients, &a.TotalConversations,
		&a.TotalMinutesServed, &a.TotalRevenue, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetRange returns the daily rows between start and end inclusive, oldest first.
func (r *AnalyticsRepository) GetRange(ctx context.Context, start, end string) ([]models.Analytics, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+analyticsColumns+` FROM analytics WHERE date BETWEEN ? AND ? ORDER BY date`, start, end)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	out := []models.Analytics{}
	for rows.Next() {
		a, err := scanAnalytics(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, a)
	}
	return out, storageErr(rows.Err())
}

func (r *AnalyticsRepository) GetDay(ctx context.Context, day string) (models.Analytics, error) {
	a, err := scanAnalytics(r.DB.QueryRowContext(ctx, `SELECT `+analyticsColumns+` FROM analytics WHERE date = ?`, day))
	if err != nil {
		return models.Analytics{}, notFound(err, models.ErrNoRecord)
	}
	return a, nil
}

// IncrementPageViews bumps the page view counter of day, creating the row when missing.
func (r *AnalyticsRepository) IncrementPageViews(ctx context.Context, day string) error {
	now := time.Now()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO analytics (date, page_views, created_at, updated_at) VALUES (?, 1, ?, ?)
		ON DUPLICATE KEY UPDATE page_views = page_views + 1, updated_at = VALUES(updated_at)`,
		day, now, now)
	return storageErr(err)
}

// UpsertTotals writes the computed totals of a day. Page views are left untouched;
// unique visitors are only overwritten when uniqueVisitors is not negative.
func (r *AnalyticsRepository) UpsertTotals(ctx context.Context, day string, a models.Analytics) error {
	now := time.Now()
	unique := a.UniqueVisitors
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO analytics (date, unique_visitors, new_clients, total_conversations, total_minutes_served, total_revenue, created_at, updated_at)
		VALUES (?, GREATEST(?, 0), ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			unique_visitors = IF(? < 0, unique_visitors, VALUES(unique_visitors)),
			new_clients = VALUES(new_clients),
			total_conversations = VALUES(total_conversations),
			total_minutes_served = VALUES(total_minutes_served),
			total_revenue = VALUES(total_revenue),
			updated_at = VALUES(updated_at)`,
		day, unique, a.NewClients, a.TotalConversations, a.TotalMinutesServed, a.TotalRevenue, now, now, unique)
	return storageErr(err)
}

// ComputeTotals derives the platform totals of the interval [from, to).
func (r *AnalyticsRepository) ComputeTotals(ctx context.Context, from, to time.Time) (models.Analytics, error) {
	var a models.Analytics
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM clients WHERE created_at >= ? AND created_at < ?),
			(SELECT COUNT(*) FROM conversations WHERE started_at >= ? AND started_at < ?),
			(SELECT COALESCE(SUM(minutes_used), 0) FROM conversations WHERE status <> ? AND ended_at >= ? AND ended_at < ?),
			(SELECT COALESCE(SUM(amount_cents), 0) / 100 FROM payments WHERE status = ? AND updated_at >= ? AND updated_at < ?)`,
		from, to,
		from, to,
		models.ConversationActive, from, to,
		models.PaymentSucceeded, from, to,
	).Scan(&a.NewClients, &a.TotalConversations, &a.TotalMinutesServed, &a.TotalRevenue)
	if err != nil {
		return models.Analytics{}, storageErr(err)
	}
	return a, nil
}
