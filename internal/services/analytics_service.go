package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/timeutil"
)

const visitorKeyTTL = 48 * time.Hour

type AnalyticsService struct {
	AnalyticsRepo *repositories.AnalyticsRepository
	StatsRepo     *repositories.AgentStatsRepository
	ClientRepo    *repositories.ClientRepository
	AgentRepo     *repositories.AgentRepository
	ReviewsRepo   *repositories.ReviewRepository
	Agents        *AgentService
	Redis         *redis.Client
	Logger        *slog.Logger
	Now           func() time.Time
}

func visitorsKey(day string) string {
	return "analytics:visitors:" + day
}

// TrackVisit counts a page view for today and records the visitor address.
func (s *AnalyticsService) TrackVisit(ctx context.Context, visitor string) error {
	day := timeutil.DayKey(nowOr(s.Now))
	if err := s.AnalyticsRepo.IncrementPageViews(ctx, day); err != nil {
		return err
	}
	if s.Redis == nil || visitor == "" {
		return nil
	}
	key := visitorsKey(day)
	pipe := s.Redis.TxPipeline()
	pipe.PFAdd(ctx, key, visitor)
	pipe.Expire(ctx, key, visitorKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		loggerOrDefault(s.Logger).Warn("unique visitor not recorded", "day", day, "error", err)
	}
	return nil
}

// Range returns the daily analytics between two calendar days inclusive.
func (s *AnalyticsService) Range(ctx context.Context, start, end string) ([]models.Analytics, error) {
	if err := validateDayRange(start, end); err != nil {
		return nil, err
	}
	return s.AnalyticsRepo.GetRange(ctx, start, end)
}

// Rollup recomputes the platform and per-agent totals of the calendar day containing day.
func (s *AnalyticsService) Rollup(ctx context.Context, day time.Time) error {
	from, to := timeutil.DayBounds(day)
	key := timeutil.DayKey(from)

	totals, err := s.AnalyticsRepo.ComputeTotals(ctx, from, to)
	if err != nil {
		return err
	}
	totals.UniqueVisitors = -1
	if s.Redis != nil {
		n, err := s.Redis.PFCount(ctx, visitorsKey(key)).Result()
		if err != nil {
			loggerOrDefault(s.Logger).Warn("unique visitors unavailable", "day", key, "error", err)
		} else {
			totals.UniqueVisitors = int(n)
		}
	}
	if err := s.AnalyticsRepo.UpsertTotals(ctx, key, totals); err != nil {
		return err
	}

	stats, err := s.StatsRepo.ComputeDaily(ctx, from, to)
	if err != nil {
		return err
	}
	for _, st := range stats {
		if err := s.StatsRepo.Upsert(ctx, key, st); err != nil {
			return err
		}
	}
	loggerOrDefault(s.Logger).Info("analytics rolled up", "day", key, "agents", len(stats))
	return nil
}

// Dashboard gathers the headline numbers of the admin dashboard.
func (s *AnalyticsService) Dashboard(ctx context.Context) (models.DashboardStats, error) {
	var (
		out models.DashboardStats
		err error
	)
	if out.ActiveClients, err = s.ClientRepo.CountActive(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if out.TotalAgents, err = s.AgentRepo.Count(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if out.PendingReviews, err = s.ReviewsRepo.CountPending(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if s.Agents != nil {
		online, err := s.Agents.OnlineAgents(ctx)
		if err != nil {
			return models.DashboardStats{}, err
		}
		out.OnlineAgents = len(online)
	}
	today, err := s.AnalyticsRepo.GetDay(ctx, timeutil.DayKey(nowOr(s.Now)))
	switch {
	case err == nil:
		out.Today = &today
	case !errors.Is(err, models.ErrNoRecord):
		return models.DashboardStats{}, err
	}
	return out, nil
}
