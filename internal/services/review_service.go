package services

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
)

// defaultRating is shown for a voyant without published reviews.
const defaultRating = 5.0

const maxReviewLength = 4000

type ReviewService struct {
	ReviewsRepo *repositories.ReviewRepository
	VoyantRepo  *repositories.VoyantRepository
	Logger      *slog.Logger
}

func validateReview(req models.ReviewRequest) (string, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return "", models.NewValidationError("rating", "must be between 1 and 5")
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		return "", models.NewValidationError("comment", "is required")
	}
	if utf8.RuneCountInString(comment) > maxReviewLength {
		return "", models.NewValidationError("comment", "must be at most 4000 characters")
	}
	return comment, nil
}

func (s *ReviewService) checkVoyant(ctx context.Context, voyantID *int) error {
	if voyantID == nil {
		return nil
	}
	if *voyantID <= 0 {
		return models.NewValidationError("voyant_id", "must be a positive integer")
	}
	_, err := s.VoyantRepo.GetByID(ctx, *voyantID)
	return err
}

// CreateByAdmin stores a review that is public immediately.
func (s *ReviewService) CreateByAdmin(ctx context.Context, req models.ReviewRequest) (models.Review, error) {
	comment, err := validateReview(req)
	if err != nil {
		return models.Review{}, err
	}
	if err := s.checkVoyant(ctx, req.VoyantID); err != nil {
		return models.Review{}, err
	}
	review, err := s.ReviewsRepo.CreateReview(ctx, models.Review{
		VoyantID:       req.VoyantID,
		Rating:         req.Rating,
		Comment:        comment,
		IsApproved:     true,
		IsPublished:    true,
		CreatedByAdmin: true,
	})
	if err != nil {
		return models.Review{}, err
	}
	s.refreshRating(ctx, review.VoyantID)
	return review, nil
}

// Submit stores a client review in the moderation queue.
func (s *ReviewService) Submit(ctx context.Context, clientID int, req models.ReviewRequest) (models.Review, error) {
	if clientID == 0 {
		return models.Review{}, models.ErrForbidden
	}
	comment, err := validateReview(req)
	if err != nil {
		return models.Review{}, err
	}
	if err := s.checkVoyant(ctx, req.VoyantID); err != nil {
		return models.Review{}, err
	}
	return s.ReviewsRepo.CreateReview(ctx, models.Review{
		VoyantID: req.VoyantID,
		ClientID: &clientID,
		Rating:   req.Rating,
		Comment:  comment,
	})
}

// Approve publishes a pending review. Approving twice leaves the same state.
func (s *ReviewService) Approve(ctx context.Context, id int) (models.Review, error) {
	if _, err := s.ReviewsRepo.GetByID(ctx, id); err != nil {
		return models.Review{}, err
	}
	if err := s.ReviewsRepo.Approve(ctx, id); err != nil {
		return models.Review{}, err
	}
	review, err := s.ReviewsRepo.GetByID(ctx, id)
	if err != nil {
		return models.Review{}, err
	}
	s.refreshRating(ctx, review.VoyantID)
	return review, nil
}

// Reject deletes a review.
func (s *ReviewService) Reject(ctx context.Context, id int) error {
	review, err := s.ReviewsRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ReviewsRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshRating(ctx, review.VoyantID)
	return nil
}

func (s *ReviewService) ListAll(ctx context.Context) ([]models.Review, error) {
	return s.ReviewsRepo.ListAll(ctx)
}

func (s *ReviewService) ListPending(ctx context.Context) ([]models.Review, error) {
	return s.ReviewsRepo.ListPending(ctx)
}

func (s *ReviewService) ListPublished(ctx context.Context) ([]models.Review, error) {
	return s.ReviewsRepo.ListPublished(ctx)
}

func (s *ReviewService) ListPublishedByVoyant(ctx context.Context, voyantID int) ([]models.Review, error) {
	return s.ReviewsRepo.ListPublishedByVoyant(ctx, voyantID)
}

// refreshRating recomputes the aggregate rating of a voyant from its published reviews.
// Failures are logged; the review write already succeeded.
func (s *ReviewService) refreshRating(ctx context.Context, voyantID *int) {
	if voyantID == nil || s.VoyantRepo == nil {
		return
	}
	avg, count, err := s.ReviewsRepo.PublishedStats(ctx, *voyantID)
	if err == nil {
		rating := defaultRating
		if count > 0 {
			rating = billing.Round2(avg)
		}
		err = s.VoyantRepo.SetRating(ctx, *voyantID, rating, count)
	}
	if err != nil {
		loggerOrDefault(s.Logger).Warn("voyant rating refresh failed", "voyant_id", *voyantID, "error", err)
	}
}
