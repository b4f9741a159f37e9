package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/storage"
)

// MaxImageSize is the largest portrait accepted for upload.
const MaxImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type VoyantService struct {
	VoyantRepo  *repositories.VoyantRepository
	AgentRepo   *repositories.AgentRepository
	ReviewsRepo *repositories.ReviewRepository
	Uploader    storage.Uploader
	Logger      *slog.Logger
}

// Column limits of the voyants table.
const (
	maxPricePerMinute  = 9999.99
	maxVoyantName      = 255
	maxVoyantSpecialty = 255
	maxVoyantText      = 4000
	maxImageURL        = 1024
)

func validatePrice(price float64) error {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.NewValidationError("price_per_minute", "must be positive")
	}
	if billing.Round2(price) > maxPricePerMinute {
		return models.NewValidationError("price_per_minute", "must be at most 9999.99")
	}
	return nil
}

func checkLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return models.NewValidationError(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func validateVoyantText(name, specialty, description, imageURL string) error {
	if err := checkLength("name", name, maxVoyantName); err != nil {
		return err
	}
	if err := checkLength("specialty", specialty, maxVoyantSpecialty); err != nil {
		return err
	}
	if err := checkLength("description", description, maxVoyantText); err != nil {
		return err
	}
	return checkLength("image_url", imageURL, maxImageURL)
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (s *VoyantService) Create(ctx context.Context, req models.CreateVoyantRequest) (models.Voyant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Voyant{}, models.NewValidationError("name", "is required")
	}
	if req.AgentID <= 0 {
		return models.Voyant{}, models.NewValidationError("agent_id", "is required")
	}
	if err := validatePrice(req.PricePerMinute); err != nil {
		return models.Voyant{}, err
	}
	specialty := strings.TrimSpace(req.Specialty)
	description := strings.TrimSpace(req.Description)
	imageURL := strings.TrimSpace(req.ImageURL)
	if err := validateVoyantText(name, specialty, description, imageURL); err != nil {
		return models.Voyant{}, err
	}
	if _, err := s.AgentRepo.GetByID(ctx, req.AgentID); err != nil {
		return models.Voyant{}, err
	}
	return s.VoyantRepo.Create(ctx, models.Voyant{
		AgentID:        req.AgentID,
		Name:           name,
		Specialty:      specialty,
		Description:    description,
		ImageURL:       imageURL,
		PricePerMinute: req.PricePerMinute,
		Rating:         defaultRating,
		IsActive:       true,
	})
}

func (s *VoyantService) Update(ctx context.Context, id int, req models.UpdateVoyantRequest) (models.Voyant, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return models.Voyant{}, models.NewValidationError("name", "must not be empty")
		}
		req.Name = &name
	}
	if req.PricePerMinute != nil {
		if err := validatePrice(*req.PricePerMinute); err != nil {
			return models.Voyant{}, err
		}
	}
	req.Specialty = trimPtr(req.Specialty)
	req.Description = trimPtr(req.Description)
	req.ImageURL = trimPtr(req.ImageURL)
	if err := validateVoyantText(deref(req.Name), deref(req.Specialty), deref(req.Description), deref(req.ImageURL)); err != nil {
		return models.Voyant{}, err
	}
	if req.AgentID != nil {
		if _, err := s.AgentRepo.GetByID(ctx, *req.AgentID); err != nil {
			return models.Voyant{}, err
		}
	}
	if err := s.VoyantRepo.Update(ctx, id, req); err != nil {
		return models.Voyant{}, err
	}
	return s.VoyantRepo.GetByID(ctx, id)
}

// Delete removes a voyant that never held a conversation.
func (s *VoyantService) Delete(ctx context.Context, id int) error {
	return s.VoyantRepo.Delete(ctx, id)
}

func (s *VoyantService) Get(ctx context.Context, id int) (models.Voyant, error) {
	return s.VoyantRepo.GetByID(ctx, id)
}

func (s *VoyantService) List(ctx context.Context) ([]models.Voyant, error) {
	return s.VoyantRepo.List(ctx)
}

func (s *VoyantService) ListActive(ctx context.Context) ([]models.Voyant, error) {
	return s.VoyantRepo.ListActive(ctx)
}

// Detail returns an active voyant with its published reviews.
func (s *VoyantService) Detail(ctx context.Context, id int) (models.VoyantDetail, error) {
	voyant, err := s.VoyantRepo.GetByID(ctx, id)
	if err != nil {
		return models.VoyantDetail{}, err
	}
	if !voyant.IsActive {
		return models.VoyantDetail{}, models.ErrVoyantNotFound
	}
	reviews, err := s.ReviewsRepo.ListPublishedByVoyant(ctx, id)
	if err != nil {
		return models.VoyantDetail{}, err
	}
	return models.VoyantDetail{Voyant: voyant, Reviews: reviews}, nil
}

// UploadImage stores a portrait and points the voyant at it.
func (s *VoyantService) UploadImage(ctx context.Context, id int, contentType string, data []byte) (models.Voyant, error) {
	if s.Uploader == nil {
		return models.Voyant{}, storage.ErrNotConfigured
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return models.Voyant{}, models.NewValidationError("image", "must be a JPEG, PNG or WebP image")
	}
	if len(data) == 0 || len(data) > MaxImageSize {
		return models.Voyant{}, models.NewValidationError("image", "must be between 1 byte and 5MB")
	}
	if _, err := s.VoyantRepo.GetByID(ctx, id); err != nil {
		return models.Voyant{}, err
	}

	key := fmt.Sprintf("voyants/%d/%s%s", id, uuid.NewString(), ext)
	url, err := s.Uploader.Upload(ctx, key, contentType, data)
	if err != nil {
		loggerOrDefault(s.Logger).Error("portrait upload failed", "voyant_id", id, "error", err)
		return models.Voyant{}, err
	}
	if err := s.VoyantRepo.Update(ctx, id, models.UpdateVoyantRequest{ImageURL: &url}); err != nil {
		return models.Voyant{}, err
	}
	return s.VoyantRepo.GetByID(ctx, id)
}
