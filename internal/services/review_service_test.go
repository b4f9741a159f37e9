package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
)

func intPtr(v int) *int { return &v }

func TestReviewValidation(t *testing.T) {
	svc := &ReviewService{}
	cases := []models.ReviewRequest{
		{Rating: 0, Comment: "fine"},
		{Rating: 6, Comment: "fine"},
		{Rating: 4, Comment: "   "},
	}
	for _, req := range cases {
		if _, err := svc.CreateByAdmin(context.Background(), req); !models.IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
		if _, err := svc.Submit(context.Background(), 3, req); !models.IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestSubmitEntersModerationQueue(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{
		ReviewsRepo: &repositories.ReviewRepository{DB: db},
		VoyantRepo:  &repositories.VoyantRepository{DB: db},
	}

	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(2).
		WillReturnRows(voyantRow(2, 1, 3.5, true))
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(2, 3, 5, "Très juste", false, false, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(17, 1))

	review, err := svc.Submit(context.Background(), 3, models.ReviewRequest{VoyantID: intPtr(2), Rating: 5, Comment: "Très juste"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if review.IsApproved || review.IsPublished || review.CreatedByAdmin {
		t.Fatalf("client review must wait for moderation, got %+v", review)
	}
	if review.ClientID == nil || *review.ClientID != 3 {
		t.Fatalf("client id must come from the session, got %v", review.ClientID)
	}
}

func TestSubmitUnknownVoyant(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{
		ReviewsRepo: &repositories.ReviewRepository{DB: db},
		VoyantRepo:  &repositories.VoyantRepository{DB: db},
	}
	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(404).
		WillReturnRows(sqlmock.NewRows(voyantCols))

	_, err := svc.Submit(context.Background(), 3, models.ReviewRequest{VoyantID: intPtr(404), Rating: 4, Comment: "Bien"})
	if !errors.Is(err, models.ErrVoyantNotFound) {
		t.Fatalf("expected ErrVoyantNotFound, got %v", err)
	}
}

func TestApproveRefreshesVoyantRating(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{
		ReviewsRepo: &repositories.ReviewRepository{DB: db},
		VoyantRepo:  &repositories.VoyantRepository{DB: db},
	}

	mock.ExpectQuery("FROM reviews WHERE id = \\?").WithArgs(17).
		WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(17, 2, 3, 4, "ok", false, false, false, testNow, testNow))
	mock.ExpectExec("UPDATE reviews SET is_approved = TRUE").WithArgs(sqlmock.AnyArg(), 17).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM reviews WHERE id = \\?").WithArgs(17).
		WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(17, 2, 3, 4, "ok", true, true, false, testNow, testNow))
	mock.ExpectQuery("SELECT COALESCE\\(AVG\\(rating\\), 0\\), COUNT\\(\\*\\) FROM reviews").WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(4.3333, 3))
	mock.ExpectExec("UPDATE voyants SET rating").WithArgs(4.33, 3, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	review, err := svc.Approve(context.Background(), 17)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !review.IsApproved || !review.IsPublished {
		t.Fatalf("review must be published, got %+v", review)
	}
}

func TestRejectMissingReview(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{ReviewsRepo: &repositories.ReviewRepository{DB: db}}

	mock.ExpectQuery("FROM reviews WHERE id = \\?").WithArgs(99).
		WillReturnRows(sqlmock.NewRows(reviewCols))

	err := svc.Reject(context.Background(), 99)
	if !errors.Is(err, models.ErrNoRecord) {
		t.Fatalf("expected no record, got %v", err)
	}
}

func TestRejectLastReviewResetsRating(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{
		ReviewsRepo: &repositories.ReviewRepository{DB: db},
		VoyantRepo:  &repositories.VoyantRepository{DB: db},
	}

	mock.ExpectQuery("FROM reviews WHERE id = \\?").WithArgs(17).
		WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(17, 2, nil, 1, "bad", true, true, true, testNow, testNow))
	mock.ExpectExec("DELETE FROM reviews WHERE id = \\?").WithArgs(17).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE\\(AVG\\(rating\\), 0\\), COUNT\\(\\*\\) FROM reviews").WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(0, 0))
	mock.ExpectExec("UPDATE voyants SET rating").WithArgs(defaultRating, 0, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Reject(context.Background(), 17); err != nil {
		t.Fatalf("reject: %v", err)
	}
}

func TestCreateByAdminIsPublishedImmediately(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{
		ReviewsRepo: &repositories.ReviewRepository{DB: db},
		VoyantRepo:  &repositories.VoyantRepository{DB: db},
	}

	mock.ExpectQuery("FROM voyants WHERE id = \\?").WithArgs(2).
		WillReturnRows(voyantRow(2, 1, 3.5, true))
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(2, nil, 5, "Remarquable", true, true, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectQuery("SELECT COALESCE\\(AVG\\(rating\\), 0\\), COUNT\\(\\*\\) FROM reviews").WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(5, 1))
	mock.ExpectExec("UPDATE voyants SET rating").WithArgs(5.0, 1, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("WHERE is_approved = TRUE AND is_published = TRUE").
		WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(21, 2, nil, 5, "Remarquable", true, true, true, testNow, testNow))

	review, err := svc.CreateByAdmin(context.Background(), models.ReviewRequest{VoyantID: intPtr(2), Rating: 5, Comment: " Remarquable "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !review.IsApproved || !review.IsPublished || !review.CreatedByAdmin {
		t.Fatalf("admin review must be public, got %+v", review)
	}
	if review.ClientID != nil {
		t.Fatalf("admin review has no client, got %v", *review.ClientID)
	}

	published, err := svc.ListPublished(context.Background())
	if err != nil {
		t.Fatalf("published: %v", err)
	}
	if len(published) != 1 || published[0].ID != review.ID {
		t.Fatalf("expected review %d in the published list, got %+v", review.ID, published)
	}
}

func TestApproveTwiceKeepsState(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{
		ReviewsRepo: &repositories.ReviewRepository{DB: db},
		VoyantRepo:  &repositories.VoyantRepository{DB: db},
	}

	pending := sqlmock.NewRows(reviewCols).AddRow(17, 2, 3, 4, "ok", false, false, false, testNow, testNow)
	expectApprove := func(before *sqlmock.Rows) {
		mock.ExpectQuery("FROM reviews WHERE id = \\?").WithArgs(17).WillReturnRows(before)
		mock.ExpectExec("UPDATE reviews SET is_approved = TRUE").WithArgs(sqlmock.AnyArg(), 17).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM reviews WHERE id = \\?").WithArgs(17).
			WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(17, 2, 3, 4, "ok", true, true, false, testNow, testNow))
		mock.ExpectQuery("SELECT COALESCE\\(AVG\\(rating\\), 0\\), COUNT\\(\\*\\) FROM reviews").WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(4, 1))
		mock.ExpectExec("UPDATE voyants SET rating").WithArgs(4.0, 1, sqlmock.AnyArg(), 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	expectApprove(pending)
	expectApprove(sqlmock.NewRows(reviewCols).AddRow(17, 2, 3, 4, "ok", true, true, false, testNow, testNow))

	first, err := svc.Approve(context.Background(), 17)
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	second, err := svc.Approve(context.Background(), 17)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if first.IsApproved != second.IsApproved || first.IsPublished != second.IsPublished ||
		first.CreatedByAdmin != second.CreatedByAdmin || !second.IsApproved || !second.IsPublished {
		t.Fatalf("approve must be idempotent: first %+v second %+v", first, second)
	}
}

func TestRejectedReviewLeavesListAll(t *testing.T) {
	db, mock := newMock(t)
	svc := &ReviewService{ReviewsRepo: &repositories.ReviewRepository{DB: db}}

	mock.ExpectQuery("FROM reviews WHERE id = \\?").WithArgs(17).
		WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(17, nil, 3, 2, "meh", false, false, false, testNow, testNow))
	mock.ExpectExec("DELETE FROM reviews WHERE id = \\?").WithArgs(17).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM reviews ORDER BY created_at DESC, id DESC").
		WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(18, nil, 4, 5, "top", false, false, false, testNow, testNow))

	if err := svc.Reject(context.Background(), 17); err != nil {
		t.Fatalf("reject: %v", err)
	}
	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, rv := range all {
		if rv.ID == 17 {
			t.Fatalf("rejected review still listed: %+v", all)
		}
	}
}

func TestReviewCommentLengthLimit(t *testing.T) {
	svc := &ReviewService{}
	_, err := svc.Submit(context.Background(), 3, models.ReviewRequest{Rating: 4, Comment: strings.Repeat("a", maxReviewLength+1)})
	if !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
