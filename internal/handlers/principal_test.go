package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"voyanceBack/internal/models"
)

func TestClientIP(t *testing.T) {
	t.Run("first forwarded hop", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
		if got := ClientIP(req); got != "203.0.113.7" {
			t.Fatalf("expected 203.0.113.7, got %q", got)
		}
	})

	t.Run("remote address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.4:51234"
		if got := ClientIP(req); got != "198.51.100.4" {
			t.Fatalf("expected 198.51.100.4, got %q", got)
		}
	})
}

func TestPrincipalRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := principal(req); err != models.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	want := models.Principal{UserID: 3, Role: models.RoleClient, ClientID: 9}
	req = req.WithContext(WithPrincipal(req.Context(), want))
	got, err := principal(req)
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestIDParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/voyants/42?:id=42", nil)
	id, err := idParam(req, "id")
	if err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}

	for _, raw := range []string{"", "abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/?:id="+raw, nil)
		if _, err := idParam(req, "id"); !models.IsValidation(err) {
			t.Fatalf("%q: expected validation error, got %v", raw, err)
		}
	}
}
