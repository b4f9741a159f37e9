package handlers

import (
	"net/http"

	"voyanceBack/internal/models"
	"voyanceBack/internal/services"
)

const (
	SessionCookie = "voyance_session"
	RefreshCookie = "voyance_refresh"
)

type AuthHandler struct {
	Service      *services.AuthService
	CookieSecure bool
}

// SetSessionCookies writes the access and refresh cookies for tokens.
func (h *AuthHandler) SetSessionCookies(w http.ResponseWriter, tokens models.Tokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.ExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    tokens.RefreshToken,
		Path:     "/",
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{SessionCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.CookieSecure,
		})
	}
}

type loginFunc func(r *http.Request, req models.SignInRequest) (models.LoginResult, error)

func (h *AuthHandler) login(fn loginFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SignInRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		res, err := fn(r, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.SetSessionCookies(w, res.Tokens)
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *AuthHandler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	h.login(func(r *http.Request, req models.SignInRequest) (models.LoginResult, error) {
		return h.Service.LoginAdmin(r.Context(), req.Email, req.Password)
	})(w, r)
}

func (h *AuthHandler) LoginAgent(w http.ResponseWriter, r *http.Request) {
	h.login(func(r *http.Request, req models.SignInRequest) (models.LoginResult, error) {
		return h.Service.LoginAgent(r.Context(), req.Username, req.Password)
	})(w, r)
}

func (h *AuthHandler) LoginClient(w http.ResponseWriter, r *http.Request) {
	h.login(func(r *http.Request, req models.SignInRequest) (models.LoginResult, error) {
		return h.Service.LoginClient(r.Context(), req.Username, req.Password)
	})(w, r)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Service.RegisterClient(r.Context(), req, ClientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.SetSessionCookies(w, res.Tokens)
	writeJSON(w, http.StatusCreated, res)
}

// Refresh rotates the session from the refresh cookie or a JSON body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" && r.ContentLength > 0 {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		token = body.RefreshToken
	}
	res, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		h.clearSessionCookies(w)
		writeError(w, r, err)
		return
	}
	h.SetSessionCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookies(w)
	if p, ok := PrincipalFrom(r.Context()); ok && p.UserID != 0 {
		if err := h.Service.Logout(r.Context(), p.UserID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Service.Me(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Principal models.Principal `json:"principal"`
		User      models.User      `json:"user"`
	}{res.Principal, res.User})
}
