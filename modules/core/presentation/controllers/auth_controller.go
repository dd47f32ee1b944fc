package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rescueranger/rescueranger/modules/core/services"
	"github.com/rescueranger/rescueranger/pkg/application"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
)

type AuthController struct {
	app      application.Application
	basePath string
}

func NewAuthController(app application.Application) application.Controller {
	return &AuthController{
		app:      app,
		basePath: "/auth",
	}
}

func (c *AuthController) Key() string {
	return c.basePath
}

func (c *AuthController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/login", c.login).Methods(http.MethodPost)
	router.HandleFunc("/logout", c.logout).Methods(http.MethodPost)
	router.HandleFunc("/switch-tenant", c.switchTenant).Methods(http.MethodPost)
}

func (c *AuthController) authService() *services.AuthService {
	return c.app.Service(services.AuthService{}).(*services.AuthService)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	TenantID  uuid.UUID `json:"tenant_id"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *AuthController) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	u, sess, err := c.authService().Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		if errors.Is(err, composables.ErrNoTenant) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no tenant resolved for this request"})
			return
		}
		writeError(w, r, err)
		return
	}

	c.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, &sessionResponse{
		Token:     sess.Token,
		TenantID:  sess.TenantID,
		UserID:    u.ID(),
		Email:     u.Email(),
		Role:      string(u.Role()),
		ExpiresAt: sess.ExpiresAt,
	})
}

type switchTenantRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
}

func (c *AuthController) switchTenant(w http.ResponseWriter, r *http.Request) {
	var req switchTenantRequest
	if err := decodeJSON(r, &req); err != nil || req.TenantID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
		return
	}

	sess, err := c.authService().SwitchTenant(r.Context(), req.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	u, err := composables.UseUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	c.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, &sessionResponse{
		Token:     sess.Token,
		TenantID:  sess.TenantID,
		UserID:    u.ID(),
		Email:     u.Email(),
		Role:      string(u.Role()),
		ExpiresAt: sess.ExpiresAt,
	})
}

func (c *AuthController) logout(w http.ResponseWriter, r *http.Request) {
	sess, err := composables.UseSession(r.Context())
	if err != nil {
		writeJSON(w, http.StatusNoContent, nil)
		return
	}
	if err := c.authService().Logout(r.Context(), sess.Token); err != nil {
		writeError(w, r, err)
		return
	}
	c.setSessionCookie(w, "", time.Unix(0, 0))
	writeJSON(w, http.StatusNoContent, nil)
}

func (c *AuthController) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	conf := configuration.Use()
	http.SetCookie(w, &http.Cookie{
		Name:     conf.SidCookieKey,
		Value:    token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   conf.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}
