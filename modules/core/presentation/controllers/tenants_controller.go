package controllers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/audit"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/modules/core/services"
	"github.com/rescueranger/rescueranger/pkg/application"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// TenantsController is the provisioning and lifecycle surface. Every route
// is guarded by the tenants.manage policy, so only system administrators
// reach the underlying services.
type TenantsController struct {
	app      application.Application
	basePath string
}

func NewTenantsController(app application.Application) application.Controller {
	return &TenantsController{
		app:      app,
		basePath: "/tenants",
	}
}

func (c *TenantsController) Key() string {
	return c.basePath
}

func (c *TenantsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.update).Methods(http.MethodPut)
	router.HandleFunc("/{id}", c.delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/status", c.setStatus).Methods(http.MethodPost)
	router.HandleFunc("/{id}/api-key", c.rotateAPIKey).Methods(http.MethodPost)
	router.HandleFunc("/{id}/audit", c.auditEvents).Methods(http.MethodGet)
	router.HandleFunc("/{id}/metrics", c.metrics).Methods(http.MethodGet)
}

func (c *TenantsController) tenantService() *services.TenantService {
	return c.app.Service(services.TenantService{}).(*services.TenantService)
}

func (c *TenantsController) auditService() *services.AuditService {
	return c.app.Service(services.AuditService{}).(*services.AuditService)
}

func (c *TenantsController) engine() *authz.Engine {
	return c.app.Service(authz.Engine{}).(*authz.Engine)
}

type tenantConfigPayload struct {
	MaxUsers         int   `json:"max_users"`
	MaxHorses        int   `json:"max_horses"`
	StorageLimitMB   int64 `json:"storage_limit_mb"`
	AdvancedFeatures bool  `json:"advanced_features"`
}

type tenantResponse struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	Subdomain       string              `json:"subdomain"`
	Status          string              `json:"status"`
	StatusReason    string              `json:"status_reason,omitempty"`
	ContactEmail    string              `json:"contact_email,omitempty"`
	ContactPhone    string              `json:"contact_phone,omitempty"`
	Address         string              `json:"address,omitempty"`
	IsSystem        bool                `json:"is_system"`
	Config          tenantConfigPayload `json:"config"`
	APIKeyRotatedAt *time.Time          `json:"api_key_rotated_at,omitempty"`
	ActivatedAt     *time.Time          `json:"activated_at,omitempty"`
	SuspendedAt     *time.Time          `json:"suspended_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toTenantResponse(t *tenant.Tenant) *tenantResponse {
	cfg := t.Config()
	return &tenantResponse{
		ID:           t.ID(),
		Name:         t.Name(),
		Subdomain:    t.Subdomain(),
		Status:       t.Status().String(),
		StatusReason: t.StatusReason(),
		ContactEmail: t.ContactEmail(),
		ContactPhone: t.ContactPhone(),
		Address:      t.Address(),
		IsSystem:     t.IsSystem(),
		Config: tenantConfigPayload{
			MaxUsers:         cfg.MaxUsers,
			MaxHorses:        cfg.MaxHorses,
			StorageLimitMB:   cfg.StorageLimitMB,
			AdvancedFeatures: cfg.AdvancedFeatures,
		},
		APIKeyRotatedAt: t.APIKeyRotatedAt(),
		ActivatedAt:     t.ActivatedAt(),
		SuspendedAt:     t.SuspendedAt(),
		CreatedAt:       t.CreatedAt(),
		UpdatedAt:       t.UpdatedAt(),
	}
}

func (c *TenantsController) list(w http.ResponseWriter, r *http.Request) {
	tenants, err := c.tenantService().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

type createTenantRequest struct {
	Name         string               `json:"name"`
	Subdomain    string               `json:"subdomain"`
	ContactEmail string               `json:"contact_email"`
	ContactPhone string               `json:"contact_phone"`
	Address      string               `json:"address"`
	Config       *tenantConfigPayload `json:"config"`
}

func (c *TenantsController) create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Subdomain == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and subdomain are required"})
		return
	}

	opts := []tenant.Option{
		tenant.WithContactEmail(req.ContactEmail),
		tenant.WithContactPhone(req.ContactPhone),
		tenant.WithAddress(req.Address),
	}
	if req.Config != nil {
		cfg := tenant.DefaultConfig()
		applyConfigPayload(&cfg, req.Config)
		opts = append(opts, tenant.WithConfig(cfg))
	}

	created, err := c.tenantService().Create(r.Context(), tenant.New(req.Name, req.Subdomain, opts...))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTenantResponse(created))
}

func (c *TenantsController) get(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	t, err := c.tenantService().GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

type updateTenantRequest struct {
	Name         *string              `json:"name"`
	ContactEmail *string              `json:"contact_email"`
	ContactPhone *string              `json:"contact_phone"`
	Address      *string              `json:"address"`
	Config       *tenantConfigPayload `json:"config"`
}

func (c *TenantsController) update(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	var req updateTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current, err := c.tenantService().GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := current.Name()
	if req.Name != nil {
		name = *req.Name
	}
	email := current.ContactEmail()
	if req.ContactEmail != nil {
		email = *req.ContactEmail
	}
	phone := current.ContactPhone()
	if req.ContactPhone != nil {
		phone = *req.ContactPhone
	}
	address := current.Address()
	if req.Address != nil {
		address = *req.Address
	}
	cfg := current.Config()
	if req.Config != nil {
		applyConfigPayload(&cfg, req.Config)
	}

	updated, err := c.tenantService().Update(r.Context(), tenant.New(
		name,
		current.Subdomain(),
		tenant.WithID(current.ID()),
		tenant.WithStatus(current.Status()),
		tenant.WithStatusReason(current.StatusReason()),
		tenant.WithContactEmail(email),
		tenant.WithContactPhone(phone),
		tenant.WithAddress(address),
		tenant.WithConfig(cfg),
		tenant.WithAPIKey(current.APIKey(), current.APIKeyRotatedAt()),
		tenant.WithSystemFlag(current.IsSystem()),
		tenant.WithActivatedAt(current.ActivatedAt()),
		tenant.WithSuspendedAt(current.SuspendedAt()),
		tenant.WithCreatedBy(current.CreatedBy()),
		tenant.WithCreatedAt(current.CreatedAt()),
	))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(updated))
}

type setStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (c *TenantsController) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	target := tenant.Status(req.Status)
	if !target.IsValid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown tenant status"})
		return
	}

	current, err := c.tenantService().GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !current.Status().CanTransitionTo(target) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "tenant cannot transition from " + current.Status().String() + " to " + target.String(),
		})
		return
	}

	updated, err := c.tenantService().SetStatus(r.Context(), id, target, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(updated))
}

func (c *TenantsController) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	if err := c.tenantService().Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type rotateAPIKeyResponse struct {
	APIKey    string    `json:"api_key"`
	RotatedAt time.Time `json:"rotated_at"`
}

// rotateAPIKey issues a fresh key and returns it once. The key is never
// readable again through the API.
func (c *TenantsController) rotateAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	current, err := c.tenantService().GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		writeError(w, r, serrors.NewInternalError())
		return
	}
	key := base64.URLEncoding.EncodeToString(buf)
	current.RotateAPIKey(key)

	updated, err := c.tenantService().Update(r.Context(), current)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &rotateAPIKeyResponse{
		APIKey:    key,
		RotatedAt: *updated.APIKeyRotatedAt(),
	})
}

type auditEventResponse struct {
	ID        uuid.UUID         `json:"id"`
	Type      string            `json:"type"`
	TenantID  uuid.UUID         `json:"tenant_id"`
	UserEmail string            `json:"user_email"`
	Endpoint  string            `json:"endpoint,omitempty"`
	Method    string            `json:"method,omitempty"`
	Status    int               `json:"status,omitempty"`
	Blocked   bool              `json:"blocked"`
	Succeeded bool              `json:"succeeded"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (c *TenantsController) auditEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	if err := c.authorize(r); err != nil {
		writeError(w, r, err)
		return
	}

	events, err := c.auditService().GetRecentEvents(r.Context(), id, 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toAuditEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func toAuditEventResponse(e *audit.Event) *auditEventResponse {
	return &auditEventResponse{
		ID:        e.ID,
		Type:      string(e.Type),
		TenantID:  e.TenantID,
		UserEmail: e.UserEmail,
		Endpoint:  e.Endpoint,
		Method:    e.Method,
		Status:    e.Status,
		Blocked:   e.Blocked,
		Succeeded: e.Succeeded,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}

type metricsResponse struct {
	WindowSeconds       float64 `json:"window_seconds"`
	Requests            int64   `json:"requests"`
	Failures            int64   `json:"failures"`
	Blocked             int64   `json:"blocked"`
	CrossTenantAttempts int64   `json:"cross_tenant_attempts"`
	AverageDurationMS   float64 `json:"average_duration_ms"`
}

func (c *TenantsController) metrics(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	if err := c.authorize(r); err != nil {
		writeError(w, r, err)
		return
	}

	m := c.auditService().GetRollingMetrics(r.Context(), id)
	writeJSON(w, http.StatusOK, &metricsResponse{
		WindowSeconds:       m.Window.Seconds(),
		Requests:            m.Requests,
		Failures:            m.Failures,
		Blocked:             m.Blocked,
		CrossTenantAttempts: m.CrossTenantAttempts,
		AverageDurationMS:   float64(m.AverageDuration.Milliseconds()),
	})
}

func (c *TenantsController) authorize(r *http.Request) error {
	ctx := r.Context()
	return c.engine().Authorize(ctx, services.PolicyTenantsManage, authz.UsePrincipal(ctx))
}

func (c *TenantsController) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant id"})
		return uuid.Nil, false
	}
	return id, true
}

func applyConfigPayload(cfg *tenant.Config, p *tenantConfigPayload) {
	if p.MaxUsers > 0 {
		cfg.MaxUsers = p.MaxUsers
	}
	if p.MaxHorses > 0 {
		cfg.MaxHorses = p.MaxHorses
	}
	if p.StorageLimitMB > 0 {
		cfg.StorageLimitMB = p.StorageLimitMB
	}
	cfg.AdvancedFeatures = p.AdvancedFeatures
}
