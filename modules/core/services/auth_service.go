package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/session"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// PolicyTenantSwitch guards explicit movement between tenants. Only system
// administrators pass; the switch itself is always audited.
const PolicyTenantSwitch = "tenants.switch"

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService issues and validates opaque session tokens. A session is
// scoped to exactly one tenant; authenticating against a tenant the user
// does not belong to is denied, not silently retargeted.
type AuthService struct {
	users    user.Repository
	sessions session.Repository
	tenants  *TenantService
	audit    *AuditService
	engine   *authz.Engine
	logger   *logrus.Logger
}

func NewAuthService(
	users user.Repository,
	sessions session.Repository,
	tenants *TenantService,
	auditService *AuditService,
	engine *authz.Engine,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tenants:  tenants,
		audit:    auditService,
		engine:   engine,
		logger:   logger,
	}
}

// Authenticate verifies credentials against the active tenant and issues a
// session bound to it.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*user.User, *session.Session, error) {
	t, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, nil, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash()), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	// The home tenant must match the tenant the request resolved to.
	// System admins may authenticate anywhere.
	if !u.IsSystemAdmin() && !u.BelongsTo(t.ID) {
		return nil, nil, serrors.NewTenantAccessDeniedError(t.Subdomain, t.Status.String())
	}

	sess, err := s.issueSession(ctx, u.ID(), t.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// Authorize returns the user and session for a token, rejecting expired
// sessions.
func (s *AuthService) Authorize(ctx context.Context, token string) (*user.User, *session.Session, error) {
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if sess.IsExpired() {
		_ = s.Logout(ctx, token)
		return nil, nil, persistence.ErrSessionNotFound
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// SwitchTenant issues a fresh session bound to the target tenant. The old
// session stays valid for its original tenant until it expires or is
// logged out.
func (s *AuthService) SwitchTenant(ctx context.Context, targetTenantID uuid.UUID) (*session.Session, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return nil, err
	}
	current, err := composables.UseSession(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Authorize(ctx, PolicyTenantSwitch, authz.PrincipalFromUser(u)); err != nil {
		return nil, err
	}

	target, err := s.tenants.ResolveByID(ctx, targetTenantID)
	if err != nil {
		return nil, err
	}
	if err := target.ValidateAccess(); err != nil {
		return nil, err
	}

	sess, err := s.issueSession(ctx, u.ID(), target.ID)
	if err != nil {
		return nil, err
	}

	s.audit.RecordTenantSwitch(ctx, current.TenantID, target.ID)
	s.logger.WithFields(logrus.Fields{
		"user": u.Email(),
		"from": current.TenantID,
		"to":   target.ID,
	}).Info("tenant switch")
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		return s.sessions.Delete(txCtx, token)
	})
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		return s.sessions.DeleteByUser(txCtx, userID.String())
	})
}

func (s *AuthService) issueSession(ctx context.Context, userID, tenantID uuid.UUID) (*session.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	ip, _ := composables.UseIP(ctx)
	userAgent, _ := composables.UseUserAgent(ctx)
	conf := configuration.Use()

	sess := &session.Session{
		Token:     token,
		UserID:    userID,
		TenantID:  tenantID,
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(conf.SessionDuration),
		CreatedAt: time.Now(),
	}
	if err := composables.InTx(ctx, func(txCtx context.Context) error {
		return s.sessions.Create(txCtx, sess)
	}); err != nil {
		return nil, err
	}
	return sess, nil
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
