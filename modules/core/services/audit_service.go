package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/audit"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/metrics"
)

// RollingMetrics summarizes recent activity for a tenant over the
// configured window.
type RollingMetrics struct {
	Window              time.Duration
	Requests            int64
	Failures            int64
	Blocked             int64
	CrossTenantAttempts int64
	AverageDuration     time.Duration
}

// AuditService records resolution attempts, tenant accesses and policy
// decisions. Recording never fails a request: storage errors are logged and
// the event is kept in the in-memory rolling buffer so recent activity
// stays queryable even when the database is down.
type AuditService struct {
	repo   audit.Repository
	logger *logrus.Logger
	opts   configuration.AuditOptions

	mu     sync.RWMutex
	recent []*audit.Event
}

func NewAuditService(repo audit.Repository, logger *logrus.Logger, opts configuration.AuditOptions) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
		opts:   opts,
	}
}

// RecordResolution audits a resolution attempt and feeds the resolution
// counters.
func (s *AuditService) RecordResolution(ctx context.Context, e *audit.Event, outcome, source string) {
	metrics.ResolutionAttempts.WithLabelValues(outcome, source).Inc()
	metrics.ResolutionDuration.Observe(e.Duration.Seconds())
	s.append(ctx, e)
}

// RecordAccess audits a completed tenant-scoped request.
func (s *AuditService) RecordAccess(ctx context.Context, e *audit.Event) {
	s.append(ctx, e)
}

// RecordCrossTenantAttempt audits an attempt to touch another tenant's data.
func (s *AuditService) RecordCrossTenantAttempt(ctx context.Context, e *audit.Event, blocked bool) {
	e.Type = audit.EventCrossTenant
	e.Blocked = blocked
	metrics.CrossTenantAttempts.WithLabelValues(strconv.FormatBool(blocked)).Inc()
	if blocked {
		s.logger.WithFields(logrus.Fields{
			"tenant_id": e.TenantID,
			"principal": e.UserEmail,
			"endpoint":  e.Endpoint,
		}).Warn("cross-tenant attempt blocked")
	}
	s.append(ctx, e)
}

// RecordAllTenantsQuery logs an explicit escape of tenant scoping.
func (s *AuditService) RecordAllTenantsQuery(ctx context.Context, operation string) {
	e := s.eventFromContext(ctx, audit.EventAllTenantsQuery)
	e.Metadata = map[string]string{"operation": operation}
	e.Succeeded = true
	s.logger.WithFields(logrus.Fields{
		"operation": operation,
		"principal": e.UserEmail,
	}).Info("all-tenants query")
	s.append(ctx, e)
}

// RecordPolicyDenied implements authz.Recorder.
func (s *AuditService) RecordPolicyDenied(ctx context.Context, policy string, principal *authz.Principal, cause error) {
	e := s.eventFromContext(ctx, audit.EventPolicyDenied)
	s.applyPrincipal(e, principal)
	e.Metadata = map[string]string{"policy": policy, "cause": cause.Error()}
	s.append(ctx, e)
}

// RecordAdminBypass implements authz.Recorder.
func (s *AuditService) RecordAdminBypass(ctx context.Context, policy string, principal *authz.Principal) {
	e := s.eventFromContext(ctx, audit.EventPolicyBypass)
	s.applyPrincipal(e, principal)
	e.Succeeded = true
	e.Metadata = map[string]string{"policy": policy}
	s.append(ctx, e)
}

// RecordTenantSwitch audits a system administrator moving between tenants.
func (s *AuditService) RecordTenantSwitch(ctx context.Context, from, to uuid.UUID) {
	e := s.eventFromContext(ctx, audit.EventTenantSwitch)
	e.TenantID = to
	e.Succeeded = true
	e.Metadata = map[string]string{"from": from.String(), "to": to.String()}
	s.append(ctx, e)
}

// GetRecentEvents returns the latest persisted events for a tenant.
func (s *AuditService) GetRecentEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]*audit.Event, error) {
	return s.repo.ListRecent(ctx, tenantID, limit)
}

// GetRollingMetrics derives per-tenant counters from the in-memory buffer,
// bounded by the configured window.
func (s *AuditService) GetRollingMetrics(_ context.Context, tenantID uuid.UUID) RollingMetrics {
	cutoff := time.Now().Add(-s.opts.RecentWindow)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := RollingMetrics{Window: s.opts.RecentWindow}
	var totalDuration time.Duration
	for _, e := range s.recent {
		if e.TenantID != tenantID || e.CreatedAt.Before(cutoff) {
			continue
		}
		result.Requests++
		totalDuration += e.Duration
		if !e.Succeeded {
			result.Failures++
		}
		if e.Blocked {
			result.Blocked++
		}
		if e.Type == audit.EventCrossTenant {
			result.CrossTenantAttempts++
		}
	}
	if result.Requests > 0 {
		result.AverageDuration = totalDuration / time.Duration(result.Requests)
	}
	return result
}

// Prune removes persisted events older than the retention cutoff.
func (s *AuditService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}

func (s *AuditService) append(ctx context.Context, e *audit.Event) {
	s.buffer(e)

	if s.repo == nil {
		return
	}
	if err := composables.InTx(ctx, func(txCtx context.Context) error {
		return s.repo.Append(txCtx, e)
	}); err != nil {
		log, ok := composables.TryUseLogger(ctx)
		if !ok {
			log = logrus.NewEntry(s.logger)
		}
		log.WithError(err).WithField("event_type", e.Type).
			Warn("failed to persist audit event")
	}
}

func (s *AuditService) buffer(e *audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, e)
	if overflow := len(s.recent) - s.opts.RecentBufferSize; overflow > 0 {
		s.recent = s.recent[overflow:]
	}
}

func (s *AuditService) eventFromContext(ctx context.Context, eventType audit.EventType) *audit.Event {
	e := audit.New(eventType)
	if t, err := composables.UseTenant(ctx); err == nil {
		e.TenantID = t.ID
	}
	if u, err := composables.UseUser(ctx); err == nil {
		id := u.ID()
		e.UserID = &id
		e.UserEmail = u.Email()
	}
	if params, ok := composables.UseParams(ctx); ok && params.Request != nil {
		e.Endpoint = params.Request.URL.Path
		e.Method = params.Request.Method
	}
	return e
}

func (s *AuditService) applyPrincipal(e *audit.Event, principal *authz.Principal) {
	if principal == nil {
		return
	}
	id := principal.UserID
	e.UserID = &id
	e.UserEmail = principal.Email
	if e.TenantID == uuid.Nil {
		e.TenantID = principal.TenantID
	}
}
