package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/cache"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/eventbus"
	"github.com/rescueranger/rescueranger/pkg/metrics"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// PolicyTenantsManage guards tenant provisioning and lifecycle operations.
const PolicyTenantsManage = "tenants.manage"

const (
	cacheKeyTenantID        = "tenant:id:"
	cacheKeyTenantSubdomain = "tenant:subdomain:"
)

// cacheBreakerThreshold is how many consecutive cache failures open the
// breaker.
const cacheBreakerThreshold = 3

// TenantService is the tenant directory: the single authority for looking
// tenants up and managing their lifecycle. Lookups are cache-aside over
// durable storage; a failing cache degrades to direct reads, never to
// request failures.
type TenantService struct {
	repo      tenant.Repository
	cache     cache.Cache
	publisher eventbus.EventBus
	engine    *authz.Engine
	logger    *logrus.Logger
	opts      configuration.TenantOptions

	// inTx wraps mutations in a transaction; tests substitute a pass-through.
	inTx func(context.Context, func(context.Context) error) error

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

func NewTenantService(
	repo tenant.Repository,
	c cache.Cache,
	publisher eventbus.EventBus,
	engine *authz.Engine,
	logger *logrus.Logger,
	opts configuration.TenantOptions,
) *TenantService {
	return &TenantService{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		engine:    engine,
		logger:    logger,
		opts:      opts,
		inTx:      composables.InTx,
	}
}

// cachedTenant is the serialized directory record. It carries only what
// resolution and enforcement need; full entities always come from storage.
type cachedTenant struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Subdomain string        `json:"subdomain"`
	Status    tenant.Status `json:"status"`
	IsSystem  bool          `json:"is_system"`
	Config    tenant.Config `json:"config"`
}

func projection(c *cachedTenant) *composables.Tenant {
	return &composables.Tenant{
		ID:        c.ID,
		Name:      c.Name,
		Subdomain: c.Subdomain,
		Status:    c.Status,
		IsSystem:  c.IsSystem,
		Config:    c.Config,
	}
}

func fromEntity(t *tenant.Tenant) *cachedTenant {
	return &cachedTenant{
		ID:        t.ID(),
		Name:      t.Name(),
		Subdomain: t.Subdomain(),
		Status:    t.Status(),
		IsSystem:  t.IsSystem(),
		Config:    t.Config(),
	}
}

// ResolveBySubdomain looks a tenant up by its subdomain, cache first.
func (s *TenantService) ResolveBySubdomain(ctx context.Context, subdomain string) (*composables.Tenant, error) {
	subdomain = tenant.NormalizeSubdomain(subdomain)
	cached, hit, degraded := s.cacheGet(ctx, cacheKeyTenantSubdomain+subdomain)
	if hit {
		return projection(cached), nil
	}

	t, err := s.repo.GetBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, persistence.ErrTenantNotFound) {
			return nil, serrors.NewTenantNotFoundError(subdomain)
		}
		return nil, err
	}

	record := fromEntity(t)
	if !degraded {
		s.cachePut(ctx, record)
	}
	return projection(record), nil
}

// ResolveByID looks a tenant up by id, cache first.
func (s *TenantService) ResolveByID(ctx context.Context, id uuid.UUID) (*composables.Tenant, error) {
	cached, hit, degraded := s.cacheGet(ctx, cacheKeyTenantID+id.String())
	if hit {
		return projection(cached), nil
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrTenantNotFound) {
			return nil, serrors.NewTenantNotFoundError(id.String())
		}
		return nil, err
	}

	record := fromEntity(t)
	if !degraded {
		s.cachePut(ctx, record)
	}
	return projection(record), nil
}

func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TenantService) List(ctx context.Context) ([]*tenant.Tenant, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *TenantService) Create(ctx context.Context, data *tenant.Tenant) (*tenant.Tenant, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := tenant.ValidateSubdomain(data.Subdomain()); err != nil {
		return nil, err
	}
	if s.isReserved(data.Subdomain()) {
		return nil, serrors.NewSubdomainConflictError(data.Subdomain())
	}

	createdEvent := tenant.NewCreatedEvent(ctx, data)

	var created *tenant.Tenant
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.repo.Create(txCtx, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	createdEvent.Result = created

	s.publisher.Publish(createdEvent)
	return created, nil
}

// Update persists tenant changes and evicts both directory keys before the
// caller sees success, so no request observes the old record as current.
func (s *TenantService) Update(ctx context.Context, data *tenant.Tenant) (*tenant.Tenant, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := tenant.ValidateSubdomain(data.Subdomain()); err != nil {
		return nil, err
	}

	previous, err := s.repo.GetByID(ctx, data.ID())
	if err != nil {
		return nil, err
	}

	updatedEvent := tenant.NewUpdatedEvent(ctx, data)

	var updated *tenant.Tenant
	err = s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.repo.Update(txCtx, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	updatedEvent.Result = updated

	s.invalidate(ctx, updated.ID(), previous.Subdomain(), updated.Subdomain())
	s.publisher.Publish(updatedEvent)
	return updated, nil
}

func (s *TenantService) SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status, reason string) (*tenant.Tenant, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	var previous tenant.Status
	var updated *tenant.Tenant
	err := s.inTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		previous = current.Status()
		updated, err = s.repo.UpdateStatus(txCtx, id, status, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.ID(), updated.Subdomain())
	s.publisher.Publish(tenant.NewStatusChangedEvent(ctx, id, previous, updated.Status(), reason))
	return updated, nil
}

func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.SetStatus(ctx, id, tenant.StatusPendingDeletion, "deletion requested")
	return err
}

func (s *TenantService) authorize(ctx context.Context) error {
	return s.engine.Authorize(ctx, PolicyTenantsManage, authz.UsePrincipal(ctx))
}

func (s *TenantService) isReserved(subdomain string) bool {
	subdomain = tenant.NormalizeSubdomain(subdomain)
	for _, reserved := range s.opts.ReservedSubdomains {
		if subdomain == reserved {
			return true
		}
	}
	return false
}

// cacheGet returns a decoded record and hit=true only on a clean hit.
// Misses, backend failures, an open breaker, and undecodable payloads all
// report hit=false so the caller falls through to durable storage. degraded
// is true when the backend itself failed; callers then skip the write-back
// so one resolution never counts more than one breaker failure.
func (s *TenantService) cacheGet(ctx context.Context, key string) (record *cachedTenant, hit, degraded bool) {
	if !s.cacheAvailable() {
		return nil, false, true
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opts.CacheTimeout)
	defer cancel()

	raw, err := s.cache.Get(opCtx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			s.recordCacheSuccess()
			metrics.DirectoryCacheHits.WithLabelValues("miss").Inc()
			return nil, false, false
		}
		s.recordCacheFailure(err)
		metrics.DirectoryCacheHits.WithLabelValues("error").Inc()
		return nil, false, true
	}
	s.recordCacheSuccess()

	var decoded cachedTenant
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("dropping undecodable tenant cache entry")
		_ = s.cache.Delete(ctx, key)
		return nil, false, false
	}

	metrics.DirectoryCacheHits.WithLabelValues("hit").Inc()
	return &decoded, true, false
}

// cachePut stores the record under both lookup keys. Failures are logged
// and counted against the breaker but never surfaced.
func (s *TenantService) cachePut(ctx context.Context, record *cachedTenant) {
	if !s.cacheAvailable() {
		return
	}

	raw, err := json.Marshal(record)
	if err != nil {
		s.logger.WithError(err).Warn("failed to encode tenant cache entry")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opts.CacheTimeout)
	defer cancel()

	value := string(raw)
	if err := s.cache.Set(opCtx, cacheKeyTenantID+record.ID.String(), value, s.opts.CacheTTL); err != nil {
		s.recordCacheFailure(err)
		return
	}
	if err := s.cache.Set(opCtx, cacheKeyTenantSubdomain+record.Subdomain, value, s.opts.CacheTTL); err != nil {
		s.recordCacheFailure(err)
		return
	}
	s.recordCacheSuccess()
}

// invalidate evicts every directory key a write could have made stale. A
// failed eviction is logged; the TTL bounds how long the stale record can
// survive.
func (s *TenantService) invalidate(ctx context.Context, id uuid.UUID, subdomains ...string) {
	keys := []string{cacheKeyTenantID + id.String()}
	for _, sub := range subdomains {
		keys = append(keys, cacheKeyTenantSubdomain+tenant.NormalizeSubdomain(sub))
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opts.CacheTimeout)
	defer cancel()

	if err := s.cache.Delete(opCtx, keys...); err != nil {
		s.recordCacheFailure(err)
		s.logger.WithError(err).WithField("tenant_id", id).Warn("failed to invalidate tenant cache")
		return
	}
	s.recordCacheSuccess()
}

func (s *TenantService) cacheAvailable() bool {
	if s.cache == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().After(s.openUntil)
}

func (s *TenantService) recordCacheFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if s.failures >= cacheBreakerThreshold {
		s.openUntil = time.Now().Add(s.opts.CacheBreakerCooldown)
		s.failures = 0
		s.logger.WithError(err).
			WithField("cooldown", s.opts.CacheBreakerCooldown).
			Warn("tenant cache breaker opened, serving from storage")
		return
	}
	s.logger.WithError(err).Warn("tenant cache operation failed")
}

func (s *TenantService) recordCacheSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
}
