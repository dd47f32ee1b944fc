package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/cache"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/eventbus"
	"github.com/rescueranger/rescueranger/pkg/logging"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

type fakeTenantRepo struct {
	byID        map[uuid.UUID]*tenant.Tenant
	bySubdomain map[string]*tenant.Tenant
	calls       int
}

func newFakeTenantRepo(tenants ...*tenant.Tenant) *fakeTenantRepo {
	r := &fakeTenantRepo{
		byID:        map[uuid.UUID]*tenant.Tenant{},
		bySubdomain: map[string]*tenant.Tenant{},
	}
	for _, t := range tenants {
		r.byID[t.ID()] = t
		r.bySubdomain[t.Subdomain()] = t
	}
	return r
}

func (r *fakeTenantRepo) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	r.calls++
	t, ok := r.byID[id]
	if !ok {
		return nil, persistence.ErrTenantNotFound
	}
	return t, nil
}

func (r *fakeTenantRepo) GetBySubdomain(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	r.calls++
	t, ok := r.bySubdomain[subdomain]
	if !ok {
		return nil, persistence.ErrTenantNotFound
	}
	return t, nil
}

func (r *fakeTenantRepo) Create(_ context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	if _, taken := r.bySubdomain[t.Subdomain()]; taken {
		return nil, serrors.NewSubdomainConflictError(t.Subdomain())
	}
	r.byID[t.ID()] = t
	r.bySubdomain[t.Subdomain()] = t
	return t, nil
}

func (r *fakeTenantRepo) Update(_ context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	r.byID[t.ID()] = t
	r.bySubdomain[t.Subdomain()] = t
	return t, nil
}

func (r *fakeTenantRepo) UpdateStatus(_ context.Context, id uuid.UUID, status tenant.Status, reason string) (*tenant.Tenant, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, persistence.ErrTenantNotFound
	}
	if err := t.TransitionTo(status, reason); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *fakeTenantRepo) IsSubdomainAvailable(_ context.Context, subdomain string, excludeID uuid.UUID) (bool, error) {
	t, taken := r.bySubdomain[subdomain]
	return !taken || t.ID() == excludeID, nil
}

func (r *fakeTenantRepo) List(_ context.Context) ([]*tenant.Tenant, error) {
	out := make([]*tenant.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeTenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.UpdateStatus(ctx, id, tenant.StatusPendingDeletion, "deletion requested")
	return err
}

type fakeCache struct {
	values   map[string]string
	failing  bool
	gets     int
	sets     int
	deletes  int
	failures int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.gets++
	if c.failing {
		c.failures++
		return "", errors.New("connection refused")
	}
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.sets++
	if c.failing {
		c.failures++
		return errors.New("connection refused")
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.deletes++
	if c.failing {
		c.failures++
		return errors.New("connection refused")
	}
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func testTenantOptions() configuration.TenantOptions {
	return configuration.TenantOptions{
		BaseDomain:           "rescueranger.test",
		ReservedSubdomains:   []string{"www", "api", "admin"},
		CacheTTL:             time.Minute,
		CacheTimeout:         100 * time.Millisecond,
		CacheBreakerCooldown: time.Minute,
	}
}

func newTestTenantService(repo tenant.Repository, c cache.Cache) *TenantService {
	logger := logging.ConsoleLogger(logrus.ErrorLevel)
	return NewTenantService(
		repo,
		c,
		eventbus.NewEventPublisher(logger),
		authz.NewEngine(logger, nil),
		logger,
		testTenantOptions(),
	)
}

func activeTenant(subdomain string) *tenant.Tenant {
	return tenant.New("Meadow Haven", subdomain, tenant.WithStatus(tenant.StatusActive))
}

func TestTenantService_ResolveBySubdomain_CachesAfterMiss(t *testing.T) {
	repo := newFakeTenantRepo(activeTenant("meadow"))
	c := newFakeCache()
	svc := newTestTenantService(repo, c)

	first, err := svc.ResolveBySubdomain(context.Background(), "meadow")
	require.NoError(t, err)
	require.Equal(t, "meadow", first.Subdomain)
	require.Equal(t, 1, repo.calls)

	second, err := svc.ResolveBySubdomain(context.Background(), "MEADOW")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, repo.calls, "second lookup must be served from cache")
}

func TestTenantService_ResolveByID_PrimesBothKeys(t *testing.T) {
	existing := activeTenant("meadow")
	repo := newFakeTenantRepo(existing)
	c := newFakeCache()
	svc := newTestTenantService(repo, c)

	_, err := svc.ResolveByID(context.Background(), existing.ID())
	require.NoError(t, err)
	require.Contains(t, c.values, cacheKeyTenantID+existing.ID().String())
	require.Contains(t, c.values, cacheKeyTenantSubdomain+"meadow")

	// Subdomain lookup now hits the cache primed by the id lookup.
	_, err = svc.ResolveBySubdomain(context.Background(), "meadow")
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)
}

func TestTenantService_ResolveBySubdomain_NotFound(t *testing.T) {
	svc := newTestTenantService(newFakeTenantRepo(), newFakeCache())

	_, err := svc.ResolveBySubdomain(context.Background(), "ghost")
	require.Error(t, err)

	var base *serrors.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, serrors.CodeTenantNotFound, base.Code)
}

func TestTenantService_CacheFailureFallsThroughToStorage(t *testing.T) {
	repo := newFakeTenantRepo(activeTenant("meadow"))
	c := newFakeCache()
	c.failing = true
	svc := newTestTenantService(repo, c)

	resolved, err := svc.ResolveBySubdomain(context.Background(), "meadow")
	require.NoError(t, err, "cache outages must not fail lookups")
	require.Equal(t, "meadow", resolved.Subdomain)
	require.Equal(t, 1, repo.calls)
}

func TestTenantService_BreakerSkipsCacheAfterConsecutiveFailures(t *testing.T) {
	repo := newFakeTenantRepo(activeTenant("meadow"))
	c := newFakeCache()
	c.failing = true
	svc := newTestTenantService(repo, c)

	for i := 0; i < cacheBreakerThreshold; i++ {
		_, err := svc.ResolveBySubdomain(context.Background(), "meadow")
		require.NoError(t, err)
	}
	require.False(t, svc.cacheAvailable())

	before := c.gets
	_, err := svc.ResolveBySubdomain(context.Background(), "meadow")
	require.NoError(t, err)
	require.Equal(t, before, c.gets, "open breaker must skip the cache entirely")
}

func TestTenantService_BreakerResetsOnSuccess(t *testing.T) {
	repo := newFakeTenantRepo(activeTenant("meadow"))
	c := newFakeCache()
	svc := newTestTenantService(repo, c)

	c.failing = true
	for i := 0; i < cacheBreakerThreshold-1; i++ {
		_, err := svc.ResolveBySubdomain(context.Background(), "meadow")
		require.NoError(t, err)
	}

	c.failing = false
	_, err := svc.ResolveBySubdomain(context.Background(), "meadow")
	require.NoError(t, err)
	require.True(t, svc.cacheAvailable())

	// One more failure must not trip the breaker: the counter reset.
	c.failing = true
	_, err = svc.ResolveBySubdomain(context.Background(), "meadow")
	require.NoError(t, err)
	require.True(t, svc.cacheAvailable())
}

func TestTenantService_UndecodableCacheEntryIsDropped(t *testing.T) {
	repo := newFakeTenantRepo(activeTenant("meadow"))
	c := newFakeCache()
	c.values[cacheKeyTenantSubdomain+"meadow"] = "{not json"
	svc := newTestTenantService(repo, c)

	resolved, err := svc.ResolveBySubdomain(context.Background(), "meadow")
	require.NoError(t, err)
	require.Equal(t, "meadow", resolved.Subdomain)
	require.Equal(t, 1, repo.calls, "bad entry falls through to storage")
	require.NotEqual(t, "{not json", c.values[cacheKeyTenantSubdomain+"meadow"])
}

func TestTenantService_IsReserved(t *testing.T) {
	svc := newTestTenantService(newFakeTenantRepo(), newFakeCache())

	require.True(t, svc.isReserved("www"))
	require.True(t, svc.isReserved("API"))
	require.False(t, svc.isReserved("meadow"))
}

func TestTenantService_FailedResolutionCountsOneBreakerFailure(t *testing.T) {
	repo := newFakeTenantRepo(activeTenant("meadow"))
	c := newFakeCache()
	c.failing = true
	svc := newTestTenantService(repo, c)

	for i := 0; i < cacheBreakerThreshold-1; i++ {
		_, err := svc.ResolveBySubdomain(context.Background(), "meadow")
		require.NoError(t, err)
	}

	require.True(t, svc.cacheAvailable(), "breaker must stay closed below the threshold")
	require.Equal(t, 0, c.sets, "a failed read skips the write-back on the same lookup")
}

func newAdminTenantService(repo tenant.Repository, c cache.Cache) (*TenantService, context.Context) {
	logger := logging.ConsoleLogger(logrus.ErrorLevel)
	engine := authz.NewEngine(logger, nil)
	engine.Register(authz.NewPolicy(PolicyTenantsManage, authz.CrossTenant{}))

	svc := NewTenantService(repo, c, eventbus.NewEventPublisher(logger), engine, logger, testTenantOptions())
	svc.inTx = func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	}

	operator := user.New("Root", "Operator", "root@rescueranger.test",
		user.WithRole(user.RoleAdmin), user.WithSystemAdmin(true))
	return svc, composables.WithUser(context.Background(), operator)
}

func TestTenantService_SetStatusEvictsBothDirectoryKeys(t *testing.T) {
	existing := activeTenant("meadow")
	repo := newFakeTenantRepo(existing)
	c := newFakeCache()
	svc, ctx := newAdminTenantService(repo, c)

	_, err := svc.ResolveByID(ctx, existing.ID())
	require.NoError(t, err)
	require.Contains(t, c.values, cacheKeyTenantID+existing.ID().String())
	require.Contains(t, c.values, cacheKeyTenantSubdomain+"meadow")

	_, err = svc.SetStatus(ctx, existing.ID(), tenant.StatusSuspended, "nonpayment")
	require.NoError(t, err)
	require.NotContains(t, c.values, cacheKeyTenantID+existing.ID().String())
	require.NotContains(t, c.values, cacheKeyTenantSubdomain+"meadow")

	resolved, err := svc.ResolveByID(ctx, existing.ID())
	require.NoError(t, err)
	require.Equal(t, tenant.StatusSuspended, resolved.Status, "lookup after suspend must not serve the stale cached status")
}

func TestTenantService_UpdateEvictsPreviousSubdomainKey(t *testing.T) {
	existing := activeTenant("meadow")
	repo := newFakeTenantRepo(existing)
	c := newFakeCache()
	svc, ctx := newAdminTenantService(repo, c)

	_, err := svc.ResolveBySubdomain(ctx, "meadow")
	require.NoError(t, err)
	require.Contains(t, c.values, cacheKeyTenantSubdomain+"meadow")

	renamed := tenant.New("Meadow Haven", "meadowbrook",
		tenant.WithID(existing.ID()), tenant.WithStatus(tenant.StatusActive))
	_, err = svc.Update(ctx, renamed)
	require.NoError(t, err)
	require.NotContains(t, c.values, cacheKeyTenantID+existing.ID().String())
	require.NotContains(t, c.values, cacheKeyTenantSubdomain+"meadow", "old subdomain key must be evicted")

	resolved, err := svc.ResolveBySubdomain(ctx, "meadowbrook")
	require.NoError(t, err)
	require.Equal(t, existing.ID(), resolved.ID)
}
