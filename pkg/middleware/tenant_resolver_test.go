package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/logging"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

type fakeDirectory struct {
	bySubdomain map[string]*composables.Tenant
	byID        map[uuid.UUID]*composables.Tenant
	lookups     int
	fail        bool
}

func newFakeDirectory(tenants ...*composables.Tenant) *fakeDirectory {
	d := &fakeDirectory{
		bySubdomain: map[string]*composables.Tenant{},
		byID:        map[uuid.UUID]*composables.Tenant{},
	}
	for _, t := range tenants {
		d.bySubdomain[t.Subdomain] = t
		d.byID[t.ID] = t
	}
	return d
}

func (d *fakeDirectory) ResolveBySubdomain(_ context.Context, subdomain string) (*composables.Tenant, error) {
	d.lookups++
	if d.fail {
		return nil, context.DeadlineExceeded
	}
	t, ok := d.bySubdomain[subdomain]
	if !ok {
		return nil, serrors.NewTenantNotFoundError(subdomain)
	}
	return t, nil
}

func (d *fakeDirectory) ResolveByID(_ context.Context, id uuid.UUID) (*composables.Tenant, error) {
	d.lookups++
	if d.fail {
		return nil, context.DeadlineExceeded
	}
	t, ok := d.byID[id]
	if !ok {
		return nil, serrors.NewTenantNotFoundError(id.String())
	}
	return t, nil
}

func resolverOptions(directory *fakeDirectory) TenantResolverOptions {
	return TenantResolverOptions{
		Directory: directory,
		Logger:    logging.ConsoleLogger(logrus.ErrorLevel),
		Tenant: configuration.TenantOptions{
			BaseDomain:          "rescueranger.test",
			SubdomainHeader:     "X-Tenant-Subdomain",
			IDHeader:            "X-Tenant-ID",
			QueryParam:          "tenant",
			ReservedSubdomains:  []string{"www", "api", "admin"},
			DevDefaultSubdomain: "",
		},
		ExemptPaths: []string{"/health"},
		Production:  true,
	}
}

func activeProjection(subdomain string) *composables.Tenant {
	return &composables.Tenant{
		ID:        uuid.New(),
		Name:      subdomain,
		Subdomain: subdomain,
		Status:    tenant.StatusActive,
	}
}

// capturingHandler records the tenant context the handler observed.
type capturingHandler struct {
	called bool
	tenant *composables.Tenant
}

func (h *capturingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	if t, err := composables.UseTenant(r.Context()); err == nil {
		h.tenant = t
	}
	w.WriteHeader(http.StatusOK)
}

func serveResolved(t *testing.T, options TenantResolverOptions, req *http.Request) (*capturingHandler, *httptest.ResponseRecorder) {
	t.Helper()
	handler := &capturingHandler{}
	rec := httptest.NewRecorder()
	TenantResolver(options)(handler).ServeHTTP(rec, req)
	return handler, rec
}

func TestTenantResolver_HostSubdomain(t *testing.T) {
	acme := activeProjection("acme")
	directory := newFakeDirectory(acme)

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "acme.rescueranger.test"

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, handler.called)
	require.NotNil(t, handler.tenant)
	require.Equal(t, acme.ID, handler.tenant.ID)
	require.True(t, handler.tenant.IsValid())
}

func TestTenantResolver_HostWinsOverHeaderAndQuery(t *testing.T) {
	acme := activeProjection("acme")
	other := activeProjection("other")
	directory := newFakeDirectory(acme, other)

	req := httptest.NewRequest(http.MethodGet, "/horses?tenant=other", nil)
	req.Host = "acme.rescueranger.test"
	req.Header.Set("X-Tenant-Subdomain", "other")

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, acme.ID, handler.tenant.ID)
	require.Equal(t, 1, directory.lookups, "lower-priority sources must never be queried")
}

func TestTenantResolver_ReservedHeaderRejectedBeforeLookup(t *testing.T) {
	directory := newFakeDirectory()

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "rescueranger.test"
	req.Header.Set("X-Tenant-Subdomain", "admin")

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, handler.called)
	require.Zero(t, directory.lookups, "reserved names are rejected before any lookup")
}

func TestTenantResolver_MalformedQueryRejectedBeforeLookup(t *testing.T) {
	directory := newFakeDirectory()

	req := httptest.NewRequest(http.MethodGet, "/horses?tenant=-bad-", nil)
	req.Host = "rescueranger.test"

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, handler.called)
	require.Zero(t, directory.lookups)
}

func TestTenantResolver_NotFound(t *testing.T) {
	directory := newFakeDirectory()

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "ghost.rescueranger.test"

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, handler.called)
}

func TestTenantResolver_SuspendedTenantForbidden(t *testing.T) {
	suspended := activeProjection("frozen")
	suspended.Status = tenant.StatusSuspended
	directory := newFakeDirectory(suspended)

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "frozen.rescueranger.test"

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, handler.called)
}

func TestTenantResolver_DirectoryFailureIsOpaque500(t *testing.T) {
	directory := newFakeDirectory()
	directory.fail = true

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "acme.rescueranger.test"

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, handler.called)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.NotContains(t, rec.Body.String(), "deadline", "internal details must not leak")
}

func TestTenantResolver_HealthBypassesResolution(t *testing.T) {
	directory := newFakeDirectory()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "!!!definitely-not-a-subdomain.rescueranger.test"

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, handler.called)
	require.Nil(t, handler.tenant)
	require.Zero(t, directory.lookups)
}

func TestTenantResolver_NoSignalPassesThroughUnresolved(t *testing.T) {
	directory := newFakeDirectory()

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "rescueranger.test"

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, handler.called)
	require.Nil(t, handler.tenant)
}

func TestTenantResolver_ReservedHostLabelIsNotASignal(t *testing.T) {
	acme := activeProjection("acme")
	directory := newFakeDirectory(acme)

	// Reserved leftmost label: the host produces no signal, so the header
	// is next in priority.
	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "www.rescueranger.test"
	req.Header.Set("X-Tenant-Subdomain", "acme")

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, acme.ID, handler.tenant.ID)
}

func TestTenantResolver_IDHeader(t *testing.T) {
	acme := activeProjection("acme")
	directory := newFakeDirectory(acme)

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "rescueranger.test"
	req.Header.Set("X-Tenant-ID", acme.ID.String())

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, acme.ID, handler.tenant.ID)
}

func TestTenantResolver_MalformedIDHeaderRejected(t *testing.T) {
	directory := newFakeDirectory()

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "rescueranger.test"
	req.Header.Set("X-Tenant-ID", "not-a-uuid-AND-NOT-a-label")

	handler, rec := serveResolved(t, resolverOptions(directory), req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, handler.called)
	require.Zero(t, directory.lookups)
}

func TestTenantResolver_DevDefaultOnlyOutsideProduction(t *testing.T) {
	dev := activeProjection("dev")
	directory := newFakeDirectory(dev)

	options := resolverOptions(directory)
	options.Tenant.DevDefaultSubdomain = "dev"
	options.Production = false

	req := httptest.NewRequest(http.MethodGet, "/horses", nil)
	req.Host = "rescueranger.test"

	handler, rec := serveResolved(t, options, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, dev.ID, handler.tenant.ID)

	// Same request in production resolves nothing.
	options.Production = true
	handler, rec = serveResolved(t, options, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, handler.tenant)
}
