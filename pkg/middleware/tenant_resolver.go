package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/audit"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/httpapi"
	"github.com/rescueranger/rescueranger/pkg/metrics"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// Resolution signal sources, in priority order. Once a source produces a
// candidate, later sources are never consulted.
const (
	SourceHost     = "host"
	SourceHeader   = "header"
	SourceHeaderID = "header_id"
	SourceQuery    = "query"
	SourceDefault  = "default"
	SourceNone     = "none"
)

// TenantDirectory is the lookup surface the resolver needs.
type TenantDirectory interface {
	ResolveBySubdomain(ctx context.Context, subdomain string) (*composables.Tenant, error)
	ResolveByID(ctx context.Context, id uuid.UUID) (*composables.Tenant, error)
}

// ResolutionAuditor records resolution attempts; implementations must never
// fail the request.
type ResolutionAuditor interface {
	RecordResolution(ctx context.Context, e *audit.Event, outcome, source string)
}

type TenantResolverOptions struct {
	Directory TenantDirectory
	Audit     ResolutionAuditor
	Logger    *logrus.Logger
	Tenant    configuration.TenantOptions
	// ExemptPaths bypass resolution entirely (health checks, metrics).
	ExemptPaths []string
	Production  bool
}

// candidate is one extracted resolution signal before validation.
type candidate struct {
	subdomain string
	id        uuid.UUID
	byID      bool
	malformed bool
	source    string
}

// TenantResolver inspects each request, determines the tenant it belongs
// to, and populates the request-scoped tenant context. Reject paths always
// clear the context before writing the response. A request with no signal
// at all passes through unresolved; endpoints that need a tenant fail when
// they try to use it.
func TenantResolver(options TenantResolverOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, exempt := range options.ExemptPaths {
				if r.URL.Path == exempt || strings.HasPrefix(r.URL.Path, exempt+"/") {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := time.Now()
			cand, ok := extractCandidate(r, options)
			if !ok {
				options.record(r, start, nil, metrics.OutcomeUnresolved, SourceNone, 0)
				next.ServeHTTP(w, r)
				return
			}

			resolved, outcome, err := resolve(r.Context(), cand, options)
			if err != nil {
				ctx := composables.ClearTenant(r.Context())
				r = r.WithContext(ctx)
				options.record(r, start, resolved, outcome, cand.source, httpapi.StatusFor(err))
				_ = httpapi.WriteProblem(w, r, err)
				return
			}

			ctx, err := composables.WithTenant(r.Context(), resolved)
			if err != nil {
				ctx = composables.ClearTenant(r.Context())
				r = r.WithContext(ctx)
				options.record(r, start, resolved, metrics.OutcomeInternal, cand.source, http.StatusInternalServerError)
				_ = httpapi.WriteProblem(w, r, serrors.NewInternalError())
				return
			}

			options.record(r.WithContext(ctx), start, resolved, metrics.OutcomeResolved, cand.source, 0)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractCandidate walks the signal sources in priority order.
func extractCandidate(r *http.Request, options TenantResolverOptions) (candidate, bool) {
	if label, ok := subdomainFromHost(r.Host, options.Tenant); ok {
		return candidate{subdomain: label, source: SourceHost}, true
	}
	if v := strings.TrimSpace(r.Header.Get(options.Tenant.SubdomainHeader)); v != "" {
		return candidate{subdomain: v, source: SourceHeader}, true
	}
	if v := strings.TrimSpace(r.Header.Get(options.Tenant.IDHeader)); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return candidate{subdomain: v, byID: true, malformed: true, source: SourceHeaderID}, true
		}
		return candidate{id: id, byID: true, source: SourceHeaderID}, true
	}
	if v := strings.TrimSpace(r.URL.Query().Get(options.Tenant.QueryParam)); v != "" {
		return candidate{subdomain: v, source: SourceQuery}, true
	}
	if !options.Production && options.Tenant.DevDefaultSubdomain != "" {
		return candidate{subdomain: options.Tenant.DevDefaultSubdomain, source: SourceDefault}, true
	}
	return candidate{}, false
}

// subdomainFromHost extracts the leftmost label when the host sits under
// the configured base domain. Reserved labels (www, api, ...) do not
// produce a host signal; the apex itself never does.
func subdomainFromHost(host string, opts configuration.TenantOptions) (string, bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))

	suffix := "." + opts.BaseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return "", false
	}
	if isReserved(label, opts) {
		return "", false
	}
	return label, true
}

func isReserved(subdomain string, opts configuration.TenantOptions) bool {
	subdomain = tenant.NormalizeSubdomain(subdomain)
	for _, reserved := range opts.ReservedSubdomains {
		if subdomain == reserved {
			return true
		}
	}
	return false
}

// resolve validates the candidate and looks it up in the directory. The
// returned outcome labels the metrics counter.
func resolve(ctx context.Context, cand candidate, options TenantResolverOptions) (*composables.Tenant, string, error) {
	var resolved *composables.Tenant
	var err error

	if cand.malformed {
		return nil, metrics.OutcomeMalformed, serrors.NewMalformedSubdomainError(cand.subdomain)
	}

	if cand.byID {
		resolved, err = options.Directory.ResolveByID(ctx, cand.id)
	} else {
		// Explicit reserved or malformed candidates are client errors,
		// rejected before any directory lookup.
		if isReserved(cand.subdomain, options.Tenant) {
			return nil, metrics.OutcomeMalformed, serrors.NewMalformedSubdomainError(cand.subdomain)
		}
		if err := tenant.ValidateSubdomain(cand.subdomain); err != nil {
			return nil, metrics.OutcomeMalformed, err
		}
		resolved, err = options.Directory.ResolveBySubdomain(ctx, cand.subdomain)
	}

	if err != nil {
		var base *serrors.BaseError
		if errors.As(err, &base) && base.Code == serrors.CodeTenantNotFound {
			return nil, metrics.OutcomeNotFound, err
		}
		options.Logger.WithError(err).Error("tenant directory lookup failed")
		return nil, metrics.OutcomeInternal, serrors.NewInternalError()
	}

	if err := resolved.ValidateAccess(); err != nil {
		return resolved, metrics.OutcomeAccessDenied, err
	}
	return resolved, metrics.OutcomeResolved, nil
}

func (o TenantResolverOptions) record(r *http.Request, start time.Time, resolved *composables.Tenant, outcome, source string, status int) {
	if o.Audit == nil {
		return
	}
	e := audit.New(audit.EventResolution)
	e.Endpoint = r.URL.Path
	e.Method = r.Method
	e.Status = status
	e.Duration = time.Since(start)
	e.Succeeded = outcome == metrics.OutcomeResolved || outcome == metrics.OutcomeUnresolved
	if resolved != nil {
		e.TenantID = resolved.ID
	}
	o.Audit.RecordResolution(r.Context(), e, outcome, source)
}
