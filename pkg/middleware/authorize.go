package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/audit"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/session"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/constants"
	"github.com/rescueranger/rescueranger/pkg/httpapi"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// SessionAuthorizer resolves an opaque token to its user and session.
type SessionAuthorizer interface {
	Authorize(ctx context.Context, token string) (*user.User, *session.Session, error)
}

// Authorize attaches the authenticated user and session to the context when
// the request carries a valid token. Requests without a token, or with an
// invalid one, proceed anonymously; policies downstream decide what
// anonymous callers may do.
func Authorize(authorizer SessionAuthorizer) mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(conf.SidCookieKey); err == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, sess, err := authorizer.Authorize(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := composables.WithUser(r.Context(), u)
			ctx = composables.WithSession(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireTenant terminates requests that reached a tenant-scoped route
// without a resolved tenant context.
func RequireTenant() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := composables.UseTenant(r.Context())
			if err != nil || !t.IsValid() {
				_ = httpapi.WriteProblem(w, r, serrors.NewTenantNotFoundError(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessAuditor records completed tenant-scoped requests.
type AccessAuditor interface {
	RecordAccess(ctx context.Context, e *audit.Event)
}

// AuditAccess records one access event per tenant-scoped request after the
// handler finishes.
func AuditAccess(auditor AccessAuditor) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			t, err := composables.UseTenant(r.Context())
			if err != nil {
				return
			}

			e := audit.New(audit.EventAccess)
			e.TenantID = t.ID
			e.Endpoint = r.URL.Path
			e.Method = r.Method
			e.Status = wrapped.Status()
			e.Succeeded = wrapped.Status() < http.StatusBadRequest
			if u, err := composables.UseUser(r.Context()); err == nil {
				id := u.ID()
				e.UserID = &id
				e.UserEmail = u.Email()
			}
			if start, ok := r.Context().Value(constants.RequestStart).(time.Time); ok {
				e.Duration = time.Since(start)
			}
			auditor.RecordAccess(r.Context(), e)
		})
	}
}
