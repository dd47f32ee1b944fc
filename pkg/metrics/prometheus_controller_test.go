package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func TestPrometheusController_ServesOwnedCollectors(t *testing.T) {
	ResolutionAttempts.WithLabelValues(OutcomeResolved, "host").Inc()

	ctrl := NewPrometheusController("")
	require.Equal(t, "/debug/prometheus", ctrl.Key())

	router := mux.NewRouter()
	ctrl.Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "rescueranger_tenant_resolution_attempts_total")
	require.Contains(t, body, "go_goroutines", "runtime collectors ride along on the scrape path")
}
