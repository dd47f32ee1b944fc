package httpapi_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/pkg/httpapi"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{serrors.NewMalformedSubdomainError("BAD"), http.StatusBadRequest},
		{serrors.NewTenantNotFoundError("ghost"), http.StatusNotFound},
		{serrors.NewTenantAccessDeniedError("acme", "suspended"), http.StatusForbidden},
		{serrors.NewCrossTenantViolationError("horse.create"), http.StatusForbidden},
		{serrors.NewPermissionDeniedError("horse.manage"), http.StatusForbidden},
		{serrors.NewSubdomainConflictError("acme"), http.StatusConflict},
		{serrors.NewTenantLimitExceededError("max_users"), http.StatusUnprocessableEntity},
		{serrors.NewInternalError(), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, httpapi.StatusFor(tc.err), "error %v", tc.err)
	}
}

func TestWriteProblem_TaxonomyError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/horses", nil)

	require.NoError(t, httpapi.WriteProblem(rec, req, serrors.NewTenantNotFoundError("ghost")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var problem httpapi.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Not Found", problem.Title)
	assert.Equal(t, serrors.CodeTenantNotFound, problem.Code)
	assert.Equal(t, "/horses", problem.Path)
}

func TestWriteProblem_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/horses", nil)

	require.NoError(t, httpapi.WriteProblem(rec, req, errors.New("pq: connection refused host=10.0.0.5")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var problem httpapi.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Empty(t, problem.Detail, "internal detail must not leak")
	assert.Empty(t, problem.Code)
}
