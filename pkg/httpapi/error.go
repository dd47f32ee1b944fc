package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// Problem standardizes JSON error responses. Internal failures never leak
// detail beyond the generic title.
type Problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status"`
	Path   string `json:"path,omitempty"`
	Code   string `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

// StatusFor maps the error taxonomy onto the HTTP contract: malformed 400,
// not found 404, access denied and cross-tenant 403, conflict 409, limits
// 422, everything else 500.
func StatusFor(err error) int {
	var base *serrors.BaseError
	if !errors.As(err, &base) {
		return http.StatusInternalServerError
	}
	switch base.Code {
	case serrors.CodeMalformedTenant:
		return http.StatusBadRequest
	case serrors.CodeTenantNotFound:
		return http.StatusNotFound
	case serrors.CodeTenantAccessDenied, serrors.CodeCrossTenantBlocked, serrors.CodePermissionDenied:
		return http.StatusForbidden
	case serrors.CodeSubdomainConflict:
		return http.StatusConflict
	case serrors.CodeTenantLimitExceeded:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteProblem renders err as a problem document for the given request path.
// Non-taxonomy errors collapse into a generic 500 with no detail.
func WriteProblem(w http.ResponseWriter, r *http.Request, err error) error {
	status := StatusFor(err)
	problem := &Problem{
		Title:  http.StatusText(status),
		Status: status,
	}
	if r != nil {
		problem.Path = r.URL.Path
	}
	var base *serrors.BaseError
	if errors.As(err, &base) && status != http.StatusInternalServerError {
		problem.Code = base.Code
		problem.Detail = base.Message
	}
	return WriteJSON(w, status, problem)
}

func WriteError(w http.ResponseWriter, status int, code, message string) error {
	return WriteJSON(w, status, &Problem{
		Title:  http.StatusText(status),
		Detail: message,
		Status: status,
		Code:   code,
	})
}
