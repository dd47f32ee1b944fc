package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/pkg/httpapi"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		panic(err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, persistence.ErrTenantNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
	case errors.Is(err, persistence.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, persistence.ErrSessionNotFound):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired or unknown"})
	default:
		_ = httpapi.WriteProblem(w, r, err)
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
