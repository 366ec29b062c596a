package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps typed errors onto status codes; anything else is a 500
// and is logged.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case appErrors.IsNotFound(err):
		status = http.StatusNotFound
	case appErrors.IsValidation(err):
		status = http.StatusBadRequest
	case appErrors.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, appErrors.ErrQueueUnavailable):
		status = http.StatusServiceUnavailable
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("❌ request failed", zap.Error(err))
		}
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.NewValidation("", "invalid body: "+err.Error())
	}
	return nil
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return appErrors.NewValidation("", "invalid body: "+err.Error())
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, appErrors.NewValidation("id", "must be a UUID")
	}
	return id, nil
}

func queryID(r *http.Request, key string) (*uuid.UUID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, appErrors.NewValidation(key, "must be a UUID")
	}
	return &id, nil
}
