package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

// SourcesHandler lists the monitored sources grouped by category.
type SourcesHandler struct {
	Service *service.SourceService
	Log     *zap.Logger
}

func (h *SourcesHandler) Sources(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Service.Sources(r.Context())
	if err != nil {
		if h.Log != nil {
			h.Log.Error("❌ Error loading sources", zap.Error(err))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "Failed to load sources data"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overview)
}
