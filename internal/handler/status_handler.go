package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

type StatusHandler struct {
	Service *service.StatusService
	Log     *zap.Logger
}

func (h *StatusHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Status(r.Context())
	if err != nil {
		if h.Log != nil {
			h.Log.Error("❌ Error getting system status", zap.Error(err))
		}
		http.Error(w, "failed to get system status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}
