package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthHandler always answers; failing checks are listed but the process
// is still reported as up so orchestrators do not restart a reconnecting worker.
type HealthHandler struct {
	Service string
	Checks  map[string]Check
	Now     func() time.Time
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.Checks))
	status := "ok"
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       status,
		"service":      h.Service,
		"dependencies": deps,
		"timestamp":    now().UTC(),
	})
}
