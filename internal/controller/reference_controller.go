package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

type ReferenceController struct {
	ReferenceService *service.ReferenceService
	Log              *zap.Logger
}

func (c *ReferenceController) ListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := c.ReferenceService.ListCandidates(r.Context())
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "candidates": candidates})
}

func (c *ReferenceController) ListEndorsers(w http.ResponseWriter, r *http.Request) {
	endorsers, err := c.ReferenceService.ListEndorsers(r.Context())
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"endorsers": endorsers})
}

func (c *ReferenceController) CreateEndorser(w http.ResponseWriter, r *http.Request) {
	var body service.CreateEndorserRequest
	if err := decode(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	e, err := c.ReferenceService.CreateEndorser(r.Context(), body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Endorser added successfully", "endorser": e})
}
