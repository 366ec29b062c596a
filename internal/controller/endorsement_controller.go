package controller

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/repository"
	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

type EndorsementController struct {
	EndorsementService *service.EndorsementService
	Log                *zap.Logger
}

func (c *EndorsementController) ListEndorsements(w http.ResponseWriter, r *http.Request) {
	var f repository.EndorsementFilter
	var err error
	if f.CandidateID, err = queryID(r, "candidate_id"); err != nil {
		writeError(w, c.Log, err)
		return
	}
	if f.EndorserID, err = queryID(r, "endorser_id"); err != nil {
		writeError(w, c.Log, err)
		return
	}
	f.IncludeRetracted, _ = strconv.ParseBool(r.URL.Query().Get("include_retracted"))

	endorsements, err := c.EndorsementService.List(r.Context(), f)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "endorsements": endorsements})
}

func (c *EndorsementController) CreateEndorsement(w http.ResponseWriter, r *http.Request) {
	var body service.CreateEndorsementRequest
	if err := decode(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	e, err := c.EndorsementService.Create(r.Context(), body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "endorsement": e})
}

func (c *EndorsementController) VerifyEndorsement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	var body service.VerifyRequest
	if err := decode(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	e, err := c.EndorsementService.Verify(r.Context(), id, body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "endorsement": e})
}

func (c *EndorsementController) RetractEndorsement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	var body service.RetractRequest
	if err := decode(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	e, err := c.EndorsementService.Retract(r.Context(), id, body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "endorsement": e})
}
