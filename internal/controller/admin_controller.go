package controller

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/scraper"
	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

// AdminController serves the review queue and the scraper trigger.
type AdminController struct {
	EndorsementService *service.EndorsementService
	// Scraper is nil when no model API key is configured.
	Scraper *scraper.Scraper
	Log     *zap.Logger
}

func (c *AdminController) Queue(w http.ResponseWriter, r *http.Request) {
	q, err := c.EndorsementService.Queue(r.Context())
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (c *AdminController) ApproveReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	var body service.ApproveReviewRequest
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	e, err := c.EndorsementService.ApproveReview(r.Context(), id, body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "endorsement": e})
}

func (c *AdminController) RejectReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	if err := c.EndorsementService.RejectReview(r.Context(), id); err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ScrapeEndorsements runs the scraper synchronously and returns what it found.
func (c *AdminController) ScrapeEndorsements(w http.ResponseWriter, r *http.Request) {
	if c.Scraper == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "OpenAI API key not configured"})
		return
	}
	var body scraper.Request
	if err := decode(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	res, err := c.Scraper.Run(r.Context(), body)
	status := http.StatusOK
	switch {
	case err == nil:
	case res != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)):
		// report what was saved before time ran out
		status = http.StatusGatewayTimeout
	default:
		writeError(w, c.Log, err)
		return
	}

	var message string
	switch res.Mode {
	case scraper.ModeEndorser:
		message = "Scraped endorsements for " + res.EndorserName
	case scraper.ModeCandidate:
		message = "Scraped endorsements for " + res.CandidateName
	default:
		message = "Scraped endorsements for all endorsers"
	}
	if res.Incomplete {
		message += " (stopped early)"
	}
	writeJSON(w, status, map[string]any{
		"success":       err == nil,
		"message":       message,
		"incomplete":    res.Incomplete,
		"results":       res.Found,
		"saved":         res.Saved,
		"skipped":       res.Skipped,
		"errors":        res.Errors,
		"searched":      res.Searched,
		"endorserName":  res.EndorserName,
		"candidateName": res.CandidateName,
	})
}
