package controller

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

type FeedController struct {
	FeedService *service.FeedService
	Log         *zap.Logger
}

func (c *FeedController) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := c.FeedService.ListActive(r.Context())
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "feeds": feeds})
}

func (c *FeedController) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var body service.CreateFeedRequest
	if err := decode(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	f, err := c.FeedService.Create(r.Context(), body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "feed": f})
}

// CheckFeeds queues a check of every active feed, or of one feed when
// feed_id is given.
func (c *FeedController) CheckFeeds(w http.ResponseWriter, r *http.Request) {
	feedID, err := queryID(r, "feed_id")
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	var jobID uuid.UUID
	if feedID != nil {
		jobID, err = c.FeedService.TriggerFeedCheck(r.Context(), *feedID)
	} else {
		jobID, err = c.FeedService.TriggerCheck(r.Context())
	}
	if err != nil {
		writeError(w, c.Log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": jobID})
}

// TestFeed fetches a feed URL once. Fetch failures are reported in the body,
// not as a server error.
func (c *FeedController) TestFeed(w http.ResponseWriter, r *http.Request) {
	var body service.TestFeedRequest
	if err := decode(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	res, err := c.FeedService.Test(r.Context(), body)
	if appErrors.IsValidation(err) {
		writeError(w, c.Log, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "title": res.Title, "item_count": res.ItemCount})
}
