package handler

import (
	"encoding/json"
	"net/http"

	"github.com/unclebandit/endorsenyc-backend/internal/classifier"
	"github.com/unclebandit/endorsenyc-backend/internal/metrics"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

// ClassifyHandler runs the classifier on posted text without storing anything.
type ClassifyHandler struct {
	Classifier *classifier.Classifier
}

type classifyRequest struct {
	Text         string           `json:"text"`
	SourceURL    string           `json:"source_url"`
	SourceType   model.SourceType `json:"source_type"`
	Author       string           `json:"author"`
	Organization string           `json:"organization"`
}

func (h *ClassifyHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var body classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	res := h.Classifier.Classify(classifier.Input{
		Text:         body.Text,
		SourceURL:    body.SourceURL,
		SourceType:   body.SourceType,
		Author:       body.Author,
		Organization: body.Organization,
	})
	metrics.ClassificationConfidence.Observe(res.Confidence)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "result": res})
}
