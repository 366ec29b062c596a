package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Log *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("type", n.Type),
		zap.String("source_url", n.SourceURL),
		zap.Float64("confidence", n.Confidence),
		zap.Strings("candidates", n.Candidates),
	}
	switch n.Type {
	case NotifyHighConfidence:
		l.Log.Info("🚨 "+n.Message, fields...)
	case NotifyNewEndorsement:
		l.Log.Info("📰 "+n.Message, fields...)
	case NotifyHumanReview:
		l.Log.Info("👀 "+n.Message, fields...)
	default:
		l.Log.Info(n.Message, fields...)
	}
	return nil
}

// WebhookNotifier POSTs each notification as JSON.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %s", resp.Status)
	}
	return nil
}

// MultiNotifier fans out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
