// Package alert posts best-effort operational notifications to a webhook.
// Alerting must never affect pipeline outcomes: every failure here is
// logged and swallowed.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	SeverityWarning = "warning"
	SeverityFatal   = "fatal"
)

const postTimeout = 5 * time.Second

// Notifier posts alerts to a configured webhook. A Notifier with an empty
// URL is valid and silently drops everything.
type Notifier struct {
	webhookURL string
	channel    string
	http       *http.Client
}

func New(webhookURL, channel string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		channel:    channel,
		http:       &http.Client{Timeout: postTimeout},
	}
}

type payload struct {
	Channel  string            `json:"channel,omitempty"`
	Severity string            `json:"severity"`
	Text     string            `json:"text"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Post sends one alert. Errors are logged, never returned.
func (n *Notifier) Post(ctx context.Context, severity, text string, fields map[string]string) {
	if n == nil || n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(payload{
		Channel:  n.channel,
		Severity: severity,
		Text:     text,
		Fields:   fields,
	})
	if err != nil {
		zap.L().Warn("alert: marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("alert: build request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		zap.L().Warn("alert: post failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		zap.L().Warn("alert: webhook rejected post",
			zap.Int("status", resp.StatusCode),
			zap.String("severity", severity))
	}
}
