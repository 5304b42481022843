package integrity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dataguard/internal/logging"
)

// AlertSink receives integrity reports for operator notification
type AlertSink interface {
	Send(ctx context.Context, report *Report) error
	Name() string
}

// alertRank orders severities for threshold filtering
func alertRank(level AlertLevel) int {
	switch level {
	case AlertCritical:
		return 2
	case AlertWarning:
		return 1
	default:
		return 0
	}
}

// AlertDispatcher fans a report out to every registered sink whose minimum
// severity is met. Sink failures are collected, not fatal.
type AlertDispatcher struct {
	minLevel AlertLevel
	sinks    []AlertSink
}

// NewAlertDispatcher creates a dispatcher that forwards reports at or above
// minLevel
func NewAlertDispatcher(minLevel AlertLevel, sinks ...AlertSink) *AlertDispatcher {
	if minLevel == "" {
		minLevel = AlertWarning
	}
	return &AlertDispatcher{
		minLevel: minLevel,
		sinks:    sinks,
	}
}

// AddSink registers an additional sink
func (d *AlertDispatcher) AddSink(sink AlertSink) {
	d.sinks = append(d.sinks, sink)
}

// Notify forwards the report to every sink if its alert level meets the
// dispatcher's threshold
func (d *AlertDispatcher) Notify(ctx context.Context, report *Report) error {
	if alertRank(report.AlertLevel) < alertRank(d.minLevel) {
		return nil
	}

	var firstErr error
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, report); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sink %s: %w", sink.Name(), err)
		}
	}
	return firstErr
}

// LogSink writes alerts to the structured log, the sink of last resort that
// is always available
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log-backed alert sink
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name returns the sink name
func (s *LogSink) Name() string { return "log" }

// Send logs the report at a level matching its severity
func (s *LogSink) Send(ctx context.Context, report *Report) error {
	entry := s.logger.WithFields(map[string]interface{}{
		"result":            string(report.OverallResult),
		"alert_level":       string(report.AlertLevel),
		"user_count_change": report.UserCountChange,
		"corruption":        report.DataCorruptionDetected,
	})

	switch report.AlertLevel {
	case AlertCritical:
		entry.Error("Integrity alert")
	case AlertWarning:
		entry.Warn("Integrity alert")
	default:
		entry.Info("Integrity alert")
	}
	return nil
}

// WebhookSink posts the full report as JSON to an HTTP endpoint, for
// chat/monitoring integrations
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook-backed alert sink
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the sink name
func (s *WebhookSink) Name() string { return "webhook" }

// Send posts the report to the webhook URL
func (s *WebhookSink) Send(ctx context.Context, report *Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
