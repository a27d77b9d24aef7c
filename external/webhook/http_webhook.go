package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/foxseedlab/kikitori/internal/webhook"
)

const (
	eventHeader          = "X-Transcript-Event"
	idempotencyKeyHeader = "Idempotency-Key"
	userAgent            = "kikitori-webhook/1"

	eventTranscriptFinal  = "transcript.final"
	eventTranscriptFailed = "transcript.failed"

	// maxErrorBodyBytes bounds the response excerpt kept in a StatusError.
	maxErrorBodyBytes = 512
)

// StatusError is returned when the receiver answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transcript webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("transcript webhook returned status %d: %s", e.StatusCode, e.Body)
}

type HTTPSender struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{},
	}
}

// SendTranscript posts the outcome of one recognition request. An empty URL
// disables delivery.
func (s *HTTPSender) SendTranscript(ctx context.Context, payload webhook.TranscriptWebhookPayload) error {
	if s.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal transcript webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build transcript webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(eventHeader, eventName(payload))
	req.Header.Set(idempotencyKeyHeader, idempotencyKey(payload))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver transcript webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	slog.Debug("transcript webhook delivered",
		"request_id", payload.RequestID,
		"event", eventName(payload),
		"status", resp.StatusCode)
	return nil
}

func eventName(payload webhook.TranscriptWebhookPayload) string {
	if payload.Failed {
		return eventTranscriptFailed
	}
	return eventTranscriptFinal
}

// idempotencyKey is stable for one request outcome.
func idempotencyKey(payload webhook.TranscriptWebhookPayload) string {
	return fmt.Sprintf("transcript-%d-%s", payload.RequestID, payload.FinishedAt)
}
