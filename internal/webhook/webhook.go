package webhook

import "context"

type TranscriptWebhookPayload struct {
	RequestID     uint64 `json:"request_id"`
	Transcript    string `json:"transcript"`
	Failed        bool   `json:"failed"`
	FailureReason string `json:"failure_reason,omitempty"`
	FinishedAt    string `json:"finished_at"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
