package session

import (
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/summarizer"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

const (
	DefaultPlaceholder      = "(Go ahead, I'm listening)"
	DefaultLocale           = "en-US"
	DefaultFrameSize        = 1024
	defaultSummarizeTimeout = 30 * time.Second
	webhookTimeout          = 10 * time.Second
)

var DefaultFormat = audio.Format{SampleRate: 16000, Channels: 1}

type Option func(*Session)

func WithPlaceholder(placeholder string) Option {
	return func(s *Session) { s.placeholder = placeholder }
}

func WithLocale(locale string) Option {
	return func(s *Session) { s.locale = locale }
}

func WithPartialResults(enabled bool) Option {
	return func(s *Session) { s.partialResults = enabled }
}

func WithFormat(format audio.Format, frameSize int) Option {
	return func(s *Session) {
		s.format = format
		s.frameSize = frameSize
	}
}

// WithSummarizer enables Summarize. A nil client leaves it disabled.
func WithSummarizer(client summarizer.Client, timeout time.Duration) Option {
	return func(s *Session) {
		s.summarizer = client
		if timeout > 0 {
			s.summarizeTimeout = timeout
		}
	}
}

func WithWebhook(sender webhook.Sender) Option {
	return func(s *Session) { s.webhook = sender }
}
