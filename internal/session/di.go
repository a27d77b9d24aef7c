package session

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/recognizer"
	"github.com/foxseedlab/kikitori/internal/summarizer"
	"github.com/foxseedlab/kikitori/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Session, error) {
		cfg := do.MustInvoke[*config.Config](i)
		capture := do.MustInvoke[audio.Capture](i)
		engine := do.MustInvoke[recognizer.Engine](i)
		wh := do.MustInvoke[webhook.Sender](i)

		opts := []Option{
			WithPlaceholder(cfg.ListeningPlaceholder),
			WithLocale(cfg.RecognitionLocale),
			WithPartialResults(cfg.RecognitionPartialResults),
			WithFormat(audio.Format{SampleRate: cfg.AudioSampleRate, Channels: cfg.AudioChannels}, cfg.AudioFrameSize),
			WithWebhook(wh),
		}
		if client, err := do.Invoke[summarizer.Client](i); err == nil {
			opts = append(opts, WithSummarizer(client, cfg.SummarizerTimeout))
		} else {
			slog.Info("summarization disabled", "reason", "SUMMARIZER_API_KEY is not set")
		}
		return New(capture, engine, opts...), nil
	})
}
