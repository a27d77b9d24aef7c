package summarizer

import (
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/summarizer"
	"github.com/samber/do/v2"
)

// RegisterDI provides a summarizer.Client only when an API key is configured.
func RegisterDI(injector do.Injector) {
	c := do.MustInvoke[*config.Config](injector)
	if !c.SummarizerEnabled() {
		return
	}
	do.Provide(injector, func(i do.Injector) (summarizer.Client, error) {
		return NewOpenAIClient(OpenAIConfig{
			Endpoint:    c.SummarizerEndpoint,
			APIKey:      c.SummarizerAPIKey,
			Model:       c.SummarizerModel,
			Temperature: c.SummarizerTemperature,
			MaxTokens:   c.SummarizerMaxTokens,
		}), nil
	})
}
