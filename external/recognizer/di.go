package recognizer

import (
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/recognizer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (recognizer.Engine, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.RecognitionEngine == config.EngineVosk {
			return NewVoskEngine(VoskConfig{
				ModelPath:  c.VoskModelPath,
				SampleRate: c.AudioSampleRate,
			}), nil
		}
		return NewCloudSpeechEngine(CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
			SampleRate:      c.AudioSampleRate,
			Channels:        c.AudioChannels,
		}), nil
	})
}
