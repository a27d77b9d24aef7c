package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kikitori/internal/config"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	HTTPAddr                   string        `env:"HTTP_ADDR" envDefault:":8080"`
	RecognitionEngine          string        `env:"RECOGNITION_ENGINE" envDefault:"cloud-speech"`
	RecognitionLocale          string        `env:"RECOGNITION_LOCALE" envDefault:"en-US"`
	RecognitionPartialResults  bool          `env:"RECOGNITION_PARTIAL_RESULTS" envDefault:"true"`
	ListeningPlaceholder       string        `env:"LISTENING_PLACEHOLDER" envDefault:"(Go ahead, I'm listening)"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	VoskModelPath              string        `env:"VOSK_MODEL_PATH"`
	AudioSource                string        `env:"AUDIO_SOURCE" envDefault:"microphone"`
	AudioDevice                string        `env:"AUDIO_DEVICE"`
	AudioSampleRate            int           `env:"AUDIO_SAMPLE_RATE" envDefault:"16000"`
	AudioChannels              int           `env:"AUDIO_CHANNELS" envDefault:"1"`
	AudioFrameSize             int           `env:"AUDIO_FRAME_SIZE" envDefault:"1024"`
	SummarizerEndpoint         string        `env:"SUMMARIZER_ENDPOINT" envDefault:"https://api.openai.com/v1/completions"`
	SummarizerAPIKey           string        `env:"SUMMARIZER_API_KEY"`
	SummarizerModel            string        `env:"SUMMARIZER_MODEL" envDefault:"gpt-3.5-turbo-instruct"`
	SummarizerTemperature      float64       `env:"SUMMARIZER_TEMPERATURE" envDefault:"0.5"`
	SummarizerMaxTokens        int           `env:"SUMMARIZER_MAX_TOKENS" envDefault:"150"`
	SummarizerTimeout          time.Duration `env:"SUMMARIZER_TIMEOUT" envDefault:"30s"`
	TranscriptWebhookURL       string        `env:"TRANSCRIPT_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		RecognitionEngine:          raw.RecognitionEngine,
		RecognitionLocale:          raw.RecognitionLocale,
		RecognitionPartialResults:  raw.RecognitionPartialResults,
		ListeningPlaceholder:       raw.ListeningPlaceholder,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		VoskModelPath:              raw.VoskModelPath,
		AudioSource:                raw.AudioSource,
		AudioDevice:                raw.AudioDevice,
		AudioSampleRate:            raw.AudioSampleRate,
		AudioChannels:              raw.AudioChannels,
		AudioFrameSize:             raw.AudioFrameSize,
		SummarizerEndpoint:         raw.SummarizerEndpoint,
		SummarizerAPIKey:           raw.SummarizerAPIKey,
		SummarizerModel:            raw.SummarizerModel,
		SummarizerTemperature:      raw.SummarizerTemperature,
		SummarizerMaxTokens:        raw.SummarizerMaxTokens,
		SummarizerTimeout:          raw.SummarizerTimeout,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
