package config

import (
	"fmt"
	"time"
)

const (
	EngineCloudSpeech = "cloud-speech"
	EngineVosk        = "vosk"

	AudioSourceMicrophone = "microphone"
	AudioSourceOpusIngest = "opus-ingest"
)

type Config struct {
	Env                        string
	HTTPAddr                   string
	RecognitionEngine          string
	RecognitionLocale          string
	RecognitionPartialResults  bool
	ListeningPlaceholder       string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	VoskModelPath              string
	AudioSource                string
	AudioDevice                string
	AudioSampleRate            int
	AudioChannels              int
	AudioFrameSize             int
	SummarizerEndpoint         string
	SummarizerAPIKey           string
	SummarizerModel            string
	SummarizerTemperature      float64
	SummarizerMaxTokens        int
	SummarizerTimeout          time.Duration
	TranscriptWebhookURL       string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.RecognitionEngine {
	case EngineCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when RECOGNITION_ENGINE=%s", EngineCloudSpeech)
		}
	case EngineVosk:
		if c.VoskModelPath == "" {
			return fmt.Errorf("VOSK_MODEL_PATH is required when RECOGNITION_ENGINE=%s", EngineVosk)
		}
	default:
		return fmt.Errorf("RECOGNITION_ENGINE must be %q or %q, got %q", EngineCloudSpeech, EngineVosk, c.RecognitionEngine)
	}
	if c.AudioSource != AudioSourceMicrophone && c.AudioSource != AudioSourceOpusIngest {
		return fmt.Errorf("AUDIO_SOURCE must be %q or %q, got %q", AudioSourceMicrophone, AudioSourceOpusIngest, c.AudioSource)
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	if c.AudioChannels != 1 && c.AudioChannels != 2 {
		return fmt.Errorf("AUDIO_CHANNELS must be 1 or 2, got %d", c.AudioChannels)
	}
	if c.RecognitionEngine == EngineVosk && c.AudioChannels != 1 {
		return fmt.Errorf("AUDIO_CHANNELS must be 1 when RECOGNITION_ENGINE is %q, got %d", EngineVosk, c.AudioChannels)
	}
	if c.AudioFrameSize <= 0 {
		return fmt.Errorf("AUDIO_FRAME_SIZE must be positive, got %d", c.AudioFrameSize)
	}
	if c.SummarizerTemperature < 0 || c.SummarizerTemperature > 2 {
		return fmt.Errorf("SUMMARIZER_TEMPERATURE must be within [0, 2], got %v", c.SummarizerTemperature)
	}
	if c.SummarizerMaxTokens <= 0 {
		return fmt.Errorf("SUMMARIZER_MAX_TOKENS must be positive, got %d", c.SummarizerMaxTokens)
	}
	if c.SummarizerTimeout <= 0 {
		return fmt.Errorf("SUMMARIZER_TIMEOUT must be positive, got %s", c.SummarizerTimeout)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "RECOGNITION_LOCALE", value: c.RecognitionLocale},
		{name: "LISTENING_PLACEHOLDER", value: c.ListeningPlaceholder},
		{name: "SUMMARIZER_ENDPOINT", value: c.SummarizerEndpoint},
		{name: "SUMMARIZER_MODEL", value: c.SummarizerModel},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SummarizerEnabled reports whether an API key was configured.
func (c *Config) SummarizerEnabled() bool {
	return c.SummarizerAPIKey != ""
}
