//go:build !vosk

package recognizer

import (
	"context"
	"fmt"

	"github.com/foxseedlab/kikitori/internal/recognizer"
)

type VoskConfig struct {
	ModelPath  string
	SampleRate int
}

// VoskEngine is unavailable in builds without the vosk tag.
type VoskEngine struct {
	cfg VoskConfig
}

func NewVoskEngine(cfg VoskConfig) *VoskEngine {
	return &VoskEngine{cfg: cfg}
}

func (e *VoskEngine) RequestAuthorization(_ context.Context) recognizer.AuthorizationStatus {
	return recognizer.Restricted
}

func (e *VoskEngine) BeginRequest(_ context.Context, _ string, _ bool) (recognizer.Request, error) {
	return nil, fmt.Errorf("%w: vosk support is not compiled in; build with -tags vosk", recognizer.ErrEngineUnavailable)
}

func (e *VoskEngine) Shutdown() error {
	return nil
}
