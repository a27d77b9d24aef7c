package audio

import (
	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	c := do.MustInvoke[*config.Config](injector)
	if c.AudioSource == config.AudioSourceOpusIngest {
		do.Provide(injector, func(i do.Injector) (*OpusIngest, error) {
			return NewOpusIngest(), nil
		})
		do.Provide(injector, func(i do.Injector) (audio.Capture, error) {
			return do.MustInvoke[*OpusIngest](i), nil
		})
		return
	}
	do.Provide(injector, func(i do.Injector) (audio.Capture, error) {
		return NewMicrophoneCapture(c.AudioDevice), nil
	})
}
