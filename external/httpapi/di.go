package httpapi

import (
	audioimpl "github.com/foxseedlab/kikitori/external/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		sess := do.MustInvoke[*session.Session](i)
		var ingest PacketSink
		if cfg.AudioSource == config.AudioSourceOpusIngest {
			ingest = do.MustInvoke[*audioimpl.OpusIngest](i)
		}
		return NewServer(cfg.HTTPAddr, sess, ingest), nil
	})
}
