//go:build !opus

package audio

import (
	"errors"

	"github.com/foxseedlab/kikitori/internal/audio"
)

func newOpusDecoder(_ audio.Format) (packetDecoder, error) {
	return nil, errors.New("opus support is not compiled in; build with -tags opus")
}
