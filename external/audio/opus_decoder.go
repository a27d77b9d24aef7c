//go:build opus

package audio

import (
	"encoding/binary"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/hraban/opus"
)

// maxPacketDurationMs is the longest frame an Opus packet can carry.
const maxPacketDurationMs = 120

type opusDecoder struct {
	dec      *opus.Decoder
	channels int
	pcm      []int16
}

func newOpusDecoder(format audio.Format) (packetDecoder, error) {
	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, err
	}
	return &opusDecoder{
		dec:      dec,
		channels: format.Channels,
		pcm:      make([]int16, format.SampleRate*maxPacketDurationMs/1000*format.Channels),
	}, nil
}

func (d *opusDecoder) Decode(packet []byte) ([]byte, error) {
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, err
	}
	samples := n * d.channels
	out := make([]byte, samples*audio.BytesPerSample)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(d.pcm[i]))
	}
	return out, nil
}
