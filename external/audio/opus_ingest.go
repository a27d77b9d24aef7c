package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/foxseedlab/kikitori/internal/audio"
)

type packetDecoder interface {
	// Decode returns 16-bit little-endian PCM for one packet.
	Decode(packet []byte) ([]byte, error)
}

type decoderFactory func(format audio.Format) (packetDecoder, error)

// OpusIngest is a capture whose frames come from Opus packets pushed by a
// remote client. Only one stream may be open at a time.
type OpusIngest struct {
	newDecoder decoderFactory

	mu      sync.Mutex
	current *ingestStream
	packets int64
}

type ingestStream struct {
	*pumpStream
	decoder packetDecoder
}

func NewOpusIngest() *OpusIngest {
	return &OpusIngest{newDecoder: newOpusDecoder}
}

func (c *OpusIngest) Open(ctx context.Context, frameSize int, format audio.Format) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return nil, &audio.CaptureError{Kind: audio.DeviceBusy, Err: fmt.Errorf("opus ingest stream already open")}
	}
	dec, err := c.newDecoder(format)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	s := &ingestStream{
		pumpStream: newPumpStream("opus-ingest", format.FrameBytes(frameSize)),
		decoder:    dec,
	}
	s.closeFn = func() error {
		c.release(s)
		return nil
	}
	c.current = s
	c.packets = 0
	slog.Info("opus ingest stream opened", "sample_rate", format.SampleRate, "channels", format.Channels, "frame_size", frameSize)
	return s, nil
}

func (c *OpusIngest) release(s *ingestStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
		slog.Info("opus ingest stream released", "packets", c.packets)
	}
}

// WritePacket decodes one packet into the open stream. Packets arriving while
// no stream is open are dropped.
func (c *OpusIngest) WritePacket(packet []byte) {
	if len(packet) == 0 {
		return
	}
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return
	}
	c.packets++
	n := c.packets
	pcm, err := s.decoder.Decode(packet)
	c.mu.Unlock()
	if err != nil {
		slog.Warn("failed to decode opus packet", "error", err, "packet_bytes", len(packet))
		return
	}
	if n == 1 || n%500 == 0 {
		slog.Debug("received opus packet", "packet_bytes", len(packet), "total_packets", n)
	}
	s.write(pcm)
}

// Active reports whether a stream is currently open.
func (c *OpusIngest) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
