package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
)

// passthroughDecoder treats each packet as raw PCM.
type passthroughDecoder struct {
	err error
}

func (d *passthroughDecoder) Decode(packet []byte) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make([]byte, len(packet))
	copy(out, packet)
	return out, nil
}

func newTestIngest(dec *passthroughDecoder) *OpusIngest {
	return &OpusIngest{newDecoder: func(audio.Format) (packetDecoder, error) { return dec, nil }}
}

var testFormat = audio.Format{SampleRate: 16000, Channels: 1}

func TestOpusIngest_SecondOpenIsBusy(t *testing.T) {
	ingest := newTestIngest(&passthroughDecoder{})
	s, err := ingest.Open(context.Background(), 2, testFormat)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := ingest.Open(context.Background(), 2, testFormat); !audio.IsCaptureError(err, audio.DeviceBusy) {
		t.Fatalf("expected DeviceBusy, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if ingest.Active() {
		t.Fatal("expected ingest to be released after Close")
	}
	s2, err := ingest.Open(context.Background(), 2, testFormat)
	if err != nil {
		t.Fatalf("Open after Close failed: %v", err)
	}
	_ = s2.Close()
}

func TestOpusIngest_DeliversFramesInOrder(t *testing.T) {
	ingest := newTestIngest(&passthroughDecoder{})
	s, err := ingest.Open(context.Background(), 2, testFormat)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	var mu sync.Mutex
	var got []byte
	if err := s.OnFrame(func(frame []byte) {
		mu.Lock()
		defer mu.Unlock()
		if len(frame) != 4 {
			t.Errorf("unexpected frame length %d", len(frame))
		}
		got = append(got, frame...)
	}); err != nil {
		t.Fatalf("OnFrame failed: %v", err)
	}
	ingest.WritePacket([]byte{1, 2, 3})
	ingest.WritePacket([]byte{4, 5, 6, 7, 8})
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if string(got) != string(want) {
		t.Fatalf("unexpected pcm: %v", got)
	}
	_ = s.Close()
}

func TestOpusIngest_DropsPacketsWithoutStream(t *testing.T) {
	ingest := newTestIngest(&passthroughDecoder{})
	ingest.WritePacket([]byte{1, 2})
	if ingest.Active() {
		t.Fatal("expected no active stream")
	}
}

func TestOpusIngest_DecodeErrorSkipsPacket(t *testing.T) {
	ingest := newTestIngest(&passthroughDecoder{err: errors.New("corrupted")})
	s, err := ingest.Open(context.Background(), 2, testFormat)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	delivered := make(chan struct{}, 1)
	_ = s.OnFrame(func([]byte) { delivered <- struct{}{} })
	ingest.WritePacket([]byte{1, 2, 3, 4})
	select {
	case <-delivered:
		t.Fatal("frame must not be delivered for undecodable packet")
	case <-time.After(30 * time.Millisecond):
	}
	_ = s.Close()
}
