package audio

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/foxseedlab/kikitori/internal/audio"
)

const pumpQueueFrames = 64

var errStreamClosed = errors.New("audio stream is closed")

// frameChunker re-slices arbitrary byte runs into frames of exactly size bytes.
type frameChunker struct {
	size    int
	pending []byte
}

func newFrameChunker(size int) *frameChunker {
	return &frameChunker{size: size, pending: make([]byte, 0, size)}
}

func (c *frameChunker) push(p []byte) [][]byte {
	var frames [][]byte
	for len(p) > 0 {
		n := c.size - len(c.pending)
		if n > len(p) {
			n = len(p)
		}
		c.pending = append(c.pending, p[:n]...)
		p = p[n:]
		if len(c.pending) == c.size {
			frames = append(frames, c.pending)
			c.pending = make([]byte, 0, c.size)
		}
	}
	return frames
}

// pumpStream hands frames from a producer (device callback or websocket
// reader) to a single handler goroutine so the producer never blocks on the
// recognizer.
type pumpStream struct {
	name string

	mu        sync.Mutex
	chunker   *frameChunker
	frames    chan []byte
	handler   audio.FrameHandler
	stopped   bool
	closed    bool
	dropped   int64
	delivered chan struct{}
	closeOnce sync.Once
	// stopDone is closed once a Stop call has returned from stopFn.
	stopDone chan struct{}

	startFn func() error
	stopFn  func() error
	closeFn func() error
}

func newPumpStream(name string, frameBytes int) *pumpStream {
	return &pumpStream{
		name:      name,
		chunker:   newFrameChunker(frameBytes),
		frames:    make(chan []byte, pumpQueueFrames),
		delivered: make(chan struct{}),
	}
}

func (s *pumpStream) OnFrame(handler audio.FrameHandler) error {
	s.mu.Lock()
	if s.closed || s.stopped {
		s.mu.Unlock()
		return errStreamClosed
	}
	if s.handler != nil {
		s.mu.Unlock()
		return audio.ErrStreamStarted
	}
	s.handler = handler
	go s.run(handler)
	s.mu.Unlock()

	if s.startFn == nil {
		return nil
	}
	if err := s.startFn(); err != nil {
		s.mu.Lock()
		s.stopped = true
		s.closeFrames()
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *pumpStream) run(handler audio.FrameHandler) {
	defer close(s.delivered)
	for frame := range s.frames {
		handler(frame)
	}
}

func (s *pumpStream) write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil || s.stopped || s.closed {
		return
	}
	for _, frame := range s.chunker.push(p) {
		s.enqueueLocked(frame)
	}
}

func (s *pumpStream) enqueueLocked(frame []byte) {
	select {
	case s.frames <- frame:
	default:
		s.dropped++
		if s.dropped == 1 || s.dropped%100 == 0 {
			slog.Warn("audio frame queue full; dropping frame", "source", s.name, "dropped_frames", s.dropped)
		}
	}
}

// flushTailLocked delivers a partial last frame padded with silence.
func (s *pumpStream) flushTailLocked() {
	tail := s.chunker.pending
	if len(tail) == 0 {
		return
	}
	frame := make([]byte, s.chunker.size)
	copy(frame, tail)
	s.chunker.pending = s.chunker.pending[:0]
	s.enqueueLocked(frame)
}

// Stop halts delivery and waits until every queued frame, including a
// padded partial tail, reached the handler.
func (s *pumpStream) Stop() error {
	s.mu.Lock()
	if s.stopped || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.handler != nil
	stopDone := make(chan struct{})
	s.stopDone = stopDone
	s.mu.Unlock()

	var err error
	if s.stopFn != nil {
		err = s.stopFn()
	}
	close(stopDone)
	s.mu.Lock()
	if started && !s.closed {
		s.flushTailLocked()
	}
	s.closeFrames()
	s.mu.Unlock()
	if started {
		<-s.delivered
	}
	return err
}

// Close releases the source without waiting for queued frames.
func (s *pumpStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	wasStopped := s.stopped
	stopDone := s.stopDone
	s.closed = true
	s.stopped = true
	s.closeFrames()
	s.mu.Unlock()

	// The device must not be released while a concurrent Stop is stopping it.
	if stopDone != nil {
		<-stopDone
	}
	var errs []error
	if !wasStopped && s.stopFn != nil {
		errs = append(errs, s.stopFn())
	}
	if s.closeFn != nil {
		errs = append(errs, s.closeFn())
	}
	return errors.Join(errs...)
}

func (s *pumpStream) closeFrames() {
	s.closeOnce.Do(func() {
		close(s.frames)
	})
}
