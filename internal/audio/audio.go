package audio

import (
	"context"
	"errors"
	"fmt"
)

// BytesPerSample is fixed: every capture delivers 16-bit little-endian PCM.
const BytesPerSample = 2

type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) FrameBytes(frameSize int) int {
	return frameSize * f.Channels * BytesPerSample
}

// FrameHandler receives frames in capture order. The slice is owned by the
// handler once delivered.
type FrameHandler func(frame []byte)

type Capture interface {
	Open(ctx context.Context, frameSize int, format Format) (Stream, error)
}

type Stream interface {
	// OnFrame installs the handler and starts delivery. It may be called once.
	OnFrame(handler FrameHandler) error
	Stop() error
	Close() error
}

type CaptureErrorKind int

const (
	DeviceBusy CaptureErrorKind = iota + 1
	PermissionDenied
)

func (k CaptureErrorKind) String() string {
	switch k {
	case DeviceBusy:
		return "device_busy"
	case PermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

type CaptureError struct {
	Kind CaptureErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("audio capture: %s", e.Kind)
	}
	return fmt.Sprintf("audio capture: %s: %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

var ErrStreamStarted = errors.New("frame handler already installed")

// IsCaptureError reports whether err carries a CaptureError of the given kind.
func IsCaptureError(err error, kind CaptureErrorKind) bool {
	var ce *CaptureError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
