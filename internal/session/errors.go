package session

import (
	"errors"
	"fmt"
)

type StartErrorKind int

const (
	AudioRouteUnavailable StartErrorKind = iota + 1
	EngineUnavailable
)

func (k StartErrorKind) String() string {
	switch k {
	case AudioRouteUnavailable:
		return "audio_route_unavailable"
	case EngineUnavailable:
		return "engine_unavailable"
	default:
		return "unknown"
	}
}

// StartError is returned by Start. The session is Idle whenever it is returned.
type StartError struct {
	Kind StartErrorKind
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start session: %s: %v", e.Kind, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

var (
	ErrSummarizerUnavailable = errors.New("summarization is not configured")
	ErrEmptyTranscript       = errors.New("transcript is empty")
)
