package recognizer

import (
	"context"
	"errors"
)

type AuthorizationStatus int

const (
	NotDetermined AuthorizationStatus = iota
	Authorized
	Denied
	Restricted
)

func (s AuthorizationStatus) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	default:
		return "not_determined"
	}
}

// Determined reports whether the status is final for the process lifetime.
func (s AuthorizationStatus) Determined() bool {
	return s != NotDetermined
}

var (
	ErrNotAuthorized     = errors.New("speech recognition is not authorized")
	ErrUnsupportedLocale = errors.New("locale is not supported by the recognition engine")
	ErrEngineUnavailable = errors.New("recognition engine is unavailable")
	ErrRequestClosed     = errors.New("recognition request is closed")
)

type EventKind int

const (
	Partial EventKind = iota + 1
	Final
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Partial:
		return "partial"
	case Final:
		return "final"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (k EventKind) Terminal() bool {
	return k == Final || k == Failed
}

type Event struct {
	Kind   EventKind
	Text   string
	Reason string
}

func PartialEvent(text string) Event { return Event{Kind: Partial, Text: text} }
func FinalEvent(text string) Event   { return Event{Kind: Final, Text: text} }
func FailedEvent(reason string) Event {
	return Event{Kind: Failed, Reason: reason}
}

type Engine interface {
	RequestAuthorization(ctx context.Context) AuthorizationStatus
	BeginRequest(ctx context.Context, locale string, partialResults bool) (Request, error)
}

// Request is one recognition invocation. Events delivers in engine order and
// is closed after the first Final or Failed event, or after Cancel.
type Request interface {
	PushAudio(frame []byte) error
	FinalizeAudio() error
	Cancel()
	Events() <-chan Event
}
