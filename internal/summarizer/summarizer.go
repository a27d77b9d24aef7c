package summarizer

import (
	"context"
	"errors"
	"fmt"
)

const promptPrefix = "Summarize this: "

func Prompt(text string) string {
	return promptPrefix + text
}

type Client interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type ErrorKind int

const (
	NetworkFailure ErrorKind = iota + 1
	MalformedResponse
	Unauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkFailure:
		return "network_failure"
	case MalformedResponse:
		return "malformed_response"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("summarize: %s", e.Kind)
	}
	return fmt.Sprintf("summarize: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func KindOf(err error) (ErrorKind, bool) {
	var se *Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Kind, true
}
