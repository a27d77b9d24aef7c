package session

import (
	"context"
	"log/slog"
	"strings"
)

type summaryResult struct {
	summary string
	err     error
}

// Summarize sends the current transcript to the summarizer and, if nothing
// changed while waiting, replaces the transcript with the summary. When ctx
// ends first the request keeps running until it completes or times out, and
// its result is discarded.
func (s *Session) Summarize(ctx context.Context) (string, error) {
	if s.summarizer == nil {
		return "", ErrSummarizerUnavailable
	}
	s.mu.Lock()
	text := s.transcript
	revision := s.revision
	s.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyTranscript
	}

	done := make(chan summaryResult, 1)
	go func() {
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.summarizeTimeout)
		defer cancel()
		summary, err := s.summarizer.Summarize(reqCtx, text)
		done <- summaryResult{summary: summary, err: err}
	}()

	select {
	case <-ctx.Done():
		slog.Info("summarize abandoned by caller; result will be discarded", "error", ctx.Err())
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			slog.Warn("summarize failed", "error", r.err)
			return "", r.err
		}
		s.applySummary(revision, r.summary)
		return r.summary, nil
	}
}

func (s *Session) applySummary(revision uint64, summary string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revision != revision || s.pending != nil {
		slog.Info("transcript changed during summarize; summary not applied", "revision", revision, "current_revision", s.revision)
		return false
	}
	s.transcript = summary
	s.changedLocked()
	return true
}
