package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/foxseedlab/kikitori/internal/summarizer"
)

const (
	eventsBuffer      = 16
	eventsKeepAlive   = 15 * time.Second
	errorKindInternal = "internal"
)

type snapshotResponse struct {
	State         string `json:"state"`
	Recording     bool   `json:"recording"`
	Transcript    string `json:"transcript"`
	Failed        bool   `json:"failed"`
	FailureReason string `json:"failure_reason,omitempty"`
	RequestID     uint64 `json:"request_id,omitempty"`
	Revision      uint64 `json:"revision"`
}

func toSnapshotResponse(snap session.Snapshot) snapshotResponse {
	return snapshotResponse{
		State:         snap.State.String(),
		Recording:     snap.Recording,
		Transcript:    snap.Transcript,
		Failed:        snap.Failed,
		FailureReason: snap.FailureReason,
		RequestID:     snap.RequestID,
		Revision:      snap.Revision,
	}
}

type permissionResponse struct {
	Granted bool   `json:"granted"`
	Status  string `json:"status"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorResponse{Error: kind, Message: err.Error()})
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	p := s.controller.CheckPermissions(r.Context())
	writeJSON(w, http.StatusOK, permissionResponse{Granted: p.Granted, Status: p.Status.String()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSnapshotResponse(s.controller.Snapshot()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	err := s.controller.Start(r.Context())
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var se *session.StartError
	if !errors.As(err, &se) {
		writeError(w, http.StatusInternalServerError, errorKindInternal, err)
		return
	}
	switch se.Kind {
	case session.AudioRouteUnavailable:
		writeError(w, http.StatusConflict, se.Kind.String(), err)
	default:
		writeError(w, http.StatusServiceUnavailable, se.Kind.String(), err)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.controller.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.controller.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	summary, err := s.controller.Summarize(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, summaryResponse{Summary: summary})
		return
	}
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, session.ErrSummarizerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "summarizer_unavailable", err)
		return
	case errors.Is(err, session.ErrEmptyTranscript):
		writeError(w, http.StatusConflict, "empty_transcript", err)
		return
	}
	kind, ok := summarizer.KindOf(err)
	switch {
	case !ok:
		writeError(w, http.StatusInternalServerError, errorKindInternal, err)
	case kind == summarizer.Unauthorized:
		writeError(w, http.StatusUnauthorized, kind.String(), err)
	default:
		writeError(w, http.StatusBadGateway, kind.String(), err)
	}
}

// handleEvents streams snapshots as server-sent events until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errorKindInternal, errors.New("streaming unsupported"))
		return
	}
	updates, unsubscribe := s.controller.Subscribe(eventsBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(eventsKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-updates:
			if !ok {
				return
			}
			b, err := json.Marshal(toSnapshotResponse(snap))
			if err != nil {
				slog.Error("failed to encode snapshot", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Revision, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
