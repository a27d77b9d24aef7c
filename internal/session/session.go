package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/recognizer"
	"github.com/foxseedlab/kikitori/internal/summarizer"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

type State int

const (
	Idle State = iota
	Recording
	Finalizing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Snapshot is a read-only copy of the observable session state.
type Snapshot struct {
	State         State
	Recording     bool
	Transcript    string
	Failed        bool
	FailureReason string
	RequestID     uint64
	Revision      uint64
}

const streamClosedReason = "recognition stream closed"

// Session drives one capture device and one recognition engine through the
// start/stop/cancel lifecycle. The transcript is mutated only by Start, by
// recognition events of the pending request and by an applied summary.
type Session struct {
	capture    audio.Capture
	engine     recognizer.Engine
	summarizer summarizer.Client
	webhook    webhook.Sender

	placeholder      string
	locale           string
	partialResults   bool
	format           audio.Format
	frameSize        int
	summarizeTimeout time.Duration

	startMu sync.Mutex

	mu            sync.Mutex
	state         State
	transcript    string
	failed        bool
	failureReason string
	pending       *pendingRequest
	lastID        uint64
	revision      uint64
	auth          recognizer.AuthorizationStatus
	authCached    bool
	subscribers   map[uint64]*subscriber
	nextSubID     uint64
}

type pendingRequest struct {
	id     uint64
	req    recognizer.Request
	stream audio.Stream
}

func New(capture audio.Capture, engine recognizer.Engine, opts ...Option) *Session {
	s := &Session{
		capture:          capture,
		engine:           engine,
		placeholder:      DefaultPlaceholder,
		locale:           DefaultLocale,
		partialResults:   true,
		format:           DefaultFormat,
		frameSize:        DefaultFrameSize,
		summarizeTimeout: defaultSummarizeTimeout,
		subscribers:      make(map[uint64]*subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start cancels any pending request and begins a new one. Setup failures are
// returned as *StartError and leave the session Idle.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.Cancel()

	perm := s.CheckPermissions(ctx)
	if !perm.Granted {
		slog.Warn("start refused: speech recognition not authorized", "status", perm.Status.String())
		return &StartError{
			Kind: EngineUnavailable,
			Err:  fmt.Errorf("%w: status %s", recognizer.ErrNotAuthorized, perm.Status),
		}
	}

	stream, err := s.capture.Open(ctx, s.frameSize, s.format)
	if err != nil {
		slog.Error("failed to open audio capture", "error", err)
		return &StartError{Kind: AudioRouteUnavailable, Err: err}
	}

	req, err := s.engine.BeginRequest(ctx, s.locale, s.partialResults)
	if err != nil {
		closeStream(stream)
		if errors.Is(err, recognizer.ErrNotAuthorized) {
			s.revokeAuthorization()
		}
		slog.Error("failed to begin recognition request", "error", err, "locale", s.locale)
		return &StartError{Kind: EngineUnavailable, Err: err}
	}

	if err := stream.OnFrame(func(frame []byte) {
		if err := req.PushAudio(frame); err != nil && !errors.Is(err, recognizer.ErrRequestClosed) {
			slog.Warn("failed to push audio frame", "error", err, "frame_bytes", len(frame))
		}
	}); err != nil {
		req.Cancel()
		closeStream(stream)
		slog.Error("failed to start audio delivery", "error", err)
		return &StartError{Kind: AudioRouteUnavailable, Err: err}
	}

	s.mu.Lock()
	s.lastID++
	p := &pendingRequest{id: s.lastID, req: req, stream: stream}
	s.pending = p
	s.transcript = s.placeholder
	s.failed = false
	s.failureReason = ""
	s.state = Recording
	s.changedLocked()
	s.mu.Unlock()

	slog.Info("recording started", "request_id", p.id, "locale", s.locale, "partial_results", s.partialResults)
	go s.forwardEvents(p.id, req)
	return nil
}

// Stop ends audio for the pending request and returns without waiting. The
// capture drains and the engine is told no more audio follows in the
// background; it may still deliver a final result afterwards. It is a no-op
// unless the session is Recording.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return
	}
	p := s.pending
	s.state = Finalizing
	s.changedLocked()
	s.mu.Unlock()

	slog.Info("recording stopped; waiting for final result", "request_id", p.id)
	go finishAudio(p)
}

// finishAudio drains the capture before signalling end of audio so every
// captured frame reaches the engine first.
func finishAudio(p *pendingRequest) {
	if err := p.stream.Stop(); err != nil {
		slog.Warn("failed to stop audio capture", "error", err, "request_id", p.id)
	}
	if err := p.req.FinalizeAudio(); err != nil {
		slog.Warn("failed to finalize recognition audio", "error", err, "request_id", p.id)
	}
}

// Cancel discards the pending request and returns to Idle. The transcript is
// left unchanged.
func (s *Session) Cancel() {
	s.mu.Lock()
	p := s.pending
	wasIdle := s.state == Idle
	s.pending = nil
	s.state = Idle
	if p != nil || !wasIdle {
		s.changedLocked()
	}
	s.mu.Unlock()

	if p == nil {
		return
	}
	slog.Info("recognition request canceled", "request_id", p.id)
	p.req.Cancel()
	closeStream(p.stream)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	var id uint64
	if s.pending != nil {
		id = s.pending.id
	}
	return Snapshot{
		State:         s.state,
		Recording:     s.state == Recording,
		Transcript:    s.transcript,
		Failed:        s.failed,
		FailureReason: s.failureReason,
		RequestID:     id,
		Revision:      s.revision,
	}
}

func (s *Session) forwardEvents(id uint64, req recognizer.Request) {
	for ev := range req.Events() {
		s.onRecognitionUpdate(id, ev)
		if ev.Kind.Terminal() {
			return
		}
	}
	s.onRecognitionUpdate(id, recognizer.FailedEvent(streamClosedReason))
}

// onRecognitionUpdate applies one event of request id. Events of any request
// other than the pending one are dropped.
func (s *Session) onRecognitionUpdate(id uint64, ev recognizer.Event) {
	s.mu.Lock()
	p := s.pending
	if p == nil || p.id != id {
		s.mu.Unlock()
		slog.Debug("dropping stale recognition event", "request_id", id, "kind", ev.Kind.String())
		return
	}

	switch ev.Kind {
	case recognizer.Partial:
		s.transcript = ev.Text
		s.changedLocked()
		s.mu.Unlock()
		return
	case recognizer.Final:
		s.transcript = ev.Text
	case recognizer.Failed:
		s.failed = true
		s.failureReason = ev.Reason
	default:
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.state = Idle
	s.changedLocked()
	payload := webhook.TranscriptWebhookPayload{
		RequestID:     id,
		Transcript:    s.transcript,
		Failed:        s.failed,
		FailureReason: s.failureReason,
		FinishedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Unlock()

	if ev.Kind == recognizer.Failed {
		slog.Error("recognition failed", "request_id", id, "reason", ev.Reason)
	} else {
		slog.Info("recognition finished", "request_id", id, "transcript_chars", len(ev.Text))
	}
	p.req.Cancel()
	closeStream(p.stream)
	s.sendWebhook(payload)
}

func (s *Session) sendWebhook(payload webhook.TranscriptWebhookPayload) {
	if s.webhook == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		if err := s.webhook.SendTranscript(ctx, payload); err != nil {
			slog.Error("failed to send webhook transcript", "error", err, "request_id", payload.RequestID)
		}
	}()
}

// changedLocked bumps the revision and publishes a snapshot.
func (s *Session) changedLocked() {
	s.revision++
	s.notifyLocked(s.snapshotLocked())
}

func closeStream(stream audio.Stream) {
	if err := stream.Close(); err != nil {
		slog.Warn("failed to close audio capture", "error", err)
	}
}

// Shutdown cancels any pending request. It is called by the injector on exit.
func (s *Session) Shutdown() {
	s.Cancel()
}
