package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/kikitori/internal/recognizer"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	cloudPlatformScope    = "https://www.googleapis.com/auth/cloud-platform"
	eventBufferSize       = 16
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
	SampleRate      int
	Channels        int
}

type CloudSpeechEngine struct {
	cfg CloudSpeechConfig
}

func NewCloudSpeechEngine(cfg CloudSpeechConfig) *CloudSpeechEngine {
	cfg.Location = strings.TrimSpace(cfg.Location)
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &CloudSpeechEngine{cfg: cfg}
}

func (e *CloudSpeechEngine) RequestAuthorization(_ context.Context) recognizer.AuthorizationStatus {
	if e.cfg.ProjectID == "" || e.cfg.CredentialsJSON == "" {
		return recognizer.Restricted
	}
	if _, err := e.detectCredentials(); err != nil {
		slog.Warn("cloud speech credentials rejected", "error", err)
		return recognizer.Denied
	}
	return recognizer.Authorized
}

func (e *CloudSpeechEngine) detectCredentials() (*auth.Credentials, error) {
	return credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(e.cfg.CredentialsJSON),
		Scopes:          []string{cloudPlatformScope},
	})
}

func (e *CloudSpeechEngine) BeginRequest(ctx context.Context, locale string, partialResults bool) (recognizer.Request, error) {
	if strings.TrimSpace(locale) == "" {
		return nil, recognizer.ErrUnsupportedLocale
	}
	creds, err := e.detectCredentials()
	if err != nil {
		return nil, fmt.Errorf("%w: detect credentials: %v", recognizer.ErrNotAuthorized, err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if e.cfg.Location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", e.cfg.Location, speechAPIEndpointPort)))
	}

	// The request outlives the caller's context; Cancel ends it.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	client, err := speech.NewClient(streamCtx, opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: create speech client: %v", recognizer.ErrEngineUnavailable, err)
	}

	recognizerName := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", e.cfg.ProjectID, e.cfg.Location)
	streamingConfig := &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Model:         e.cfg.Model,
			LanguageCodes: []string{locale},
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   int32(e.cfg.SampleRate),
					AudioChannelCount: int32(e.cfg.Channels),
				},
			},
			Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
		},
		StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: partialResults},
	}
	openStream := func() (speechpb.Speech_StreamingRecognizeClient, error) {
		s, err := client.StreamingRecognize(streamCtx)
		if err != nil {
			return nil, err
		}
		if err := s.Send(&speechpb.StreamingRecognizeRequest{
			Recognizer:       recognizerName,
			StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{StreamingConfig: streamingConfig},
		}); err != nil {
			_ = s.CloseSend()
			return nil, err
		}
		return s, nil
	}

	stream, err := openStream()
	if err != nil {
		cancel()
		_ = client.Close()
		return nil, fmt.Errorf("%w: open recognition stream: %v", recognizer.ErrEngineUnavailable, classifyOpenError(err))
	}
	slog.Info("cloud speech stream initialized", "location", e.cfg.Location, "locale", locale, "model", e.cfg.Model, "partial_results", partialResults)

	req := newCloudRequest(stream, openStream, partialResults, func() {
		cancel()
		if err := client.Close(); err != nil {
			slog.Debug("speech client close failed", "error", err)
		}
	})
	req.startReceiver(stream, 0)
	go req.run()
	return req, nil
}

func classifyOpenError(err error) error {
	if st, ok := status.FromError(err); ok && st.Code() == codes.InvalidArgument &&
		strings.Contains(strings.ToLower(st.Message()), "language") {
		return fmt.Errorf("%w: %v", recognizer.ErrUnsupportedLocale, err)
	}
	return err
}

type streamItem struct {
	generation int
	resp       *speechpb.StreamingRecognizeResponse
	err        error
}

type cloudRequest struct {
	mu         sync.Mutex
	stream     speechpb.Speech_StreamingRecognizeClient
	generation int
	finalized  bool
	// serverClosed is set once the server ended the current generation
	// before FinalizeAudio; its receiver has exited.
	serverClosed bool
	openStream   func() (speechpb.Speech_StreamingRecognizeClient, error)

	partialResults bool
	events         chan recognizer.Event
	results        chan streamItem
	flush          chan struct{}
	done           chan struct{}
	cancelOnce     sync.Once
	release        func()
}

func newCloudRequest(
	stream speechpb.Speech_StreamingRecognizeClient,
	openStream func() (speechpb.Speech_StreamingRecognizeClient, error),
	partialResults bool,
	release func(),
) *cloudRequest {
	return &cloudRequest{
		stream:         stream,
		openStream:     openStream,
		partialResults: partialResults,
		events:         make(chan recognizer.Event, eventBufferSize),
		results:        make(chan streamItem, eventBufferSize),
		flush:          make(chan struct{}),
		done:           make(chan struct{}),
		release:        release,
	}
}

func (r *cloudRequest) Events() <-chan recognizer.Event {
	return r.events
}

func (r *cloudRequest) PushAudio(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || r.isCanceled() {
		return recognizer.ErrRequestClosed
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: frame,
		},
	}
	if err := r.stream.Send(req); err != nil {
		if !isReconnectableStreamError(err) {
			return err
		}
		slog.Warn("recognition send failed with reconnectable error; reconnecting", "error", err)
		if err := r.reconnectLocked(); err != nil {
			return fmt.Errorf("reconnect stream: %w", err)
		}
		return r.stream.Send(req)
	}
	return nil
}

func (r *cloudRequest) FinalizeAudio() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || r.isCanceled() {
		return nil
	}
	r.finalized = true
	if r.serverClosed {
		// Nothing will arrive on the dead stream; run finishes with what it has.
		close(r.flush)
		return nil
	}
	return r.stream.CloseSend()
}

func (r *cloudRequest) Cancel() {
	r.cancelOnce.Do(func() {
		close(r.done)
	})
}

func (r *cloudRequest) isCanceled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *cloudRequest) reconnectLocked() error {
	_ = r.stream.CloseSend()
	next, err := r.openStream()
	if err != nil {
		slog.Error("failed to reconnect recognition stream", "error", err)
		return err
	}
	r.generation++
	r.stream = next
	r.serverClosed = false
	r.startReceiver(next, r.generation)
	slog.Info("recognition stream reconnected", "generation", r.generation)
	return nil
}

func (r *cloudRequest) currentGeneration() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation, r.finalized
}

// markServerClosed records that generation ended without FinalizeAudio. It
// reports true when FinalizeAudio has run in the meantime, in which case the
// caller should finish the request.
func (r *cloudRequest) markServerClosed(generation int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return true
	}
	if generation == r.generation {
		r.serverClosed = true
	}
	return false
}

func (r *cloudRequest) startReceiver(stream speechpb.Speech_StreamingRecognizeClient, generation int) {
	go func() {
		for {
			resp, err := stream.Recv()
			select {
			case r.results <- streamItem{generation: generation, resp: resp, err: err}:
			case <-r.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

// run is the only writer of events.
func (r *cloudRequest) run() {
	defer close(r.events)
	defer r.release()
	defer r.Cancel()

	var asm transcriptAssembler
	lastPartial := ""
	for {
		select {
		case <-r.done:
			slog.Debug("recognition request canceled")
			return
		case <-r.flush:
			slog.Info("recognition finalized after server closed the stream")
			r.emit(recognizer.FinalEvent(asm.text()))
			return
		case item := <-r.results:
			if item.err == nil {
				asm.apply(segmentsOf(item.resp))
				if !r.partialResults {
					continue
				}
				if text := asm.text(); text != "" && text != lastPartial {
					lastPartial = text
					if !r.emit(recognizer.PartialEvent(text)) {
						return
					}
				}
				continue
			}

			generation, finalized := r.currentGeneration()
			if item.generation != generation {
				continue
			}
			eof := errors.Is(item.err, io.EOF)
			if eof && finalized {
				r.emit(recognizer.FinalEvent(asm.text()))
				return
			}
			if !eof && isCanceledError(item.err) {
				return
			}
			if !finalized && (eof || isReconnectableStreamError(item.err)) {
				if r.markServerClosed(item.generation) {
					r.emit(recognizer.FinalEvent(asm.text()))
					return
				}
				slog.Warn("recognition stream closed by server; reconnecting on next frame", "error", item.err)
				continue
			}
			slog.Error("recognition stream failed", "error", item.err)
			r.emit(recognizer.FailedEvent(item.err.Error()))
			return
		}
	}
}

func (r *cloudRequest) emit(ev recognizer.Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

func segmentsOf(resp *speechpb.StreamingRecognizeResponse) []segment {
	results := resp.GetResults()
	out := make([]segment, 0, len(results))
	for _, result := range results {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		out = append(out, segment{
			text:  result.GetAlternatives()[0].GetTranscript(),
			final: result.GetIsFinal(),
		})
	}
	return out
}

func isCanceledError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.Canceled {
		return true
	}
	return strings.Contains(err.Error(), "context canceled")
}

func isReconnectableStreamError(err error) bool {
	if err == io.EOF || strings.Contains(strings.ToLower(err.Error()), "eof") {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
