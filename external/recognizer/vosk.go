//go:build vosk

package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/foxseedlab/kikitori/internal/recognizer"
)

const voskQueueFrames = 64

type VoskConfig struct {
	ModelPath  string
	SampleRate int
}

// VoskEngine runs recognition on-device. The model is loaded on first use
// and shared by every request.
type VoskEngine struct {
	cfg VoskConfig

	mu    sync.Mutex
	model *vosk.VoskModel
}

func NewVoskEngine(cfg VoskConfig) *VoskEngine {
	vosk.SetLogLevel(-1)
	return &VoskEngine{cfg: cfg}
}

func (e *VoskEngine) RequestAuthorization(_ context.Context) recognizer.AuthorizationStatus {
	info, err := os.Stat(e.cfg.ModelPath)
	if err != nil || !info.IsDir() {
		slog.Warn("vosk model directory is not available", "model_path", e.cfg.ModelPath, "error", err)
		return recognizer.Restricted
	}
	return recognizer.Authorized
}

func (e *VoskEngine) loadModel() (*vosk.VoskModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return e.model, nil
	}
	model, err := vosk.NewModel(e.cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model from %s: %w", e.cfg.ModelPath, err)
	}
	if model == nil {
		return nil, fmt.Errorf("load model from %s: model returned nil", e.cfg.ModelPath)
	}
	e.model = model
	slog.Info("vosk model loaded", "model_path", e.cfg.ModelPath)
	return model, nil
}

func (e *VoskEngine) BeginRequest(_ context.Context, locale string, partialResults bool) (recognizer.Request, error) {
	if !modelSupportsLocale(e.cfg.ModelPath, locale) {
		return nil, fmt.Errorf("%w: %s with model %s", recognizer.ErrUnsupportedLocale, locale, e.cfg.ModelPath)
	}
	model, err := e.loadModel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recognizer.ErrEngineUnavailable, err)
	}
	rec, err := vosk.NewRecognizer(model, float64(e.cfg.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("%w: create recognizer: %v", recognizer.ErrEngineUnavailable, err)
	}
	req := &voskRequest{
		rec:            rec,
		partialResults: partialResults,
		frames:         make(chan []byte, voskQueueFrames),
		events:         make(chan recognizer.Event, eventBufferSize),
		done:           make(chan struct{}),
	}
	go req.run()
	slog.Info("vosk request started", "locale", locale, "partial_results", partialResults)
	return req, nil
}

// Shutdown frees the shared model.
func (e *VoskEngine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

type voskRequest struct {
	rec            *vosk.VoskRecognizer
	partialResults bool

	mu         sync.Mutex
	finalized  bool
	frames     chan []byte
	events     chan recognizer.Event
	done       chan struct{}
	cancelOnce sync.Once
}

func (r *voskRequest) Events() <-chan recognizer.Event {
	return r.events
}

func (r *voskRequest) PushAudio(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || r.isCanceled() {
		return recognizer.ErrRequestClosed
	}
	select {
	case r.frames <- frame:
		return nil
	case <-r.done:
		return recognizer.ErrRequestClosed
	}
}

func (r *voskRequest) FinalizeAudio() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || r.isCanceled() {
		return nil
	}
	r.finalized = true
	close(r.frames)
	return nil
}

func (r *voskRequest) Cancel() {
	r.cancelOnce.Do(func() {
		close(r.done)
	})
}

func (r *voskRequest) isCanceled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *voskRequest) run() {
	defer close(r.events)
	defer r.rec.Free()
	defer r.Cancel()

	var asm transcriptAssembler
	lastPartial := ""
	for {
		select {
		case <-r.done:
			return
		case frame, ok := <-r.frames:
			if !ok {
				res, err := parseVoskResult(r.rec.FinalResult())
				if err != nil {
					r.emit(recognizer.FailedEvent(err.Error()))
					return
				}
				asm.commit(res.Text)
				r.emit(recognizer.FinalEvent(asm.text()))
				return
			}
			if r.rec.AcceptWaveform(frame) > 0 {
				res, err := parseVoskResult(r.rec.Result())
				if err != nil {
					r.emit(recognizer.FailedEvent(err.Error()))
					return
				}
				asm.commit(res.Text)
			} else if r.partialResults {
				res, err := parseVoskResult(r.rec.PartialResult())
				if err != nil {
					r.emit(recognizer.FailedEvent(err.Error()))
					return
				}
				asm.apply([]segment{{text: res.Partial}})
			}
			if !r.partialResults {
				continue
			}
			if text := asm.text(); text != "" && text != lastPartial {
				lastPartial = text
				if !r.emit(recognizer.PartialEvent(text)) {
					return
				}
			}
		}
	}
}

func (r *voskRequest) emit(ev recognizer.Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}
