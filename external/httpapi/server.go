package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const readHeaderTimeout = 10 * time.Second

// Controller is the part of the session the HTTP surface drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Cancel()
	Snapshot() session.Snapshot
	Subscribe(buffer int) (<-chan session.Snapshot, func())
	CheckPermissions(ctx context.Context) session.Permission
	Summarize(ctx context.Context) (string, error)
}

// PacketSink receives Opus packets from the ingest websocket.
type PacketSink interface {
	WritePacket(packet []byte)
}

type Server struct {
	controller Controller
	ingest     PacketSink
	router     chi.Router
	httpServer *http.Server
	closing    chan struct{}
	closeOnce  sync.Once
}

// NewServer builds the router. ingest may be nil, in which case the ingest
// endpoint is not mounted.
func NewServer(addr string, controller Controller, ingest PacketSink) *Server {
	s := &Server{
		controller: controller,
		ingest:     ingest,
		closing:    make(chan struct{}),
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/permissions", s.handlePermissions)
		r.Get("/session", s.handleSnapshot)
		r.Post("/session/start", s.handleStart)
		r.Post("/session/stop", s.handleStop)
		r.Post("/session/cancel", s.handleCancel)
		r.Get("/session/events", s.handleEvents)
		r.Post("/session/summarize", s.handleSummarize)
		if s.ingest != nil {
			r.Get("/audio/ingest", s.handleIngest)
		}
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr, "opus_ingest", s.ingest != nil)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends event streams, stops accepting requests and waits for
// in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}
