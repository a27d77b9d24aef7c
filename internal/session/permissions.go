package session

import (
	"context"
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/recognizer"
)

type Permission struct {
	Granted bool
	Status  recognizer.AuthorizationStatus
}

// CheckPermissions queries the engine once and caches any determined status
// for the process lifetime.
func (s *Session) CheckPermissions(ctx context.Context) Permission {
	s.mu.Lock()
	if s.authCached {
		status := s.auth
		s.mu.Unlock()
		return Permission{Granted: status == recognizer.Authorized, Status: status}
	}
	s.mu.Unlock()

	status := s.engine.RequestAuthorization(ctx)
	slog.Info("speech recognition authorization checked", "status", status.String())

	if status.Determined() {
		s.mu.Lock()
		s.auth = status
		s.authCached = true
		s.mu.Unlock()
	}
	return Permission{Granted: status == recognizer.Authorized, Status: status}
}

func (s *Session) revokeAuthorization() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authCached {
		slog.Warn("speech recognition authorization revoked; will query again")
	}
	s.authCached = false
	s.auth = recognizer.NotDetermined
}
