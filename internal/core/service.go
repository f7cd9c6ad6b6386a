package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// ErrTooManySessions is returned when MaxSessions is reached and no idle
// session can be evicted.
var ErrTooManySessions = errors.New("too many active sessions")

// Default session settings.
const (
	DefaultSessionTTL  = 2 * time.Hour
	DefaultMaxSessions = 1000
)

// Options configures a Service. Zero values select the defaults.
type Options struct {
	MaxFileSize   int64
	MatchTimeout  time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
	SessionTTL    time.Duration
	MaxSessions   int
	Logger        *slog.Logger
}

// Service owns every matching session of a host process. Each browser (or
// CLI invocation) gets its own Orchestrator; all of them share one matcher
// and one MatchLimiter.
type Service struct {
	matcher Matcher
	limiter *MatchLimiter
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
}

// NewService creates a Service that submits matches to m.
func NewService(m Matcher, opts Options) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MatchTimeout <= 0 {
		opts.MatchTimeout = DefaultMatchTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		matcher:  m,
		limiter:  NewMatchLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Orchestrator),
	}
}

// CreateSession starts a new Idle session and returns its ID.
func (s *Service) CreateSession() (string, *Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.opts.MaxSessions {
		if !s.evictOldestLocked() {
			return "", nil, ErrTooManySessions
		}
	}

	id := uuid.New().String()
	o := NewOrchestrator(s.matcher,
		WithLimiter(s.limiter),
		WithMatchTimeout(s.opts.MatchTimeout),
		WithMaxFileSize(s.opts.MaxFileSize),
		WithLogger(s.logger.With("session_id", id)),
		withClock(s.now),
	)
	s.sessions[id] = o

	s.logger.Debug("session created", "session_id", id, "sessions", len(s.sessions))
	return id, o, nil
}

// Session returns the session with the given ID.
func (s *Service) Session(id string) (*Orchestrator, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}

	s.mu.RLock()
	o, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return o, nil
}

// SessionOrCreate returns the session with the given ID, creating a new one
// when it is unknown. The returned ID differs from id when a session was
// created.
func (s *Service) SessionOrCreate(id string) (string, *Orchestrator, error) {
	if id != "" {
		if o, err := s.Session(id); err == nil {
			return id, o, nil
		}
	}
	return s.CreateSession()
}

// DeleteSession discards a session. Unknown IDs are ignored.
func (s *Service) DeleteSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle removes sessions that have been inactive longer than the TTL.
// Sessions with a match in flight are kept. Returns the number removed.
func (s *Service) EvictIdle() int {
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, o := range s.sessions {
		if o.Busy() || o.LastActive().After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// evictOldestLocked drops the least recently active idle session.
// Caller must hold s.mu.
func (s *Service) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, o := range s.sessions {
		if o.Busy() {
			continue
		}
		if t := o.LastActive(); oldestID == "" || t.Before(oldest) {
			oldestID, oldest = id, t
		}
	}
	if oldestID == "" {
		return false
	}
	delete(s.sessions, oldestID)
	s.logger.Info("session evicted for capacity", "session_id", oldestID)
	return true
}

// LimiterStatus returns the shared match limiter state.
func (s *Service) LimiterStatus() MatchLimiterStatus {
	return s.limiter.Status()
}

// WaitForMatches blocks until no matcher calls are in flight or ctx ends.
func (s *Service) WaitForMatches(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
