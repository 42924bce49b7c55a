package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/internal/render/svg"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

// session owns one engine. The engine is not safe for concurrent use, so every
// call goes through mu.
type session struct {
	mu         sync.Mutex
	id         string
	engine     *lollipop.Engine
	canvas     *svg.Canvas
	createdAt  time.Time
	lastAccess time.Time
}

func (s *session) info() *domain.SessionInfo {
	return &domain.SessionInfo{
		ID:         s.id,
		CreatedAt:  s.createdAt,
		LastAccess: s.lastAccess,
		Result:     Snapshot(s.engine),
	}
}

// SessionManager keeps interactive engine sessions between requests and
// expires the idle ones.
type SessionManager struct {
	layouts     *LayoutService
	ttl         time.Duration
	maxSessions int
	logger      *logrus.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

var _ domain.SessionStore = (*SessionManager)(nil)

// NewSessionManager creates a session manager building engines through layouts.
func NewSessionManager(layouts *LayoutService, ttl time.Duration, maxSessions int, logger *logrus.Logger) *SessionManager {
	if logger == nil {
		logger = logrus.New()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionManager{
		layouts:     layouts,
		ttl:         ttl,
		maxSessions: maxSessions,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// Create lays out the request and keeps its engine alive under a new id.
func (m *SessionManager) Create(ctx context.Context, req *domain.LayoutRequest) (*domain.SessionInfo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sweepLocked()
	full := m.maxSessions > 0 && len(m.sessions) >= m.maxSessions
	m.mu.Unlock()
	if full {
		return nil, domain.ErrTooManySessions
	}

	canvas := svg.New(m.layouts.width(req), 0, svg.WithAnimation(true))
	engine, err := m.layouts.buildEngine(ctx, req, canvas)
	if err != nil {
		return nil, err
	}
	canvas.SetSize(engine.Width(), engine.Height())

	now := m.now()
	s := &session{
		id:         uuid.New().String(),
		engine:     engine,
		canvas:     canvas,
		createdAt:  now,
		lastAccess: now,
	}

	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, domain.ErrTooManySessions
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"tracks":     engine.Tracks(),
	}).Info("Session created")

	return s.info(), nil
}

// Get returns the current state of a session.
func (m *SessionManager) Get(id string) (*domain.SessionInfo, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.info(), nil
}

// HandleEvent forwards a pointer event to the session's engine. It reports
// whether the layout was recomputed.
func (m *SessionManager) HandleEvent(id string, ev lollipop.Event) (*domain.SessionInfo, bool, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	changed, err := s.engine.HandleEvent(ev)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": id,
			"event":      ev.Kind,
		}).Debug("Event re-render failed")
		return nil, false, err
	}
	return s.info(), changed, nil
}

// Explode toggles the fan-out of a cluster.
func (m *SessionManager) Explode(id, track, nodeID string) (*domain.SessionInfo, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, err := s.engine.ExplodeCluster(nodeID, track); err != nil {
		return nil, err
	}
	return s.info(), nil
}

// Zoom moves a session to a protein window, or back to the full view when
// protein is nil.
func (m *SessionManager) Zoom(id string, protein *lollipop.Range) (*domain.SessionInfo, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if protein == nil {
		err = s.engine.Reset()
	} else {
		err = s.engine.ZoomToProtein(*protein)
	}
	if err != nil {
		return nil, err
	}
	return s.info(), nil
}

// Resize changes the canvas width of a session.
func (m *SessionManager) Resize(id string, width float64) (*domain.SessionInfo, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.engine.Resize(width); err != nil {
		return nil, err
	}
	s.canvas.SetSize(s.engine.Width(), s.engine.Height())
	return s.info(), nil
}

// SVG returns the session's current drawing.
func (m *SessionManager) SVG(id string) ([]byte, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.canvas.Bytes(), nil
}

// Delete drops a session.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionMissing)
	}
	delete(m.sessions, id)
	m.logger.WithField("session_id", id).Info("Session deleted")
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes idle sessions and returns how many were dropped.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.WithField("expired", n).Info("Expired idle sessions")
			}
		}
	}
}

func (m *SessionManager) sweepLocked() int {
	cutoff := m.now().Add(-m.ttl)
	expired := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastAccess.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			expired++
		}
	}
	return expired
}

// lookup returns a live session with its lock held and its access time
// refreshed.
func (m *SessionManager) lookup(id string) (*session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionMissing)
	}

	s.mu.Lock()
	now := m.now()
	if now.Sub(s.lastAccess) > m.ttl {
		s.mu.Unlock()
		m.mu.Lock()
		if m.sessions[id] == s {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("session %s expired: %w", id, domain.ErrSessionMissing)
	}
	s.lastAccess = now
	return s, nil
}
