package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns the live checkout sessions, one orchestrator per invoice.
// A second open for the same invoice returns the existing session.
type Manager struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	sessions map[string]*session
	idleTTL  time.Duration
	logger   zerolog.Logger
}

type session struct {
	orch     *Orchestrator
	lastUsed time.Time
}

// NewManager creates a session manager. idleTTL bounds how long an
// untouched session survives before the reaper closes it.
func NewManager(cfg Config, deps Deps, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*session),
		idleTTL:  idleTTL,
		logger:   deps.Logger.With().Str("component", "session-manager").Logger(),
	}
}

// Open returns the session for the invoice, creating it on first use.
func (m *Manager) Open(ctx context.Context, invoiceID, customerID string) (*Orchestrator, error) {
	m.mu.Lock()
	if s, ok := m.sessions[invoiceID]; ok {
		s.lastUsed = time.Now()
		m.mu.Unlock()
		return s.orch, nil
	}
	m.mu.Unlock()

	orch, err := NewOrchestrator(ctx, invoiceID, customerID, m.cfg, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[invoiceID]; ok {
		// Lost the race; keep the first session.
		orch.Close(ctx)
		s.lastUsed = time.Now()
		return s.orch, nil
	}
	m.sessions[invoiceID] = &session{orch: orch, lastUsed: time.Now()}
	m.trackSessions(len(m.sessions))
	return orch, nil
}

func (m *Manager) trackSessions(n int) {
	if m.deps.Metrics == nil {
		return
	}
	m.deps.Metrics.ActiveSessions.Set(float64(n))
}

// Get returns an already-open session, or nil.
func (m *Manager) Get(invoiceID string) *Orchestrator {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[invoiceID]
	if !ok {
		return nil
	}
	s.lastUsed = time.Now()
	return s.orch
}

// CloseSession ends and forgets one session.
func (m *Manager) CloseSession(ctx context.Context, invoiceID string) {
	m.mu.Lock()
	s, ok := m.sessions[invoiceID]
	delete(m.sessions, invoiceID)
	m.trackSessions(len(m.sessions))
	m.mu.Unlock()

	if ok {
		s.orch.Close(ctx)
	}
}

// Reap runs until ctx is cancelled, closing sessions idle past the TTL and
// finally closing everything on shutdown.
func (m *Manager) Reap(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return ctx.Err()
		case <-ticker.C:
			m.reapIdle(ctx)
		}
	}
}

func (m *Manager) reapIdle(ctx context.Context) {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.trackSessions(len(m.sessions))
	m.mu.Unlock()

	for _, s := range expired {
		s.orch.Close(ctx)
	}
	if len(expired) > 0 {
		m.logger.Info().Int("count", len(expired)).Msg("reaped idle checkout sessions")
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.trackSessions(0)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range all {
		s.orch.Close(ctx)
	}
}
