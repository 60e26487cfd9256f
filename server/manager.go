package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default session lifecycle settings.
const (
	DefaultIdleTimeout = 30 * time.Minute
	minSweepInterval   = time.Second
)

type managerConfig struct {
	generateID    func() string
	idleTimeout   time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	newSession    func(id string) *Session
}

// Manager owns the concurrent map of live sessions. All mutating
// operations (insert on openOrResume, removal on close, removal by the
// idle sweep) are mutually exclusive under one mutex; session churn is
// low-frequency relative to request volume, so a single lock suffices.
type Manager struct {
	cfg managerConfig

	mu       sync.Mutex
	sessions map[string]*Session
	// closed tombstones every id that ever left the live map, so a
	// generator handing out a spent id can never resurrect it. Grows
	// with session churn; uuid-sized ids make it cheap.
	closed map[string]struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newManager(cfg managerConfig) *Manager {
	if cfg.idleTimeout <= 0 {
		cfg.idleTimeout = DefaultIdleTimeout
	}
	if cfg.sweepInterval <= 0 {
		cfg.sweepInterval = cfg.idleTimeout / 4
	}
	if cfg.sweepInterval < minSweepInterval {
		cfg.sweepInterval = minSweepInterval
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	m := &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		closed:   make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m
}

// OpenOrResume resolves a session id to its live session, stamping its
// activity clock. An empty id creates and registers a fresh session with
// a generated, never-reused id; the caller is responsible for only doing
// so on initialize. An unknown or closed id fails with
// ErrSessionNotFound.
func (m *Manager) OpenOrResume(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID == "" {
		// A well-behaved generator never collides; retrying keeps a
		// misconfigured one from stealing a live session or reviving a
		// closed id.
		for range 3 {
			id := m.cfg.generateID()
			if _, taken := m.sessions[id]; taken {
				continue
			}
			if _, spent := m.closed[id]; spent {
				continue
			}
			s := m.cfg.newSession(id)
			m.sessions[id] = s
			return s, nil
		}
		return nil, errors.New("session id generator keeps producing colliding ids")
	}

	s, ok := m.sessions[sessionID]
	if !ok || s.State() == StateClosed {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	s.touch()
	return s, nil
}

// Close transitions the session to Closed and removes it from the live
// map. Closing an unknown or already-closed session fails with
// ErrSessionNotFound rather than silently succeeding, to surface client
// bugs.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	s.close()
	delete(m.sessions, sessionID)
	m.closed[sessionID] = struct{}{}
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop terminates the sweep loop and closes all live sessions. Safe to
// call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.close()
		delete(m.sessions, id)
		m.closed[id] = struct{}{}
	}
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.safeSweep()
		}
	}
}

// safeSweep runs one sweep tick. A failing sweep is logged and retried on
// the next tick; it never terminates the loop.
func (m *Manager) safeSweep() {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.logger.Error("session sweep failed", slog.Any("reason", r))
		}
	}()

	if evicted := m.sweep(time.Now()); evicted > 0 {
		m.cfg.logger.Info("evicted idle sessions", slog.Int("count", evicted))
	}
}

// sweep evicts every session idle past the configured threshold,
// performing the same transition and removal as an explicit close.
func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted int
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.cfg.idleTimeout {
			s.close()
			delete(m.sessions, id)
			m.closed[id] = struct{}{}
			evicted++
		}
	}
	return evicted
}
