package player

import (
	"sync"

	"go.uber.org/zap"
)

// SessionManager holds all connected sessions indexed by general handle,
// with secondary indexes for tamer ID and name lookup.
type SessionManager struct {
	mu       sync.RWMutex
	byHandle map[int64]*Session
	byTamer  map[int64]*Session
	byName   map[string]*Session
	logger   *zap.Logger
}

func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		byHandle: make(map[int64]*Session),
		byTamer:  make(map[int64]*Session),
		byName:   make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds the session, displacing any existing session for the same
// tamer. The displaced session is closed and returned so the caller can
// run its disconnect cleanup.
func (m *SessionManager) Register(s *Session) (displaced *Session) {
	m.mu.Lock()
	if old, ok := m.byTamer[s.TamerID]; ok && old != s {
		displaced = old
		delete(m.byHandle, old.Handle)
		delete(m.byName, old.Name)
	}
	m.byHandle[s.Handle] = s
	m.byTamer[s.TamerID] = s
	m.byName[s.Name] = s
	m.mu.Unlock()

	if displaced != nil {
		m.logger.Info("displacing duplicate session",
			zap.Int64("tamer_id", s.TamerID),
			zap.Int64("old_handle", displaced.Handle),
			zap.Int64("new_handle", s.Handle))
		displaced.Close()
	}
	return displaced
}

// Unregister removes the session if it is still the registered one for
// its tamer. A displaced session that has already been replaced is left
// alone.
func (m *SessionManager) Unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byTamer[s.TamerID]; ok && cur == s {
		delete(m.byTamer, s.TamerID)
		delete(m.byName, s.Name)
	}
	if cur, ok := m.byHandle[s.Handle]; ok && cur == s {
		delete(m.byHandle, s.Handle)
	}
}

// ByHandle looks a session up by its general handle.
func (m *SessionManager) ByHandle(handle int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byHandle[handle]
	return s, ok
}

// ByTamerID looks a session up by tamer ID.
func (m *SessionManager) ByTamerID(tamerID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byTamer[tamerID]
	return s, ok
}

// ByName looks a session up by tamer name.
func (m *SessionManager) ByName(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byName[name]
	return s, ok
}

// Count returns the number of connected sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byHandle)
}

// Range calls fn for every session until fn returns false.
func (m *SessionManager) Range(fn func(*Session) bool) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.byHandle))
	for _, s := range m.byHandle {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()
	for _, s := range sessions {
		if !fn(s) {
			return
		}
	}
}
