package states

import (
	"sync"
	"time"
)

// Manager управляет состояниями пользователей в памяти.
// Сессия старше ttl читается как StateNone.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]session
	ttl      time.Duration
	now      func() time.Time
}

// NewManager создает новый менеджер состояний; ttl <= 0 отключает истечение
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[int64]session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetState получает текущее состояние пользователя
func (m *Manager) GetState(chatID int64) State {
	m.mu.RLock()
	s, exists := m.sessions[chatID]
	m.mu.RUnlock()

	if !exists {
		return StateNone
	}
	if m.expired(s) {
		m.mu.Lock()
		// перепроверяем под записью: сессию могли обновить
		if cur, ok := m.sessions[chatID]; ok && m.expired(cur) {
			delete(m.sessions, chatID)
		}
		m.mu.Unlock()
		return StateNone
	}
	return s.state
}

// SetState устанавливает состояние пользователя
func (m *Manager) SetState(chatID int64, state State) {
	if state == StateNone {
		m.Clear(chatID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[chatID] = session{state: state, updatedAt: m.now().UnixNano()}
}

// Clear очищает состояние пользователя
func (m *Manager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
}

// Prune drops expired sessions and returns how many were removed.
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) expired(s session) bool {
	if m.ttl <= 0 {
		return false
	}
	return m.now().UnixNano()-s.updatedAt > m.ttl.Nanoseconds()
}
