package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/internal/mylog"
)

// Manager owns all live conversation contexts.
type Manager struct {
	logger *mylog.Logger
	conf   *config.SessionConfig

	mu       sync.RWMutex
	sessions map[string]*Context
}

func NewManager(logger *mylog.Logger, conf *config.SessionConfig) *Manager {
	return &Manager{
		logger:   logger,
		conf:     conf,
		sessions: make(map[string]*Context),
	}
}

// GetOrCreate returns the session for id, creating one when id is empty or
// unknown. The returned context is always usable.
func (m *Manager) GetOrCreate(id string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if sess, ok := m.sessions[id]; ok {
			return sess
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	sess := newContext(id, m.conf.DefaultLanguage, m.conf.HistoryLimit)
	m.sessions[id] = sess
	m.logger.Debug("session created", "id", id)
	return sess
}

// Get returns the session or ErrNotFound.
func (m *Manager) Get(id string) (*Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	return sess, nil
}

// List returns all sessions, most recently updated first.
func (m *Manager) List() []*Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Context, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt().After(out[j].UpdatedAt())
	})
	return out
}

// Rename sets the session title.
func (m *Manager) Rename(id, title string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.SetTitle(title)
	return nil
}

// SetLanguage overrides the session language.
func (m *Manager) SetLanguage(id, lang string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.SetLanguage(lang)
	return nil
}

// Delete drops the session. Deleting an unknown id is not an error.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
