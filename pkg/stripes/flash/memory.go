package flash

import (
	"context"
	"sync"
)

// MemoryStore keeps scopes in process, one concurrent map per session
type MemoryStore struct {
	opts *options

	// serializes container creation and id generation
	mutex    sync.Mutex
	sessions sync.Map
}

// NewMemoryStore creates an in-process store
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{opts: applyOptions(opts)}
}

func (m *MemoryStore) container(session string) *sync.Map {
	if c, ok := m.sessions.Load(session); ok {
		return c.(*sync.Map)
	}
	return nil
}

// Create opens a scope, regenerating the id until it is unused
func (m *MemoryStore) Create(_ context.Context, session string) (*Scope, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	scopes := m.container(session)
	if scopes == nil {
		scopes = &sync.Map{}
		m.sessions.Store(session, scopes)
	}

	var id string
	for {
		id = m.opts.nextID()
		if _, taken := scopes.Load(id); !taken {
			break
		}
	}

	scope := NewScope(session, id, m.opts.timeout)
	scopes.Store(id, scope)
	return scope, nil
}

// Get returns a scope without removing it
func (m *MemoryStore) Get(_ context.Context, session, id string) (*Scope, error) {
	scopes := m.container(session)
	if scopes == nil {
		return nil, nil
	}
	if s, ok := scopes.Load(id); ok {
		return s.(*Scope), nil
	}
	return nil, nil
}

// Consume removes and returns a scope. An expired scope that has not been
// swept yet is removed but not returned.
func (m *MemoryStore) Consume(_ context.Context, session, id string) (*Scope, error) {
	scopes := m.container(session)
	if scopes == nil {
		return nil, nil
	}
	s, ok := scopes.LoadAndDelete(id)
	if !ok {
		return nil, nil
	}
	if scope := s.(*Scope); !scope.Expired(m.opts.now()) {
		return scope, nil
	}
	return nil, nil
}

// Complete sweeps the session and starts the scope
func (m *MemoryStore) Complete(ctx context.Context, scope *Scope) error {
	if err := m.Sweep(ctx, scope.Session); err != nil {
		return err
	}
	scope.start(m.opts.now())
	return nil
}

// Sweep drops expired scopes
func (m *MemoryStore) Sweep(_ context.Context, session string) error {
	scopes := m.container(session)
	if scopes == nil {
		return nil
	}
	now := m.opts.now()
	scopes.Range(func(key, value interface{}) bool {
		if value.(*Scope).Expired(now) {
			scopes.Delete(key)
		}
		return true
	})
	return nil
}

// Len counts the scopes held for a session
func (m *MemoryStore) Len(session string) int {
	scopes := m.container(session)
	if scopes == nil {
		return 0
	}
	n := 0
	scopes.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
