// Package flash keeps values alive across a redirect. A scope is filled
// during one request, started when that request completes, and consumed by
// the next request that presents its id.
package flash

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultTimeout is how long a started scope survives unclaimed
const DefaultTimeout = 120 * time.Second

// BeanKey is the value name under which the request's own action bean is
// flashed, next to its URL binding
const BeanKey = "actionBean"

// Detachable values are told when the request that created them ends, so
// they can drop references to the live request and response.
type Detachable interface {
	Detach()
}

// Scope is one flash container
type Scope struct {
	ID      string
	Session string
	Timeout time.Duration
	Started time.Time

	mutex  sync.RWMutex
	values map[string]interface{}
}

// NewScope creates an unstarted scope
func NewScope(session, id string, timeout time.Duration) *Scope {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scope{
		ID:      id,
		Session: session,
		Timeout: timeout,
		values:  make(map[string]interface{}),
	}
}

// Put stores a value
func (s *Scope) Put(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.values[key] = value
}

// Get returns a stored value
func (s *Scope) Get(key string) (interface{}, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Values returns a copy of the stored values
func (s *Scope) Values() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Len returns the number of stored values
func (s *Scope) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.values)
}

// Age is the whole-second time since the scope was started, zero before.
func (s *Scope) Age(now time.Time) time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	return now.Sub(s.Started).Truncate(time.Second)
}

// Expired reports whether the age exceeds the timeout
func (s *Scope) Expired(now time.Time) bool {
	return s.Age(now) > s.Timeout
}

// start detaches stored values and starts the timer
func (s *Scope) start(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, v := range s.values {
		if d, ok := v.(Detachable); ok {
			d.Detach()
		}
	}
	s.Started = now
}

type scopeRecord struct {
	ID      string                 `json:"id"`
	Session string                 `json:"session"`
	Timeout time.Duration          `json:"timeout"`
	Started time.Time              `json:"started"`
	Values  map[string]interface{} `json:"values"`
}

// MarshalJSON encodes the scope for the shared stores
func (s *Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(scopeRecord{
		ID:      s.ID,
		Session: s.Session,
		Timeout: s.Timeout,
		Started: s.Started,
		Values:  s.Values(),
	})
}

// UnmarshalJSON decodes a scope; values come back as generic JSON values
func (s *Scope) UnmarshalJSON(data []byte) error {
	var rec scopeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	s.ID, s.Session, s.Timeout, s.Started = rec.ID, rec.Session, rec.Timeout, rec.Started
	s.values = rec.Values
	if s.values == nil {
		s.values = make(map[string]interface{})
	}
	return nil
}
