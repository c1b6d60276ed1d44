package pricing

import (
	"context"
	"sync"
	"time"
)

// UpdateFunc receives the current session (nil when absent) and returns the session to
// store. A non-nil session is stored even when an error is returned, so state changes such
// as expiry persist while the caller still sees the error.
type UpdateFunc func(current *BargainSession) (*BargainSession, error)

// SessionStore holds bargain sessions. Update runs fn with exclusive access to one key.
type SessionStore interface {
	Get(ctx context.Context, key SessionKey) (*BargainSession, error)
	Update(ctx context.Context, key SessionKey, fn UpdateFunc) error
	// SweepExpired expires overdue sessions and drops terminal ones older than retention
	SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

// MemorySessionStore keeps sessions in process with one mutex per key. A key's mutex is
// dropped only when nobody holds or waits on it and the session is gone.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[SessionKey]*BargainSession
	locks    map[SessionKey]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[SessionKey]*BargainSession),
		locks:    make(map[SessionKey]*keyLock),
	}
}

func (s *MemorySessionStore) lock(key SessionKey) *keyLock {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return l
}

func (s *MemorySessionStore) unlock(key SessionKey, l *keyLock) {
	l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		if _, ok := s.sessions[key]; !ok {
			delete(s.locks, key)
		}
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, key SessionKey) (*BargainSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[key].Clone(), nil
}

func (s *MemorySessionStore) Update(ctx context.Context, key SessionKey, fn UpdateFunc) error {
	l := s.lock(key)
	defer s.unlock(key, l)

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	current := s.sessions[key].Clone()
	s.mu.Unlock()

	next, err := fn(current)
	if next != nil {
		s.mu.Lock()
		s.sessions[key] = next.Clone()
		s.mu.Unlock()
	}
	return err
}

func (s *MemorySessionStore) SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	s.mu.Lock()
	keys := make([]SessionKey, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	expired := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		err := s.Update(ctx, k, func(cur *BargainSession) (*BargainSession, error) {
			if cur == nil {
				return nil, nil
			}
			if cur.ExpireIfDue(now) {
				expired++
				return cur, nil
			}
			if cur.Terminal() && retention > 0 && now.Sub(cur.UpdatedAt) > retention {
				s.mu.Lock()
				delete(s.sessions, k)
				s.mu.Unlock()
			}
			return nil, nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}
