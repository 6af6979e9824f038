package store

import (
	"context"
	"errors"
	"sync"
	"time"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
	"github.com/PratikDhanave/analytics-capture/pkg/capture"
)

// ErrStoreClosed is returned once Close has been called.
var ErrStoreClosed = errors.New("session store closed")

// SessionStore is the in-memory registry of capture sessions served by the sink.
// Sessions live until deleted or until the store is closed; nothing is persisted.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	opts     []capture.Option
	closed   bool
}

type entry struct {
	clientID string
	created  time.Time
	session  *capture.Session
}

// SessionInfo describes a stored session.
type SessionInfo struct {
	ID       string
	ClientID string
	Created  time.Time
	Stats    capture.Stats
}

// NewSessionStore returns an empty store. opts are applied to every new session.
func NewSessionStore(opts ...capture.Option) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entry),
		opts:     opts,
	}
}

// Create starts a session owned by clientID.
func (s *SessionStore) Create(clientID string) (*capture.Session, error) {
	if clientID == "" {
		return nil, cerrors.NewUsage(cerrors.CodeInvalidRequest, "client id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	sess := capture.NewSession(s.opts...)
	s.sessions[sess.ID()] = &entry{clientID: clientID, created: time.Now().UTC(), session: sess}
	return sess, nil
}

// Get returns the session id owned by clientID. Sessions of other clients are
// reported as not found.
func (s *SessionStore) Get(clientID, id string) (*capture.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok || e.clientID != clientID {
		return nil, notFound(id)
	}
	return e.session, nil
}

// Lookup returns a session regardless of owner. Ingest traffic comes from the
// browser under test, which carries no API key.
func (s *SessionStore) Lookup(id string) (*capture.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Info returns metadata and counters for a session owned by clientID.
func (s *SessionStore) Info(clientID, id string) (SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok || e.clientID != clientID {
		return SessionInfo{}, notFound(id)
	}
	return SessionInfo{ID: id, ClientID: e.clientID, Created: e.created, Stats: e.session.Stats()}, nil
}

// Delete closes and removes a session owned by clientID.
func (s *SessionStore) Delete(clientID, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok || e.clientID != clientID {
		s.mu.Unlock()
		return notFound(id)
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	e.session.Close()
	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping is used by the readiness endpoint.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close ends every session. Later calls to Create fail.
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*entry)
	s.closed = true
	s.mu.Unlock()

	for _, e := range sessions {
		e.session.Close()
	}
}

func notFound(id string) error {
	return cerrors.NewSession(cerrors.CodeSessionNotFound, "capture session not found").
		WithDetail("session_id", id)
}
