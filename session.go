package pgclient

import (
	"sync"

	"github.com/youssefsiam38/pgclient/driver"
)

// session is the state shared by a Conn and every LargeObject derived from
// it. Liveness is a property of the session, so closing the Conn invalidates
// all of its large objects at once.
type session struct {
	mu   sync.Mutex
	drv  driver.Session
	live bool

	// generation is bumped by Reset; descriptors opened under an older
	// generation no longer exist on the server.
	generation uint64

	// refs counts large objects still holding the session.
	refs int

	lastErr string
	id      string
	logger  Logger
}

func (s *session) isLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// healthy reports whether the session is live and the driver still has a
// working connection.
func (s *session) healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live && !s.drv.IsClosed()
}

func (s *session) gen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *session) acquire() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

func (s *session) release() {
	s.mu.Lock()
	if s.refs > 0 {
		s.refs--
	}
	s.mu.Unlock()
}

// do runs one round trip with the session locked. It fails with
// ErrInvalidConnection when the session is closed. A driver error is
// recorded as the last error message and returned unwrapped.
func (s *session) do(fn func(driver.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return ErrInvalidConnection
	}
	err := fn(s.drv)
	if err != nil {
		s.lastErr = err.Error()
	}
	return err
}

func (s *session) setLastError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *session) lastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
