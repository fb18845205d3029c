package databasesql

import (
	"context"

	"github.com/youssefsiam38/pgclient/driver"
)

// Ping performs an empty round trip on the pinned connection. lib/pq hands
// any notifications that arrive with it to the session's handler.
func (s *Session) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Notification pops one collected notification, or returns nil.
func (s *Session) Notification(ctx context.Context) (*driver.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil, nil
	}
	n := s.pending[0]
	s.pending = s.pending[1:]
	return &n, nil
}
