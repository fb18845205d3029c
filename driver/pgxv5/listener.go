package pgxv5

import (
	"context"

	"github.com/youssefsiam38/pgclient/driver"
)

// Ping performs an empty round trip. pgx buffers any notifications that
// arrive with the response.
func (s *Session) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Notification pops one buffered notification without waiting on the
// socket. It returns nil when nothing is pending.
func (s *Session) Notification(ctx context.Context) (*driver.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// pgx returns buffered notifications before looking at the context; an
	// already cancelled context turns the wait into a non-blocking poll.
	polled, cancel := context.WithCancel(ctx)
	cancel()

	n, err := s.conn.WaitForNotification(polled)
	if n != nil {
		return &driver.Notification{
			Channel: n.Channel,
			PID:     n.PID,
			Payload: n.Payload,
		}, nil
	}
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	// Only the poll context expired: nothing pending.
	return nil, nil
}
