// Package notifier dispatches PostgreSQL LISTEN/NOTIFY messages to handlers.
//
// pgclient.Conn.Notification never blocks: it picks up whatever the server
// has already sent. A Notifier turns that into a background poll loop:
//   - Listen/Unlisten manage channel registrations on the connection
//   - Subscribe registers handlers per channel
//   - every PollInterval all pending notifications are drained and dispatched
//
// The connection stays usable for other work while the notifier runs;
// pgclient serializes the round trips.
package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/youssefsiam38/pgclient"
)

// Conn is the part of *pgclient.Conn a Notifier uses.
type Conn interface {
	Query(ctx context.Context, sql string) (pgclient.QueryResult, error)
	Notification(ctx context.Context) (*pgclient.Notification, error)
}

// Event represents a received notification.
type Event struct {
	// Channel is the channel the notification was sent on.
	Channel string

	// Payload is the notification payload.
	Payload string

	// PID is the server process that sent it.
	PID uint32

	// ReceivedAt is when the event was received.
	ReceivedAt time.Time
}

// Handler is called when an event is received.
type Handler func(event *Event)

// Config holds configuration for the notifier.
type Config struct {
	// PollInterval is how long to wait between drains.
	// Default: 500 milliseconds
	PollInterval time.Duration

	// OnError is called when a poll fails. Polling continues.
	OnError func(err error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 500 * time.Millisecond,
	}
}

// Subscription represents an active subscription to a channel.
type Subscription struct {
	channel string
	handler Handler
	id      int64
}

// Notifier provides channel subscriptions on top of a connection.
type Notifier struct {
	conn   Conn
	config *Config

	mu            sync.RWMutex
	subscriptions map[string][]*Subscription
	nextSubID     int64

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewNotifier creates a new notifier for conn.
func NewNotifier(conn Conn, config *Config) *Notifier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}

	return &Notifier{
		conn:          conn,
		config:        config,
		subscriptions: make(map[string][]*Subscription),
	}
}

// Listen registers the connection for channel.
func (n *Notifier) Listen(ctx context.Context, channel string) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	_, err := n.conn.Query(ctx, "LISTEN "+pq.QuoteIdentifier(channel))
	return err
}

// Unlisten removes the registration for channel.
func (n *Notifier) Unlisten(ctx context.Context, channel string) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	_, err := n.conn.Query(ctx, "UNLISTEN "+pq.QuoteIdentifier(channel))
	return err
}

// Notify sends payload on channel.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	_, err := n.conn.Query(ctx, "NOTIFY "+pq.QuoteIdentifier(channel)+", "+pq.QuoteLiteral(payload))
	return err
}

// Start begins polling for notifications.
func (n *Notifier) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	n.done = make(chan struct{})
	ctx, n.cancel = context.WithCancel(ctx)
	go n.run(ctx)

	return nil
}

// Stop stops the notifier and waits for the poll loop to exit.
func (n *Notifier) Stop(ctx context.Context) error {
	if !n.started.Load() {
		return ErrNotStarted
	}

	n.cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	n.started.Store(false)
	return nil
}

// Subscribe registers a handler for channel.
// Returns a function to unsubscribe.
func (n *Notifier) Subscribe(channel string, handler Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &Subscription{
		channel: channel,
		handler: handler,
		id:      n.nextSubID,
	}
	n.nextSubID++

	n.subscriptions[channel] = append(n.subscriptions[channel], sub)

	return func() {
		n.unsubscribe(channel, sub.id)
	}
}

// unsubscribe removes a subscription.
func (n *Notifier) unsubscribe(channel string, id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subscriptions[channel]
	for i, sub := range subs {
		if sub.id == id {
			n.subscriptions[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// run is the main poll loop.
func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)

	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.Poll(ctx); err != nil && ctx.Err() == nil {
				if n.config.OnError != nil {
					n.config.OnError(err)
				}
			}
		}
	}
}

// Poll drains every pending notification and dispatches it. It is called by
// the poll loop and can also be used directly without Start.
func (n *Notifier) Poll(ctx context.Context) error {
	for {
		notification, err := n.conn.Notification(ctx)
		if err != nil {
			return err
		}
		if notification == nil {
			return nil
		}

		n.dispatch(&Event{
			Channel:    notification.Channel,
			Payload:    notification.Payload,
			PID:        notification.PID,
			ReceivedAt: time.Now(),
		})
	}
}

// dispatch sends an event to all subscribed handlers.
func (n *Notifier) dispatch(event *Event) {
	n.mu.RLock()
	subs := make([]*Subscription, len(n.subscriptions[event.Channel]))
	copy(subs, n.subscriptions[event.Channel])
	n.mu.RUnlock()

	for _, sub := range subs {
		// Handlers run on the poll goroutine, in order.
		sub.handler(event)
	}
}

// IsRunning returns true if the notifier is running.
func (n *Notifier) IsRunning() bool {
	return n.started.Load()
}
