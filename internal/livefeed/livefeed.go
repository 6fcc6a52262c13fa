package livefeed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Feed opens per-channel Postgres LISTEN subscriptions. Each subscription
// holds a dedicated connection; notifications for a channel are delivered in
// the order the server emits them (FIFO per channel, no guarantee across
// channels).
type Feed struct {
	databaseURL string
	log         *slog.Logger
}

// NewFeed returns a Feed that dials new connections from the given URL.
func NewFeed(databaseURL string, log *slog.Logger) *Feed {
	return &Feed{databaseURL: databaseURL, log: log.With("component", "livefeed")}
}

// Subscription is a cancellable live feed handle.
type Subscription struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// Subscribe listens on a notification channel and invokes handler with each
// raw payload. Delivery happens on a dedicated goroutine, one notification at
// a time. The returned subscription's Stop guarantees no handler invocation
// begins after Stop returns.
func (f *Feed) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (*Subscription, error) {
	conn, err := pgx.Connect(ctx, f.databaseURL)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel}

	go func() {
		defer func() { _ = conn.Close(context.Background()) }()
		for {
			notification, err := conn.WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					f.log.Error("notification wait failed", "channel", channel, "error", err)
				}
				return
			}

			// The stop flag is checked under the delivery lock so Stop,
			// which takes the same lock, cannot return while a delivery
			// is in flight.
			sub.mu.Lock()
			if !sub.stopped {
				handler([]byte(notification.Payload))
			}
			sub.mu.Unlock()
		}
	}()

	f.log.Info("subscribed to live feed", "channel", channel)
	return sub, nil
}

// Stop cancels the subscription. It is idempotent, never panics, and once it
// returns no further handler invocation will start.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.cancel()
}
