// Package redis provides the shared-state backing for multi-instance
// deployments: pub/sub fan-out of processed events and short-lived event
// snapshots for replay and debugging.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	syncErrors "github.com/dulcera/syncbridge/errors"
	"github.com/dulcera/syncbridge/event"
	"github.com/dulcera/syncbridge/logging"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "sync:"
	eventKeyTTL   = time.Hour
	processedTTL  = 24 * time.Hour
)

// NewClient parses a redis URL, connects and pings. Callers treat a nil
// client as "no shared store" and run in local-only mode.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}

	return client, nil
}

// Store wraps the redis client with the sync layer's key and channel scheme
type Store struct {
	client     *redis.Client
	logger     *logging.Logger
	instanceID string
}

// envelope is the wire shape published on sync:<channel>
type envelope struct {
	InstanceID string           `json:"instanceId"`
	Event      *event.SyncEvent `json:"event"`
}

// NewStore creates a Store. instanceID distinguishes this process from its
// peers so the pattern subscriber can drop its own publications.
func NewStore(client *redis.Client, instanceID string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:     client,
		logger:     logger.WithComponent("redis-store"),
		instanceID: instanceID,
	}
}

// PublishEvent fans a processed event out to peer instances on the
// sync:<channel> topic derived from the event type.
func (s *Store) PublishEvent(ctx context.Context, ev *event.SyncEvent) error {
	payload, err := json.Marshal(envelope{InstanceID: s.instanceID, Event: ev})
	if err != nil {
		return syncErrors.NewWithComponent(syncErrors.OpPublish, "redis-store", err)
	}

	channel := channelPrefix + string(ev.Channel())
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPublish, err)
	}
	return nil
}

// SaveEvent stores a sanitized snapshot of the event under sync_event:<id>
// with a one-hour TTL.
func (s *Store) SaveEvent(ctx context.Context, ev *event.SyncEvent) error {
	snapshot := *ev
	snapshot.Data = event.Sanitize(ev.Data)

	payload, err := json.Marshal(&snapshot)
	if err != nil {
		return syncErrors.NewWithComponent(syncErrors.OpStore, "redis-store", err)
	}

	key := fmt.Sprintf("sync_event:%s", ev.ID)
	if err := s.client.Set(ctx, key, payload, eventKeyTTL).Err(); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpStore, err)
	}
	return nil
}

// MarkProcessed records that an event completed processing, with a
// 24-hour TTL so peers and operators can check recent history.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) error {
	key := fmt.Sprintf("sync_processed:%s", eventID)
	if err := s.client.Set(ctx, key, time.Now().Format(time.RFC3339), processedTTL).Err(); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpStore, err)
	}
	return nil
}

// IsProcessed reports whether an event id has a processed marker
func (s *Store) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, fmt.Sprintf("sync_processed:%s", eventID)).Result()
	if err != nil {
		return false, syncErrors.NewStorageError(syncErrors.OpStore, err)
	}
	return n > 0, nil
}

// Subscribe listens on the sync:* pattern and invokes handler for every
// event published by a peer instance. Publications from this instance are
// dropped. Blocks until ctx is canceled; the subscription is re-established
// after transient failures by the caller's retry policy.
func (s *Store) Subscribe(ctx context.Context, handler func(*event.SyncEvent)) error {
	pubsub := s.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return syncErrors.NewRetryable(syncErrors.OpSubscribe,
					fmt.Errorf("pubsub channel closed"))
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.logger.Warn("dropping malformed pubsub payload",
					"channel", msg.Channel, "error", err)
				continue
			}
			if env.InstanceID == s.instanceID || env.Event == nil {
				continue
			}
			handler(env.Event)
		}
	}
}

// Ping checks liveness of the shared store
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
