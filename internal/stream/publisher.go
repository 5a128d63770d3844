package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers one event to one channel. The dispatcher treats
// delivery as best-effort: a failed publish is reported but never fails
// ingestion.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
	Close() error
}

// RedisPublisher publishes events to Redis pub/sub channels so sibling
// processes can fan out to their own WebSocket clients.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, addr, password string, db int) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisPublisher{client: client}, nil
}

// Publish sends the event to the named Redis channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, event *Event) error {
	stamped := *event
	stamped.Channel = channel

	payload, err := json.Marshal(&stamped)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Ping verifies the Redis connection for health checks.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Client exposes the underlying connection for readiness probes.
func (p *RedisPublisher) Client() *redis.Client {
	return p.client
}

// MultiPublisher fans one publish out to several publishers and joins
// their failures. Used to drive the local hub and Redis together.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher combines publishers; nil entries are skipped.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	out := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			out.publishers = append(out.publishers, p)
		}
	}
	return out
}

// Publish delivers to every underlying publisher, collecting errors.
func (m *MultiPublisher) Publish(ctx context.Context, channel string, event *Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, channel, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every underlying publisher.
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
