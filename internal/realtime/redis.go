package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"estate/internal/log"
)

const channelPrefix = "estate:changes:"

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisBridge relays change notices between processes over Redis pub/sub.
// Each bridge tags its messages with an origin ID and ignores its own.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	origin string
	logger *log.Logger
}

func NewRedisBridge(client *redis.Client, hub *Hub, logger *log.Logger) *RedisBridge {
	if logger == nil {
		logger = log.Default(log.ComponentRealtime)
	}
	return &RedisBridge{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
		logger: logger.WithComponent(log.ComponentRealtime),
	}
}

func channelFor(kind string) string {
	return channelPrefix + kind
}

func (b *RedisBridge) Broadcast(ctx context.Context, kind string) error {
	return b.client.Publish(ctx, channelFor(kind), b.origin).Err()
}

// Run relays remote notices into the hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	b.logger.InfoContext(ctx, "Listening for remote changes", "pattern", channelPrefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("change subscription closed")
			}
			b.handle(ctx, msg.Channel, msg.Payload)
		}
	}
}

func (b *RedisBridge) handle(ctx context.Context, channel, origin string) {
	if origin == b.origin {
		return
	}
	kind, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok || kind == "" {
		return
	}
	b.hub.refreshLocal(ctx, kind)
}
