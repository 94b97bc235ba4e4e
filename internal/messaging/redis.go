package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
)

// RedisBroadcaster publishes events over Redis pub/sub. The WebSocket
// gateway subscribes to the same prefixed channels and forwards frames
// to connected clients.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
}

// NewRedisBroadcaster creates a pub/sub broadcaster on its own connection
func NewRedisBroadcaster(cfg config.RedisConfig, prefix string) (*RedisBroadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis broker: %w", err)
	}

	return &RedisBroadcaster{client: client, prefix: prefix}, nil
}

// Broadcast publishes the payload to the prefixed channel
func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel, eventName string, payload map[string]interface{}) error {
	envelope := map[string]interface{}{
		"channel":      channel,
		"event":        eventName,
		"payload":      payload,
		"published_at": time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast envelope: %w", err)
	}

	return b.client.Publish(ctx, b.channelName(channel), data).Err()
}

func (b *RedisBroadcaster) channelName(channel string) string {
	if b.prefix == "" {
		return channel
	}
	return b.prefix + ":" + channel
}

// Close closes the broker connection
func (b *RedisBroadcaster) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
