package messaging

import (
	"context"
	"fmt"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
)

// Broadcaster delivers one event payload to one named channel. Delivery is
// at-least-once; subscribers de-duplicate by event id when they need
// exactly-once semantics.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel, eventName string, payload map[string]interface{}) error
	Close() error
}

// NewBroadcaster builds the transport selected by messaging.broker
func NewBroadcaster(cfg config.Config) (Broadcaster, error) {
	switch cfg.Messaging.Broker {
	case "redis":
		return NewRedisBroadcaster(cfg.Redis, cfg.Messaging.ChannelPrefix)
	case "servicebus":
		return NewServiceBusBroadcaster(cfg.Azure, cfg.Messaging.ChannelPrefix)
	default:
		return nil, fmt.Errorf("unknown messaging broker: %q", cfg.Messaging.Broker)
	}
}
