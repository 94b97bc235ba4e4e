package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
)

// ServiceBusBroadcaster publishes events to an Azure Service Bus topic.
// The channel travels as an application property so topic subscriptions
// can filter without deserializing the body.
type ServiceBusBroadcaster struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
	prefix string
}

// NewServiceBusBroadcaster creates a new Azure Service Bus broadcaster
func NewServiceBusBroadcaster(cfg config.AzureConfig, prefix string) (*ServiceBusBroadcaster, error) {
	if cfg.ConnStr == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.TopicName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &ServiceBusBroadcaster{
		client: client,
		sender: sender,
		prefix: prefix,
	}, nil
}

// Broadcast sends the payload to the topic tagged with the channel name
func (b *ServiceBusBroadcaster) Broadcast(ctx context.Context, channel, eventName string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"channel": b.channelName(channel),
			"event":   eventName,
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	}

	return b.sender.SendMessage(ctx, msg, nil)
}

func (b *ServiceBusBroadcaster) channelName(channel string) string {
	if b.prefix == "" {
		return channel
	}
	return b.prefix + ":" + channel
}

// Close closes the sender and the client
func (b *ServiceBusBroadcaster) Close() error {
	if b.sender != nil {
		if err := b.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if b.client != nil {
		return b.client.Close(context.Background())
	}

	return nil
}
