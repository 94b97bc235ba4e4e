package eventstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
)

func TestEventRecordConversion(t *testing.T) {
	event := domain.NewEvent(domain.EventRequirementPublished, uuid.New(), domain.KindRequirement, "buyer-1",
		map[string]interface{}{
			"max_quantity": "500",
			"intent_type":  "direct_purchase",
		})
	event.Metadata = map[string]interface{}{
		"counterparty_id": uuid.New().String(),
		"urgency_level":   "high",
	}

	record, err := NewEventRecord(event)
	require.NoError(t, err)
	require.Equal(t, event.EventID, record.EventID)
	require.False(t, record.Published)
	require.Zero(t, record.PublishAttempts)

	restored, err := record.DomainEvent()
	require.NoError(t, err)
	require.Equal(t, event.EventID, restored.EventID)
	require.Equal(t, event.EventType, restored.EventType)
	require.Equal(t, event.AggregateID, restored.AggregateID)
	require.Equal(t, "500", restored.Payload["max_quantity"])
	require.Equal(t, "high", restored.Metadata["urgency_level"])
}
