package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	// Requirement events
	EventRequirementCreated             = "requirement.created"
	EventRequirementPublished           = "requirement.published"
	EventRequirementFulfillmentUpdated  = "requirement.fulfillment_updated"
	EventRequirementFulfilled           = "requirement.fulfilled"
	EventRequirementCancelled           = "requirement.cancelled"
	EventRequirementExpired             = "requirement.expired"
	EventRequirementAIAdjusted          = "requirement.ai_adjusted"
	EventRequirementRiskPrecheckUpdated = "requirement.risk_precheck_updated"

	// Availability events
	EventAvailabilityCreated             = "availability.created"
	EventAvailabilityPublished           = "availability.published"
	EventAvailabilitySaleRecorded        = "availability.sale_recorded"
	EventAvailabilitySoldOut             = "availability.sold_out"
	EventAvailabilityCancelled           = "availability.cancelled"
	EventAvailabilityExpired             = "availability.expired"
	EventAvailabilityRiskPrecheckUpdated = "availability.risk_precheck_updated"
)

// EventSchemaVersion is stamped on every emitted event
const EventSchemaVersion = 1

// Event is one entry of the append-only trade desk audit log. Metadata
// carries the routing hints the fan-out router needs (counterparty,
// commodity, intent, urgency) so routing never re-reads the aggregate.
type Event struct {
	EventID       uuid.UUID              `json:"event_id"`
	EventType     string                 `json:"event_type"`
	AggregateID   uuid.UUID              `json:"aggregate_id"`
	AggregateType string                 `json:"aggregate_type"`
	UserID        string                 `json:"user_id"`
	Timestamp     time.Time              `json:"timestamp"`
	SchemaVersion int                    `json:"schema_version"`
	Payload       map[string]interface{} `json:"payload"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event with a fresh id and a UTC timestamp
func NewEvent(eventType string, aggregateID uuid.UUID, aggregateType, userID string, payload map[string]interface{}) Event {
	return Event{
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		UserID:        userID,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: EventSchemaVersion,
		Payload:       payload,
	}
}

// Payload helpers keep decimal and optional values JSON-stable: decimals
// travel as strings so money never round-trips through float64.

func decString(d decimal.Decimal) string {
	return d.String()
}

func decValue(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func intValue(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func uuidValue(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func timeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
