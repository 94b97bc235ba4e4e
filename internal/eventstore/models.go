package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
)

// EventRecord is the persisted, append-only form of one domain event. The
// publish columns double as the transactional outbox: rows are written in
// the same transaction as the aggregate mutation and relayed after commit.
type EventRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EventID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"event_id"`
	EventType     string    `gorm:"not null;index" json:"event_type"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null;index" json:"aggregate_id"`
	AggregateType string    `gorm:"not null" json:"aggregate_type"`
	UserID        string    `gorm:"index" json:"user_id"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
	SchemaVersion int       `gorm:"not null;default:1" json:"schema_version"`
	Payload       []byte    `gorm:"type:jsonb" json:"payload"`
	Metadata      []byte    `gorm:"type:jsonb" json:"metadata"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	Published       bool       `gorm:"not null;default:false;index" json:"published"`
	PublishedAt     *time.Time `json:"published_at"`
	PublishAttempts int        `gorm:"not null;default:0" json:"publish_attempts"`
	PublishError    *string    `json:"publish_error"`
}

// TableName overrides the table name
func (EventRecord) TableName() string {
	return "trade_events"
}

// NewEventRecord converts a domain event into its storage form
func NewEventRecord(event domain.Event) (*EventRecord, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event payload")
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event metadata")
	}

	return &EventRecord{
		EventID:       event.EventID,
		EventType:     event.EventType,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		UserID:        event.UserID,
		Timestamp:     event.Timestamp,
		SchemaVersion: event.SchemaVersion,
		Payload:       payload,
		Metadata:      metadata,
	}, nil
}

// DomainEvent converts a stored row back into a domain event
func (r *EventRecord) DomainEvent() (domain.Event, error) {
	event := domain.Event{
		EventID:       r.EventID,
		EventType:     r.EventType,
		AggregateID:   r.AggregateID,
		AggregateType: r.AggregateType,
		UserID:        r.UserID,
		Timestamp:     r.Timestamp,
		SchemaVersion: r.SchemaVersion,
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &event.Payload); err != nil {
			return domain.Event{}, errors.Wrapf(err, "failed to unmarshal payload of event %s", r.EventID)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &event.Metadata); err != nil {
			return domain.Event{}, errors.Wrapf(err, "failed to unmarshal metadata of event %s", r.EventID)
		}
	}
	return event, nil
}
