package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
)

// Store is the append-only event log. Appends run inside the caller's
// transaction so no mutation is durable without its events; the unpublished
// queries feed the fan-out relay.
type Store interface {
	AppendTx(tx *gorm.DB, events ...domain.Event) error
	Append(ctx context.Context, events ...domain.Event) error
	GetByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error)
	GetByUser(ctx context.Context, userID string, limit int) ([]domain.Event, error)
	GetByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]domain.Event, error)
	CountByAggregate(ctx context.Context, aggregateID uuid.UUID) (int64, error)
	ListUnpublished(ctx context.Context, limit int) ([]EventRecord, error)
	MarkPublished(ctx context.Context, recordID uint) error
	MarkPublishFailed(ctx context.Context, recordID uint, publishErr error) error
}

// GormStore implements Store using GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM event store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AppendTx appends events within the caller's transaction
func (s *GormStore) AppendTx(tx *gorm.DB, events ...domain.Event) error {
	for _, event := range events {
		record, err := NewEventRecord(event)
		if err != nil {
			return err
		}
		if err := tx.Create(record).Error; err != nil {
			return errors.Wrapf(err, "failed to append event %s", event.EventType)
		}

		log.Debug().
			Str("event_id", event.EventID.String()).
			Str("event_type", event.EventType).
			Str("aggregate_id", event.AggregateID.String()).
			Msg("Event appended")
	}
	return nil
}

// Append appends events in their own transaction
func (s *GormStore) Append(ctx context.Context, events ...domain.Event) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.AppendTx(tx, events...)
	})
}

// GetByAggregate returns the full event history of one aggregate in append order
func (s *GormStore) GetByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error) {
	var records []EventRecord
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load aggregate events")
	}
	return toDomainEvents(records)
}

// GetByUser returns the most recent events recorded for a user
func (s *GormStore) GetByUser(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	var records []EventRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load user events")
	}
	return toDomainEvents(records)
}

// GetByTimeRange returns events with timestamps inside [from, to)
func (s *GormStore) GetByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]domain.Event, error) {
	var records []EventRecord
	if err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load events by time range")
	}
	return toDomainEvents(records)
}

// CountByAggregate returns the number of events recorded for one aggregate
func (s *GormStore) CountByAggregate(ctx context.Context, aggregateID uuid.UUID) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&EventRecord{}).
		Where("aggregate_id = ?", aggregateID).
		Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count aggregate events")
	}
	return count, nil
}

// ListUnpublished returns outbox rows not yet relayed, oldest first. Append
// order is the relay order, which preserves per-aggregate event ordering.
func (s *GormStore) ListUnpublished(ctx context.Context, limit int) ([]EventRecord, error) {
	var records []EventRecord
	if err := s.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list unpublished events")
	}
	return records, nil
}

// MarkPublished flags an outbox row as relayed
func (s *GormStore) MarkPublished(ctx context.Context, recordID uint) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Model(&EventRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"published":     true,
			"published_at":  &now,
			"publish_error": nil,
		}).Error
	return errors.Wrap(err, "failed to mark event published")
}

// MarkPublishFailed records a relay failure; the row stays unpublished and
// is retried on the next tick
func (s *GormStore) MarkPublishFailed(ctx context.Context, recordID uint, publishErr error) error {
	msg := publishErr.Error()
	err := s.db.WithContext(ctx).
		Model(&EventRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_attempts": gorm.Expr("publish_attempts + 1"),
			"publish_error":    &msg,
		}).Error
	return errors.Wrap(err, "failed to record publish failure")
}

func toDomainEvents(records []EventRecord) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(records))
	for i := range records {
		event, err := records[i].DomainEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
