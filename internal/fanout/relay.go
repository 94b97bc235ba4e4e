package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/eventstore"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/messaging"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/metrics"
)

// Indexer receives every published event for the audit search index
type Indexer interface {
	Index(ctx context.Context, event domain.Event) error
}

// Relay drains the outbox and broadcasts each event to its channel set.
// Rows are relayed oldest-first, one at a time, which preserves per-aggregate
// event order; a failed row and everything behind it on the same aggregate
// wait for the next tick.
type Relay struct {
	store       eventstore.Store
	router      *Router
	broadcaster messaging.Broadcaster
	indexer     Indexer
	metrics     *metrics.Metrics
	batchSize   int
	interval    time.Duration
	running     bool
	mutex       sync.Mutex
	stopChan    chan struct{}
}

// NewRelay creates a new outbox relay
func NewRelay(
	store eventstore.Store,
	router *Router,
	broadcaster messaging.Broadcaster,
	indexer Indexer,
	m *metrics.Metrics,
	cfg config.RelayConfig,
) *Relay {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Relay{
		store:       store,
		router:      router,
		broadcaster: broadcaster,
		indexer:     indexer,
		metrics:     m,
		batchSize:   batchSize,
		interval:    interval,
		running:     false,
		stopChan:    make(chan struct{}),
	}
}

// Start starts the relay loop
func (r *Relay) Start() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.running {
		return
	}

	r.running = true
	go r.relayLoop()
}

// Stop stops the relay loop
func (r *Relay) Stop() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.running {
		return
	}

	r.running = false
	r.stopChan <- struct{}{}
}

func (r *Relay) relayLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.processBatch(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to relay outbox batch")
			}
		case <-r.stopChan:
			return
		}
	}
}

// processBatch relays one batch of unpublished outbox rows
func (r *Relay) processBatch(ctx context.Context) error {
	records, err := r.store.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	r.metrics.ObserveRelayBatch(len(records))
	log.Info().Int("count", len(records)).Msg("Relaying outbox events")

	// An aggregate whose row fails stalls: later rows for it stay
	// unpublished so subscribers never see its events out of order.
	stalled := make(map[uuid.UUID]struct{})

	for i := range records {
		record := &records[i]

		if _, ok := stalled[record.AggregateID]; ok {
			continue
		}

		if err := r.publishRecord(ctx, record); err != nil {
			log.Error().Err(err).Str("event_id", record.EventID.String()).Msg("Failed to publish event")
			r.metrics.IncrementRelayFailure()
			stalled[record.AggregateID] = struct{}{}
			if markErr := r.store.MarkPublishFailed(ctx, record.ID, err); markErr != nil {
				log.Error().Err(markErr).Str("event_id", record.EventID.String()).Msg("Failed to record publish error")
			}
			continue
		}

		if err := r.store.MarkPublished(ctx, record.ID); err != nil {
			log.Error().Err(err).Str("event_id", record.EventID.String()).Msg("Failed to mark event as published")
			stalled[record.AggregateID] = struct{}{}
			continue
		}
		r.metrics.IncrementRelayPublished()
	}

	return nil
}

func (r *Relay) publishRecord(ctx context.Context, record *eventstore.EventRecord) error {
	event, err := record.DomainEvent()
	if err != nil {
		return errors.Wrap(err, "failed to decode outbox row")
	}

	payload := broadcastPayload(event)
	for _, channel := range r.router.Route(event) {
		if err := r.broadcaster.Broadcast(ctx, channel, event.EventType, payload); err != nil {
			return errors.Wrapf(err, "failed to broadcast to %s", channel)
		}
		r.metrics.IncrementBroadcast(channel)
	}

	// Indexing is best-effort: the search index trails the outbox and a
	// miss must not hold back publication.
	if r.indexer != nil {
		if err := r.indexer.Index(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.EventID.String()).Msg("Failed to index event")
			r.metrics.IncrementIndexFailure()
		}
	}

	return nil
}

func broadcastPayload(event domain.Event) map[string]interface{} {
	payload := map[string]interface{}{
		"event_id":       event.EventID.String(),
		"event_type":     event.EventType,
		"aggregate_id":   event.AggregateID.String(),
		"aggregate_type": event.AggregateType,
		"user_id":        event.UserID,
		"timestamp":      event.Timestamp.Format(time.RFC3339Nano),
		"schema_version": event.SchemaVersion,
		"payload":        event.Payload,
	}
	if event.Metadata != nil {
		payload["metadata"] = event.Metadata
	}
	return payload
}
