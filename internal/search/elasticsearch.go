package search

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
)

const eventsIndex = "trade-events"

// EventIndexer indexes relayed events for the audit/reporting search API
type EventIndexer struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewEventIndexer creates a new Elasticsearch event indexer
func NewEventIndexer(cfg config.ElasticConfig) (*EventIndexer, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	// Check the connection
	res, err := client.Info()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Elasticsearch")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.Errorf("Elasticsearch returned error: %s", res.String())
	}

	log.Info().Str("url", cfg.URL).Msg("Connected to Elasticsearch")
	return &EventIndexer{client: client, config: cfg}, nil
}

// Index writes one event document, keyed by event id so retried relays
// overwrite instead of duplicating
func (c *EventIndexer) Index(ctx context.Context, event domain.Event) error {
	doc := map[string]interface{}{
		"event_id":       event.EventID.String(),
		"event_type":     event.EventType,
		"aggregate_id":   event.AggregateID.String(),
		"aggregate_type": event.AggregateType,
		"user_id":        event.UserID,
		"timestamp":      event.Timestamp,
		"schema_version": event.SchemaVersion,
		"payload":        event.Payload,
		"metadata":       event.Metadata,
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event document")
	}

	req := esapi.IndexRequest{
		Index:      c.indexName(),
		DocumentID: event.EventID.String(),
		Body:       bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	return nil
}

// SearchEvents runs a raw query against the event index and returns the
// matching documents
func (c *EventIndexer) SearchEvents(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.indexName()},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}

	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		docs = append(docs, source)
	}

	return docs, nil
}

func (c *EventIndexer) indexName() string {
	if c.config.Prefix == "" {
		return eventsIndex
	}
	return c.config.Prefix + "-" + eventsIndex
}
