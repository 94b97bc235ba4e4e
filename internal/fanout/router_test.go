package fanout

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
)

func routedEvent(eventType, kind string, metadata, payload map[string]interface{}) domain.Event {
	event := domain.NewEvent(eventType, uuid.New(), kind, "user-1", payload)
	event.Metadata = metadata
	return event
}

func fullMetadata(counterpartyID, commodityID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"counterparty_id": counterpartyID.String(),
		"commodity_id":    commodityID.String(),
		"intent_type":     "direct_purchase",
		"urgency_level":   "high",
	}
}

func TestRouteRequirementPublished(t *testing.T) {
	buyerID := uuid.New()
	commodityID := uuid.New()
	event := routedEvent(domain.EventRequirementPublished, domain.KindRequirement,
		fullMetadata(buyerID, commodityID), nil)

	channels := NewRouter().Route(event)

	require.Equal(t, []string{
		fmt.Sprintf("entity:%s", event.AggregateID),
		fmt.Sprintf("counterparty:%s:requirement", buyerID),
		fmt.Sprintf("commodity:%s:requirement", commodityID),
		"intent:direct_purchase:requirement",
		"urgency:high:requirement",
		"requirement:updates",
		"requirement:intent_updates",
	}, channels)
}

func TestRouteChannelFamilies(t *testing.T) {
	buyerID := uuid.New()
	commodityID := uuid.New()
	meta := fullMetadata(buyerID, commodityID)

	tests := []struct {
		eventType string
		kind      string
		payload   map[string]interface{}
		contains  []string
		excludes  []string
	}{
		{
			eventType: domain.EventRequirementCreated,
			kind:      domain.KindRequirement,
			contains: []string{
				fmt.Sprintf("commodity:%s:requirement", commodityID),
				"requirement:updates",
			},
			excludes: []string{
				"intent:direct_purchase:requirement",
				"urgency:high:requirement",
				"requirement:intent_updates",
			},
		},
		{
			eventType: domain.EventRequirementFulfillmentUpdated,
			kind:      domain.KindRequirement,
			contains:  []string{"requirement:updates", "requirement:fulfillment_updates"},
			excludes:  []string{fmt.Sprintf("commodity:%s:requirement", commodityID)},
		},
		{
			eventType: domain.EventRequirementFulfilled,
			kind:      domain.KindRequirement,
			contains:  []string{"requirement:fulfillment_updates"},
		},
		{
			eventType: domain.EventRequirementCancelled,
			kind:      domain.KindRequirement,
			contains:  []string{"requirement:intent_updates"},
			excludes:  []string{"requirement:fulfillment_updates"},
		},
		{
			eventType: domain.EventRequirementExpired,
			kind:      domain.KindRequirement,
			contains:  []string{"requirement:intent_updates"},
		},
		{
			eventType: domain.EventAvailabilityCreated,
			kind:      domain.KindAvailability,
			contains: []string{
				fmt.Sprintf("commodity:%s:availability", commodityID),
				"availability:updates",
			},
			excludes: []string{"intent:direct_purchase:availability"},
		},
		{
			eventType: domain.EventAvailabilityPublished,
			kind:      domain.KindAvailability,
			contains:  []string{fmt.Sprintf("commodity:%s:availability", commodityID)},
			excludes: []string{
				"intent:direct_purchase:availability",
				"urgency:high:availability",
				"availability:intent_updates",
			},
		},
		{
			eventType: domain.EventAvailabilitySaleRecorded,
			kind:      domain.KindAvailability,
			contains:  []string{"availability:fulfillment_updates"},
		},
		{
			eventType: domain.EventAvailabilitySoldOut,
			kind:      domain.KindAvailability,
			contains:  []string{"availability:fulfillment_updates"},
		},
		{
			eventType: domain.EventAvailabilityCancelled,
			kind:      domain.KindAvailability,
			contains:  []string{"availability:updates"},
			excludes:  []string{"availability:intent_updates"},
		},
	}

	router := NewRouter()
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			event := routedEvent(tt.eventType, tt.kind, meta, tt.payload)
			channels := router.Route(event)

			require.Equal(t, fmt.Sprintf("entity:%s", event.AggregateID), channels[0])
			require.Contains(t, channels, fmt.Sprintf("counterparty:%s:%s", buyerID, tt.kind))
			for _, ch := range tt.contains {
				require.Contains(t, channels, ch)
			}
			for _, ch := range tt.excludes {
				require.NotContains(t, channels, ch)
			}

			seen := make(map[string]struct{})
			for _, ch := range channels {
				_, dup := seen[ch]
				require.False(t, dup, "duplicate channel %s", ch)
				seen[ch] = struct{}{}
			}
		})
	}
}

func TestRouteRiskAlertGating(t *testing.T) {
	meta := fullMetadata(uuid.New(), uuid.New())

	tests := []struct {
		name      string
		eventType string
		kind      string
		status    string
		alerted   bool
	}{
		{"requirement WARN", domain.EventRequirementRiskPrecheckUpdated, domain.KindRequirement, "WARN", true},
		{"requirement FAIL", domain.EventRequirementRiskPrecheckUpdated, domain.KindRequirement, "FAIL", true},
		{"requirement PASS", domain.EventRequirementRiskPrecheckUpdated, domain.KindRequirement, "PASS", false},
		{"availability WARN", domain.EventAvailabilityRiskPrecheckUpdated, domain.KindAvailability, "WARN", true},
		{"availability FAIL", domain.EventAvailabilityRiskPrecheckUpdated, domain.KindAvailability, "FAIL", true},
		{"availability PASS", domain.EventAvailabilityRiskPrecheckUpdated, domain.KindAvailability, "PASS", false},
		{"missing status", domain.EventAvailabilityRiskPrecheckUpdated, domain.KindAvailability, "", false},
	}

	router := NewRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := map[string]interface{}{}
			if tt.status != "" {
				payload["status"] = tt.status
			}
			channels := router.Route(routedEvent(tt.eventType, tt.kind, meta, payload))

			alertChannel := fmt.Sprintf("%s:risk_alerts", tt.kind)
			if tt.alerted {
				require.Contains(t, channels, alertChannel)
			} else {
				require.NotContains(t, channels, alertChannel)
			}
		})
	}
}

func TestRouteWithoutMetadata(t *testing.T) {
	event := routedEvent(domain.EventRequirementPublished, domain.KindRequirement, nil, nil)

	channels := NewRouter().Route(event)

	require.Equal(t, []string{
		fmt.Sprintf("entity:%s", event.AggregateID),
		"requirement:updates",
		"requirement:intent_updates",
	}, channels)
}

// Routing an event built by the aggregate itself keeps the router and the
// metadata hints the aggregates attach from drifting apart.
func TestRouteAggregateEmittedEvent(t *testing.T) {
	in := domain.NewRequirementInput{
		BuyerID:          uuid.New(),
		CommodityID:      uuid.New(),
		MinQuantity:      decimal.NewFromInt(100),
		MaxQuantity:      decimal.NewFromInt(500),
		QuantityUnit:     "MT",
		MaxBudgetPerUnit: decimal.NewFromInt(76500),
		ValidUntil:       time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	}

	r, events, err := domain.NewRequirement(in, "trader-1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	channels := NewRouter().Route(events[0])
	require.Contains(t, channels, fmt.Sprintf("entity:%s", r.ID))
	require.Contains(t, channels, fmt.Sprintf("counterparty:%s:requirement", in.BuyerID))
	require.Contains(t, channels, fmt.Sprintf("commodity:%s:requirement", in.CommodityID))
	require.Contains(t, channels, "requirement:updates")
}
