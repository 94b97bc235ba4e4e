package fanout

import (
	"fmt"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
)

// Router maps a domain event to the ordered set of channels it must be
// broadcast on. Routing reads only the event itself; the hints the
// aggregates attach as event metadata keep the router from loading rows.
type Router struct{}

// NewRouter creates a new fan-out router
func NewRouter() *Router {
	return &Router{}
}

// Route returns the ordered, duplicate-free channel list for the event
func (r *Router) Route(event domain.Event) []string {
	kind := event.AggregateType
	channels := make([]string, 0, 6)
	seen := make(map[string]struct{}, 8)

	add := func(ch string) {
		if _, ok := seen[ch]; ok {
			return
		}
		seen[ch] = struct{}{}
		channels = append(channels, ch)
	}

	add(fmt.Sprintf("entity:%s", event.AggregateID))

	if party := metaString(event, "counterparty_id"); party != "" {
		add(fmt.Sprintf("counterparty:%s:%s", party, kind))
	}

	switch event.EventType {
	case domain.EventRequirementCreated, domain.EventRequirementPublished,
		domain.EventAvailabilityCreated, domain.EventAvailabilityPublished:
		if commodity := metaString(event, "commodity_id"); commodity != "" {
			add(fmt.Sprintf("commodity:%s:%s", commodity, kind))
		}
	}

	// Publication hands the requirement off to the downstream intent
	// consumers, which subscribe by intent type and urgency.
	if event.EventType == domain.EventRequirementPublished {
		if intent := metaString(event, "intent_type"); intent != "" {
			add(fmt.Sprintf("intent:%s:%s", intent, kind))
		}
		if urgency := metaString(event, "urgency_level"); urgency != "" {
			add(fmt.Sprintf("urgency:%s:%s", urgency, kind))
		}
	}

	add(fmt.Sprintf("%s:updates", kind))

	switch event.EventType {
	case domain.EventRequirementPublished, domain.EventRequirementCancelled,
		domain.EventRequirementExpired:
		add(fmt.Sprintf("%s:intent_updates", kind))
	case domain.EventRequirementFulfillmentUpdated, domain.EventRequirementFulfilled,
		domain.EventAvailabilitySaleRecorded, domain.EventAvailabilitySoldOut:
		add(fmt.Sprintf("%s:fulfillment_updates", kind))
	case domain.EventRequirementRiskPrecheckUpdated, domain.EventAvailabilityRiskPrecheckUpdated:
		// PASS results stay off the alert channel to avoid alert fatigue.
		if alertWorthy(event) {
			add(fmt.Sprintf("%s:risk_alerts", kind))
		}
	}

	return channels
}

func alertWorthy(event domain.Event) bool {
	status, _ := event.Payload["status"].(string)
	return status == string(domain.RiskWarn) || status == string(domain.RiskFail)
}

func metaString(event domain.Event, key string) string {
	if event.Metadata == nil {
		return ""
	}
	s, _ := event.Metadata[key].(string)
	return s
}
