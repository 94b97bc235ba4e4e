package domain

// Aggregate kind labels used in event records and channel names
const (
	KindRequirement  = "requirement"
	KindAvailability = "availability"
)

// RequirementStatus defines the lifecycle status of a requirement
type RequirementStatus string

const (
	// RequirementDraft represents an unpublished requirement
	RequirementDraft RequirementStatus = "DRAFT"
	// RequirementPendingApproval represents a requirement awaiting desk approval
	RequirementPendingApproval RequirementStatus = "PENDING_APPROVAL"
	// RequirementActive represents a published requirement open for trading
	RequirementActive RequirementStatus = "ACTIVE"
	// RequirementPartiallyFulfilled represents a requirement with some quantity purchased
	RequirementPartiallyFulfilled RequirementStatus = "PARTIALLY_FULFILLED"
	// RequirementFulfilled represents a fully purchased requirement
	RequirementFulfilled RequirementStatus = "FULFILLED"
	// RequirementCancelled represents a requirement withdrawn by the buyer
	RequirementCancelled RequirementStatus = "CANCELLED"
	// RequirementExpired represents a requirement closed by the EOD sweep
	RequirementExpired RequirementStatus = "EXPIRED"
)

// OpenRequirementStatuses are the statuses the EOD sweep treats as live
var OpenRequirementStatuses = []RequirementStatus{
	RequirementActive,
	RequirementPartiallyFulfilled,
	RequirementPendingApproval,
}

// Terminal reports whether the status permits no further mutation
func (s RequirementStatus) Terminal() bool {
	switch s {
	case RequirementFulfilled, RequirementCancelled, RequirementExpired:
		return true
	}
	return false
}

// Open reports whether the EOD sweep treats the status as live
func (s RequirementStatus) Open() bool {
	switch s {
	case RequirementActive, RequirementPartiallyFulfilled, RequirementPendingApproval:
		return true
	}
	return false
}

// Fulfillable reports whether fulfillment updates are accepted in this status
func (s RequirementStatus) Fulfillable() bool {
	return s == RequirementActive || s == RequirementPartiallyFulfilled
}

// AvailabilityStatus defines the lifecycle status of an availability
type AvailabilityStatus string

const (
	// AvailabilityDraft represents an unpublished availability
	AvailabilityDraft AvailabilityStatus = "DRAFT"
	// AvailabilityActive represents a published availability open for trading
	AvailabilityActive AvailabilityStatus = "ACTIVE"
	// AvailabilityAvailable is the legacy alias for ACTIVE still present on older rows
	AvailabilityAvailable AvailabilityStatus = "AVAILABLE"
	// AvailabilityPartiallySold represents an availability with some quantity sold
	AvailabilityPartiallySold AvailabilityStatus = "PARTIALLY_SOLD"
	// AvailabilitySold represents a fully depleted availability
	AvailabilitySold AvailabilityStatus = "SOLD"
	// AvailabilityCancelled represents an availability withdrawn by the seller
	AvailabilityCancelled AvailabilityStatus = "CANCELLED"
	// AvailabilityExpired represents an availability closed by the EOD sweep
	AvailabilityExpired AvailabilityStatus = "EXPIRED"
)

// OpenAvailabilityStatuses are the statuses the EOD sweep treats as live
var OpenAvailabilityStatuses = []AvailabilityStatus{
	AvailabilityActive,
	AvailabilityAvailable,
	AvailabilityPartiallySold,
}

// Terminal reports whether the status permits no further mutation
func (s AvailabilityStatus) Terminal() bool {
	switch s {
	case AvailabilitySold, AvailabilityCancelled, AvailabilityExpired:
		return true
	}
	return false
}

// Open reports whether sales are accepted and the EOD sweep treats the
// status as live
func (s AvailabilityStatus) Open() bool {
	switch s {
	case AvailabilityActive, AvailabilityAvailable, AvailabilityPartiallySold:
		return true
	}
	return false
}

// IntentType routes a published requirement to its downstream handling path
type IntentType string

const (
	// IntentDirectPurchase routes to the direct purchase handler
	IntentDirectPurchase IntentType = "direct_purchase"
	// IntentNegotiation routes to the negotiation handler
	IntentNegotiation IntentType = "negotiation"
	// IntentAuction routes to the auction handler
	IntentAuction IntentType = "auction"
	// IntentPriceDiscovery publishes for price discovery only
	IntentPriceDiscovery IntentType = "price_discovery"
)

// UrgencyLevel indicates how quickly a requirement should be worked
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
	UrgencyUrgent UrgencyLevel = "urgent"
)

// MarketVisibility controls which counterparties can see a published entry
type MarketVisibility string

const (
	VisibilityPublic  MarketVisibility = "public"
	VisibilityNetwork MarketVisibility = "network"
	VisibilityPrivate MarketVisibility = "private"
)

// PriceType defines how an availability's price is to be interpreted
type PriceType string

const (
	PriceFixed      PriceType = "fixed"
	PriceNegotiable PriceType = "negotiable"
)

// RiskStatus classifies the outcome of a risk precheck
type RiskStatus string

const (
	// RiskPending means no precheck has run yet
	RiskPending RiskStatus = "PENDING"
	// RiskPass means the counterparty cleared every threshold
	RiskPass RiskStatus = "PASS"
	// RiskWarn means at least one metric breached its threshold
	RiskWarn RiskStatus = "WARN"
	// RiskFail means the counterparty is unsuitable for the estimated trade value
	RiskFail RiskStatus = "FAIL"
)

// AdjustmentType names the requirement field an AI adjustment targets
type AdjustmentType string

const (
	AdjustBudget         AdjustmentType = "budget"
	AdjustQuality        AdjustmentType = "quality"
	AdjustDeliveryWindow AdjustmentType = "delivery_window"
)

// Valid reports whether the adjustment type is one of the known targets
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustBudget, AdjustQuality, AdjustDeliveryWindow:
		return true
	}
	return false
}
