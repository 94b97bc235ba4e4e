package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Requirement is a buyer's demand for a quantity of a commodity within a
// budget and quality envelope. Rows are never deleted; terminal statuses
// close them.
type Requirement struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Version   int            `gorm:"not null;default:0" json:"version"`

	BuyerID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"buyer_id"`
	BuyerBranchID *uuid.UUID `gorm:"type:uuid" json:"buyer_branch_id"`
	CommodityID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"commodity_id"`

	MinQuantity         decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"min_quantity"`
	MaxQuantity         decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"max_quantity"`
	PreferredQuantity   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"preferred_quantity"`
	QuantityUnit        string           `gorm:"not null" json:"quantity_unit"`
	MaxBudgetPerUnit    decimal.Decimal  `gorm:"type:decimal(24,2);not null" json:"max_budget_per_unit"`
	QualityRequirements []byte           `gorm:"type:jsonb" json:"quality_requirements"`
	DeliveryWindow      []byte           `gorm:"type:jsonb" json:"delivery_window"`

	Status           RequirementStatus `gorm:"not null;default:'DRAFT';index" json:"status"`
	IntentType       IntentType        `gorm:"not null" json:"intent_type"`
	UrgencyLevel     UrgencyLevel      `gorm:"not null" json:"urgency_level"`
	MarketVisibility MarketVisibility  `gorm:"not null;default:'public'" json:"market_visibility"`

	TotalPurchasedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_purchased_quantity"`
	TotalSpent             decimal.Decimal `gorm:"type:decimal(24,2);not null;default:0" json:"total_spent"`

	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil time.Time  `gorm:"not null" json:"valid_until"`
	EODCutoff  time.Time  `gorm:"not null;index" json:"eod_cutoff"`

	PublishedAt        *time.Time `json:"published_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancellationReason *string    `json:"cancellation_reason"`
	ExpiredAt          *time.Time `json:"expired_at"`

	EstimatedTradeValue          decimal.Decimal  `gorm:"type:decimal(24,2);not null;default:0" json:"estimated_trade_value"`
	BuyerCreditLimitRemaining    *decimal.Decimal `gorm:"type:decimal(24,2)" json:"buyer_credit_limit_remaining"`
	BuyerRatingScore             *decimal.Decimal `gorm:"type:decimal(5,2)" json:"buyer_rating_score"`
	BuyerPaymentPerformanceScore *int             `json:"buyer_payment_performance_score"`
	RiskPrecheckStatus           RiskStatus       `gorm:"not null;default:'PENDING'" json:"risk_precheck_status"`
	RiskPrecheckScore            *decimal.Decimal `gorm:"type:decimal(5,2)" json:"risk_precheck_score"`
	BuyerExposureAfterTrade      *decimal.Decimal `gorm:"type:decimal(24,2)" json:"buyer_exposure_after_trade"`
	RiskAssessedAt               *time.Time       `json:"risk_assessed_at"`

	BlockedInternalTrades bool   `gorm:"not null;default:false" json:"blocked_internal_trades"`
	AISuggestions         []byte `gorm:"type:jsonb" json:"ai_suggestions"`
}

// TableName overrides the table name
func (Requirement) TableName() string {
	return "trade_requirements"
}

// NewRequirementInput carries the caller-supplied fields for a draft requirement
type NewRequirementInput struct {
	BuyerID               uuid.UUID
	BuyerBranchID         *uuid.UUID
	CommodityID           uuid.UUID
	MinQuantity           decimal.Decimal
	MaxQuantity           decimal.Decimal
	PreferredQuantity     *decimal.Decimal
	QuantityUnit          string
	MaxBudgetPerUnit      decimal.Decimal
	QualityRequirements   []byte
	DeliveryWindow        []byte
	IntentType            IntentType
	UrgencyLevel          UrgencyLevel
	MarketVisibility      MarketVisibility
	ValidFrom             *time.Time
	ValidUntil            time.Time
	TimezoneOffsetMinutes int
	BlockedInternalTrades bool
}

// NewRequirement validates the input and creates a DRAFT requirement together
// with its created event. The EOD cutoff is converted to UTC here, once.
func NewRequirement(in NewRequirementInput, userID string) (*Requirement, []Event, error) {
	if in.BuyerID == uuid.Nil {
		return nil, nil, NewValidationError("buyer_id", "required")
	}
	if in.CommodityID == uuid.Nil {
		return nil, nil, NewValidationError("commodity_id", "required")
	}
	if !in.MinQuantity.IsPositive() {
		return nil, nil, NewValidationError("min_quantity", "must be positive")
	}
	if in.MaxQuantity.LessThan(in.MinQuantity) {
		return nil, nil, NewValidationError("max_quantity", "must be at least min_quantity")
	}
	if in.PreferredQuantity != nil &&
		(in.PreferredQuantity.LessThan(in.MinQuantity) || in.PreferredQuantity.GreaterThan(in.MaxQuantity)) {
		return nil, nil, NewValidationError("preferred_quantity", "must lie between min_quantity and max_quantity")
	}
	if in.QuantityUnit == "" {
		return nil, nil, NewValidationError("quantity_unit", "required")
	}
	if !in.MaxBudgetPerUnit.IsPositive() {
		return nil, nil, NewValidationError("max_budget_per_unit", "must be positive")
	}
	if in.ValidUntil.IsZero() {
		return nil, nil, NewValidationError("valid_until", "required")
	}

	intent := in.IntentType
	if intent == "" {
		intent = IntentDirectPurchase
	}
	urgency := in.UrgencyLevel
	if urgency == "" {
		urgency = UrgencyMedium
	}
	visibility := in.MarketVisibility
	if visibility == "" {
		visibility = VisibilityPublic
	}

	r := &Requirement{
		ID:                     uuid.New(),
		Version:                0,
		BuyerID:                in.BuyerID,
		BuyerBranchID:          in.BuyerBranchID,
		CommodityID:            in.CommodityID,
		MinQuantity:            in.MinQuantity,
		MaxQuantity:            in.MaxQuantity,
		PreferredQuantity:      copyDec(in.PreferredQuantity),
		QuantityUnit:           in.QuantityUnit,
		MaxBudgetPerUnit:       in.MaxBudgetPerUnit,
		QualityRequirements:    in.QualityRequirements,
		DeliveryWindow:         in.DeliveryWindow,
		Status:                 RequirementDraft,
		IntentType:             intent,
		UrgencyLevel:           urgency,
		MarketVisibility:       visibility,
		TotalPurchasedQuantity: decimal.Zero,
		TotalSpent:             decimal.Zero,
		ValidFrom:              in.ValidFrom,
		ValidUntil:             in.ValidUntil,
		EODCutoff:              EODCutoffUTC(in.ValidUntil, in.TimezoneOffsetMinutes),
		RiskPrecheckStatus:     RiskPending,
		BlockedInternalTrades:  in.BlockedInternalTrades,
	}
	r.CalculateEstimatedTradeValue()

	event := r.newEvent(EventRequirementCreated, userID, map[string]interface{}{
		"commodity_id":          r.CommodityID.String(),
		"min_quantity":          decString(r.MinQuantity),
		"max_quantity":          decString(r.MaxQuantity),
		"quantity_unit":         r.QuantityUnit,
		"max_budget_per_unit":   decString(r.MaxBudgetPerUnit),
		"intent_type":           string(r.IntentType),
		"urgency_level":         string(r.UrgencyLevel),
		"market_visibility":     string(r.MarketVisibility),
		"eod_cutoff":            timeString(r.EODCutoff),
		"estimated_trade_value": decString(r.EstimatedTradeValue),
	})
	return r, []Event{event}, nil
}

func (r *Requirement) newEvent(eventType, userID string, payload map[string]interface{}) Event {
	event := NewEvent(eventType, r.ID, KindRequirement, userID, payload)
	event.Metadata = map[string]interface{}{
		"counterparty_id": r.BuyerID.String(),
		"commodity_id":    r.CommodityID.String(),
		"intent_type":     string(r.IntentType),
		"urgency_level":   string(r.UrgencyLevel),
	}
	return event
}

// RemainingQuantity is the quantity still to purchase
func (r *Requirement) RemainingQuantity() decimal.Decimal {
	return r.MaxQuantity.Sub(r.TotalPurchasedQuantity)
}

// TotalBudget is the spend ceiling across the full quantity
func (r *Requirement) TotalBudget() decimal.Decimal {
	return r.MaxBudgetPerUnit.Mul(r.MaxQuantity)
}

// RemainingBudget is the budget still available for purchases
func (r *Requirement) RemainingBudget() decimal.Decimal {
	return r.TotalBudget().Sub(r.TotalSpent)
}

// FulfillmentPercentage is the purchased share of max_quantity, rounded to
// two decimal places
func (r *Requirement) FulfillmentPercentage() decimal.Decimal {
	if !r.MaxQuantity.IsPositive() {
		return decimal.Zero
	}
	return r.TotalPurchasedQuantity.Mul(decimal.NewFromInt(100)).Div(r.MaxQuantity).Round(2)
}

// CalculateEstimatedTradeValue computes quantity times budget, using the
// preferred quantity when the buyer stated one and falling back to the
// minimum, and memoizes the result on the aggregate.
func (r *Requirement) CalculateEstimatedTradeValue() decimal.Decimal {
	qty := r.MinQuantity
	if r.PreferredQuantity != nil && r.PreferredQuantity.IsPositive() {
		qty = *r.PreferredQuantity
	}
	r.EstimatedTradeValue = qty.Mul(r.MaxBudgetPerUnit)
	return r.EstimatedTradeValue
}

// Publish moves a DRAFT requirement to ACTIVE and emits requirement.published
func (r *Requirement) Publish(userID string) ([]Event, error) {
	if r.Status != RequirementDraft {
		return nil, NewInvalidStateError("publish", string(r.Status))
	}
	now := time.Now().UTC()
	r.Status = RequirementActive
	r.PublishedAt = &now
	r.CalculateEstimatedTradeValue()

	event := r.newEvent(EventRequirementPublished, userID, map[string]interface{}{
		"commodity_id":          r.CommodityID.String(),
		"intent_type":           string(r.IntentType),
		"urgency_level":         string(r.UrgencyLevel),
		"market_visibility":     string(r.MarketVisibility),
		"max_quantity":          decString(r.MaxQuantity),
		"remaining_quantity":    decString(r.RemainingQuantity()),
		"max_budget_per_unit":   decString(r.MaxBudgetPerUnit),
		"estimated_trade_value": decString(r.EstimatedTradeValue),
		"published_at":          timeString(now),
	})
	return []Event{event}, nil
}

// Cancel closes the requirement with a reason. Terminal statuses reject it.
func (r *Requirement) Cancel(userID, reason string) ([]Event, error) {
	if r.Status.Terminal() {
		return nil, NewInvalidStateError("cancel", string(r.Status))
	}
	now := time.Now().UTC()
	r.Status = RequirementCancelled
	r.CancelledAt = &now
	if reason != "" {
		r.CancellationReason = &reason
	}

	event := r.newEvent(EventRequirementCancelled, userID, map[string]interface{}{
		"reason":               reason,
		"unfulfilled_quantity": decString(r.RemainingQuantity()),
		"cancelled_at":         timeString(now),
	})
	return []Event{event}, nil
}

// FulfillmentInput records one trade's contribution to a requirement
type FulfillmentInput struct {
	PurchasedQuantity decimal.Decimal
	AmountSpent       decimal.Decimal
	TradeID           *uuid.UUID
}

// UpdateFulfillment books a purchase against the requirement. Partial
// fulfillment emits requirement.fulfillment_updated; reaching max_quantity
// additionally emits requirement.fulfilled, in that order.
func (r *Requirement) UpdateFulfillment(in FulfillmentInput, userID string) ([]Event, error) {
	if !r.Status.Fulfillable() {
		return nil, NewInvalidStateError("update_fulfillment", string(r.Status))
	}
	if !in.PurchasedQuantity.IsPositive() {
		return nil, NewValidationError("purchased_quantity", "must be positive")
	}
	if remaining := r.RemainingQuantity(); in.PurchasedQuantity.GreaterThan(remaining) {
		return nil, NewValidationError("purchased_quantity",
			fmt.Sprintf("exceeds remaining quantity %s", remaining))
	}
	if in.AmountSpent.IsNegative() {
		return nil, NewValidationError("amount_spent", "must not be negative")
	}
	if budget := r.RemainingBudget(); in.AmountSpent.GreaterThan(budget) {
		return nil, NewValidationError("amount_spent",
			fmt.Sprintf("exceeds remaining budget %s", budget))
	}

	r.TotalPurchasedQuantity = r.TotalPurchasedQuantity.Add(in.PurchasedQuantity)
	r.TotalSpent = r.TotalSpent.Add(in.AmountSpent)

	fulfilled := r.TotalPurchasedQuantity.GreaterThanOrEqual(r.MaxQuantity)
	if fulfilled {
		r.Status = RequirementFulfilled
	} else {
		r.Status = RequirementPartiallyFulfilled
	}

	events := []Event{r.newEvent(EventRequirementFulfillmentUpdated, userID, map[string]interface{}{
		"trade_id":                 uuidValue(in.TradeID),
		"purchased_quantity":       decString(in.PurchasedQuantity),
		"amount_spent":             decString(in.AmountSpent),
		"total_purchased_quantity": decString(r.TotalPurchasedQuantity),
		"total_spent":              decString(r.TotalSpent),
		"remaining_quantity":       decString(r.RemainingQuantity()),
		"remaining_budget":         decString(r.RemainingBudget()),
		"fulfillment_percentage":   decString(r.FulfillmentPercentage()),
		"status":                   string(r.Status),
	})}

	if fulfilled {
		events = append(events, r.newEvent(EventRequirementFulfilled, userID, map[string]interface{}{
			"total_purchased_quantity": decString(r.TotalPurchasedQuantity),
			"total_spent":              decString(r.TotalSpent),
			"fulfilled_at":             timeString(time.Now().UTC()),
		}))
	}
	return events, nil
}

// AIAdjustmentInput carries one autonomous adjustment suggestion
type AIAdjustmentInput struct {
	Type          AdjustmentType
	NewBudget     *decimal.Decimal // required when Type is budget
	NewValue      json.RawMessage  // required for quality and delivery_window
	Confidence    float64
	Reasoning     string
	MarketContext map[string]interface{}
	AutoApply     bool
}

// AISuggestion is one recorded, not-applied adjustment suggestion
type AISuggestion struct {
	AdjustmentType AdjustmentType  `json:"adjustment_type"`
	NewValue       json.RawMessage `json:"new_value"`
	Confidence     float64         `json:"confidence"`
	Reasoning      string          `json:"reasoning"`
	SuggestedBy    string          `json:"suggested_by"`
	SuggestedAt    time.Time       `json:"suggested_at"`
}

// ApplyAIAdjustment mutates the targeted field when auto_apply is set,
// otherwise records the suggestion. Either way requirement.ai_adjusted is
// emitted: that event is the audit trail for autonomous decisions.
func (r *Requirement) ApplyAIAdjustment(in AIAdjustmentInput, userID string) ([]Event, error) {
	if r.Status.Terminal() {
		return nil, NewInvalidStateError("apply_ai_adjustment", string(r.Status))
	}
	if !in.Type.Valid() {
		return nil, NewValidationError("adjustment_type", "must be budget, quality or delivery_window")
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, NewValidationError("confidence", "must be between 0.0 and 1.0")
	}
	if in.Reasoning == "" {
		return nil, NewValidationError("reasoning", "required")
	}

	var oldValue, newValue interface{}
	switch in.Type {
	case AdjustBudget:
		if in.NewBudget == nil || !in.NewBudget.IsPositive() {
			return nil, NewValidationError("new_value", "budget adjustment requires a positive amount")
		}
		oldValue = decString(r.MaxBudgetPerUnit)
		newValue = decString(*in.NewBudget)
		if in.AutoApply {
			r.MaxBudgetPerUnit = *in.NewBudget
			r.CalculateEstimatedTradeValue()
		}
	case AdjustQuality:
		if len(in.NewValue) == 0 || !json.Valid(in.NewValue) {
			return nil, NewValidationError("new_value", "must be a JSON document")
		}
		oldValue = rawJSON(r.QualityRequirements)
		newValue = json.RawMessage(in.NewValue)
		if in.AutoApply {
			r.QualityRequirements = append([]byte(nil), in.NewValue...)
		}
	case AdjustDeliveryWindow:
		if len(in.NewValue) == 0 || !json.Valid(in.NewValue) {
			return nil, NewValidationError("new_value", "must be a JSON document")
		}
		oldValue = rawJSON(r.DeliveryWindow)
		newValue = json.RawMessage(in.NewValue)
		if in.AutoApply {
			r.DeliveryWindow = append([]byte(nil), in.NewValue...)
		}
	}

	if !in.AutoApply {
		if err := r.recordAISuggestion(in, userID); err != nil {
			return nil, err
		}
	}

	payload := map[string]interface{}{
		"adjustment_type": string(in.Type),
		"old_value":       oldValue,
		"new_value":       newValue,
		"confidence":      in.Confidence,
		"reasoning":       in.Reasoning,
		"auto_applied":    in.AutoApply,
	}
	if in.MarketContext != nil {
		payload["market_context"] = in.MarketContext
	}
	return []Event{r.newEvent(EventRequirementAIAdjusted, userID, payload)}, nil
}

func (r *Requirement) recordAISuggestion(in AIAdjustmentInput, userID string) error {
	var suggestions []AISuggestion
	if len(r.AISuggestions) > 0 {
		if err := json.Unmarshal(r.AISuggestions, &suggestions); err != nil {
			return NewValidationError("ai_suggestions", "stored suggestion log is not valid JSON")
		}
	}

	raw := in.NewValue
	if in.Type == AdjustBudget {
		raw, _ = json.Marshal(in.NewBudget)
	}
	suggestions = append(suggestions, AISuggestion{
		AdjustmentType: in.Type,
		NewValue:       raw,
		Confidence:     in.Confidence,
		Reasoning:      in.Reasoning,
		SuggestedBy:    userID,
		SuggestedAt:    time.Now().UTC(),
	})

	buf, err := json.Marshal(suggestions)
	if err != nil {
		return err
	}
	r.AISuggestions = buf
	return nil
}

// UpdateRiskPrecheck runs the buyer-side precheck and stores its outcome.
// It never fails: missing metrics degrade to worst-case scoring. The
// aggregate status is untouched; the precheck is advisory.
func (r *Requirement) UpdateRiskPrecheck(creditLimitRemaining, rating *decimal.Decimal, paymentPerformance *int, userID string) (RiskAssessment, []Event) {
	r.CalculateEstimatedTradeValue()
	assessment := EvaluateRisk(BuyerScoreCard, RiskInputs{
		CreditLimitRemaining: creditLimitRemaining,
		Rating:               rating,
		Performance:          paymentPerformance,
		EstimatedTradeValue:  r.EstimatedTradeValue,
		CurrentExposure:      decimal.Zero,
	})

	r.BuyerCreditLimitRemaining = copyDec(creditLimitRemaining)
	r.BuyerRatingScore = copyDec(rating)
	r.BuyerPaymentPerformanceScore = copyInt(paymentPerformance)
	r.RiskPrecheckStatus = assessment.Status
	score := assessment.Score
	r.RiskPrecheckScore = &score
	exposure := assessment.ExposureAfterTrade
	r.BuyerExposureAfterTrade = &exposure
	assessedAt := assessment.AssessedAt
	r.RiskAssessedAt = &assessedAt

	event := r.newEvent(EventRequirementRiskPrecheckUpdated, userID, map[string]interface{}{
		"status":                    string(assessment.Status),
		"score":                     decString(assessment.Score),
		"risk_factors":              assessment.RiskFactors,
		"estimated_trade_value":     decString(assessment.EstimatedTradeValue),
		"exposure_after_trade":      decString(assessment.ExposureAfterTrade),
		"credit_limit_remaining":    decValue(creditLimitRemaining),
		"rating_score":              decValue(rating),
		"payment_performance_score": intValue(paymentPerformance),
		"assessed_at":               timeString(assessment.AssessedAt),
	})
	return assessment, []Event{event}
}

// Expire closes an open requirement past its EOD cutoff. The sweep calls
// this; statuses outside the open set reject it, which keeps a second sweep
// over the same row a no-op.
func (r *Requirement) Expire(now time.Time, userID string) ([]Event, error) {
	if !r.Status.Open() {
		return nil, NewInvalidStateError("expire", string(r.Status))
	}
	expiredAt := now.UTC()
	r.Status = RequirementExpired
	r.ExpiredAt = &expiredAt

	var activeSeconds int64
	if r.PublishedAt != nil {
		activeSeconds = int64(expiredAt.Sub(*r.PublishedAt).Seconds())
	}
	event := r.newEvent(EventRequirementExpired, userID, map[string]interface{}{
		"unfulfilled_quantity":    decString(r.RemainingQuantity()),
		"active_duration_seconds": activeSeconds,
		"eod_cutoff":              timeString(r.EODCutoff),
	})
	return []Event{event}, nil
}

// CheckInternalTradeBlock reports whether a trade with the given counterparty
// branch must be blocked as an internal trade
func (r *Requirement) CheckInternalTradeBlock(counterpartyBranchID uuid.UUID) bool {
	return BlocksInternalTrade(r.BlockedInternalTrades, r.BuyerBranchID, counterpartyBranchID)
}

func rawJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
