package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Availability is a seller's supply of a commodity at a location. Its
// available quantity depletes as sales are recorded against it.
type Availability struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Version   int            `gorm:"not null;default:0" json:"version"`

	SellerID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"seller_id"`
	SellerBranchID *uuid.UUID `gorm:"type:uuid" json:"seller_branch_id"`
	CommodityID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"commodity_id"`
	LocationID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"location_id"`

	TotalQuantity     decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"total_quantity"`
	AvailableQuantity decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"available_quantity"`
	QuantityUnit      string           `gorm:"not null" json:"quantity_unit"`
	BasePrice         decimal.Decimal  `gorm:"type:decimal(24,2);not null" json:"base_price"`
	ExpectedPrice     *decimal.Decimal `gorm:"type:decimal(24,2)" json:"expected_price"`
	PriceType         PriceType        `gorm:"not null;default:'fixed'" json:"price_type"`

	Status AvailabilityStatus `gorm:"not null;default:'DRAFT';index" json:"status"`

	TotalSalesValue decimal.Decimal `gorm:"type:decimal(24,2);not null;default:0" json:"total_sales_value"`

	ValidUntil time.Time `gorm:"not null" json:"valid_until"`
	EODCutoff  time.Time `gorm:"not null;index" json:"eod_cutoff"`

	PublishedAt        *time.Time `json:"published_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancellationReason *string    `json:"cancellation_reason"`
	ExpiredAt          *time.Time `json:"expired_at"`

	EstimatedTradeValue        decimal.Decimal  `gorm:"type:decimal(24,2);not null;default:0" json:"estimated_trade_value"`
	SellerCreditLimitRemaining *decimal.Decimal `gorm:"type:decimal(24,2)" json:"seller_credit_limit_remaining"`
	SellerRatingScore          *decimal.Decimal `gorm:"type:decimal(5,2)" json:"seller_rating_score"`
	SellerDeliveryScore        *int             `json:"seller_delivery_score"`
	SellerExposureAfterTrade   *decimal.Decimal `gorm:"type:decimal(24,2)" json:"seller_exposure_after_trade"`
	RiskPrecheckStatus         RiskStatus       `gorm:"not null;default:'PENDING'" json:"risk_precheck_status"`
	RiskPrecheckScore          *decimal.Decimal `gorm:"type:decimal(5,2)" json:"risk_precheck_score"`
	RiskFlags                  []byte           `gorm:"type:jsonb" json:"risk_flags"`
	RiskAssessedAt             *time.Time       `json:"risk_assessed_at"`

	BlockedForBranches bool `gorm:"not null;default:false" json:"blocked_for_branches"`
}

// TableName overrides the table name
func (Availability) TableName() string {
	return "trade_availabilities"
}

// AvailabilityRiskFlags is the structured diagnostics bag stored after a
// seller precheck, consumed by downstream observability tooling
type AvailabilityRiskFlags struct {
	RiskFactors          []string         `json:"risk_factors"`
	CreditLimitRemaining *decimal.Decimal `json:"credit_limit_remaining"`
	ExposureAfterTrade   decimal.Decimal  `json:"exposure_after_trade"`
	RatingScore          *decimal.Decimal `json:"rating_score"`
	DeliveryScore        *int             `json:"delivery_score"`
	AssessedAt           time.Time        `json:"assessed_at"`
}

// NewAvailabilityInput carries the caller-supplied fields for a draft availability
type NewAvailabilityInput struct {
	SellerID              uuid.UUID
	SellerBranchID        *uuid.UUID
	CommodityID           uuid.UUID
	LocationID            uuid.UUID
	TotalQuantity         decimal.Decimal
	QuantityUnit          string
	BasePrice             decimal.Decimal
	ExpectedPrice         *decimal.Decimal
	PriceType             PriceType
	ValidUntil            time.Time
	TimezoneOffsetMinutes int
	BlockedForBranches    bool
}

// NewAvailability validates the input and creates a DRAFT availability with
// its created event. The full quantity starts available.
func NewAvailability(in NewAvailabilityInput, userID string) (*Availability, []Event, error) {
	if in.SellerID == uuid.Nil {
		return nil, nil, NewValidationError("seller_id", "required")
	}
	if in.CommodityID == uuid.Nil {
		return nil, nil, NewValidationError("commodity_id", "required")
	}
	if in.LocationID == uuid.Nil {
		return nil, nil, NewValidationError("location_id", "required")
	}
	if !in.TotalQuantity.IsPositive() {
		return nil, nil, NewValidationError("total_quantity", "must be positive")
	}
	if in.QuantityUnit == "" {
		return nil, nil, NewValidationError("quantity_unit", "required")
	}
	if !in.BasePrice.IsPositive() {
		return nil, nil, NewValidationError("base_price", "must be positive")
	}
	if in.ExpectedPrice != nil && !in.ExpectedPrice.IsPositive() {
		return nil, nil, NewValidationError("expected_price", "must be positive when set")
	}
	if in.ValidUntil.IsZero() {
		return nil, nil, NewValidationError("valid_until", "required")
	}

	priceType := in.PriceType
	if priceType == "" {
		priceType = PriceFixed
	}

	a := &Availability{
		ID:                 uuid.New(),
		Version:            0,
		SellerID:           in.SellerID,
		SellerBranchID:     in.SellerBranchID,
		CommodityID:        in.CommodityID,
		LocationID:         in.LocationID,
		TotalQuantity:      in.TotalQuantity,
		AvailableQuantity:  in.TotalQuantity,
		QuantityUnit:       in.QuantityUnit,
		BasePrice:          in.BasePrice,
		ExpectedPrice:      copyDec(in.ExpectedPrice),
		PriceType:          priceType,
		Status:             AvailabilityDraft,
		TotalSalesValue:    decimal.Zero,
		ValidUntil:         in.ValidUntil,
		EODCutoff:          EODCutoffUTC(in.ValidUntil, in.TimezoneOffsetMinutes),
		RiskPrecheckStatus: RiskPending,
		BlockedForBranches: in.BlockedForBranches,
	}
	a.CalculateEstimatedTradeValue()

	event := a.newEvent(EventAvailabilityCreated, userID, map[string]interface{}{
		"commodity_id":          a.CommodityID.String(),
		"location_id":           a.LocationID.String(),
		"total_quantity":        decString(a.TotalQuantity),
		"quantity_unit":         a.QuantityUnit,
		"base_price":            decString(a.BasePrice),
		"expected_price":        decValue(a.ExpectedPrice),
		"price_type":            string(a.PriceType),
		"eod_cutoff":            timeString(a.EODCutoff),
		"estimated_trade_value": decString(a.EstimatedTradeValue),
	})
	return a, []Event{event}, nil
}

func (a *Availability) newEvent(eventType, userID string, payload map[string]interface{}) Event {
	event := NewEvent(eventType, a.ID, KindAvailability, userID, payload)
	event.Metadata = map[string]interface{}{
		"counterparty_id": a.SellerID.String(),
		"commodity_id":    a.CommodityID.String(),
	}
	return event
}

// SoldQuantity is the quantity already sold
func (a *Availability) SoldQuantity() decimal.Decimal {
	return a.TotalQuantity.Sub(a.AvailableQuantity)
}

// UnitPrice is the price used for valuation: the expected price when the
// seller stated one, the base price otherwise
func (a *Availability) UnitPrice() decimal.Decimal {
	if a.ExpectedPrice != nil && a.ExpectedPrice.IsPositive() {
		return *a.ExpectedPrice
	}
	return a.BasePrice
}

// CalculateEstimatedTradeValue computes remaining quantity times unit price
// and memoizes the result on the aggregate
func (a *Availability) CalculateEstimatedTradeValue() decimal.Decimal {
	a.EstimatedTradeValue = a.AvailableQuantity.Mul(a.UnitPrice())
	return a.EstimatedTradeValue
}

// Publish moves a DRAFT availability to ACTIVE and emits availability.published.
// The event carries the current precheck status; publication is not gated on
// it, the precheck is advisory.
func (a *Availability) Publish(userID string) ([]Event, error) {
	if a.Status != AvailabilityDraft {
		return nil, NewInvalidStateError("publish", string(a.Status))
	}
	now := time.Now().UTC()
	a.Status = AvailabilityActive
	a.PublishedAt = &now
	a.CalculateEstimatedTradeValue()

	event := a.newEvent(EventAvailabilityPublished, userID, map[string]interface{}{
		"commodity_id":          a.CommodityID.String(),
		"location_id":           a.LocationID.String(),
		"available_quantity":    decString(a.AvailableQuantity),
		"unit_price":            decString(a.UnitPrice()),
		"price_type":            string(a.PriceType),
		"estimated_trade_value": decString(a.EstimatedTradeValue),
		"risk_precheck_status":  string(a.RiskPrecheckStatus),
		"published_at":          timeString(now),
	})
	return []Event{event}, nil
}

// SaleInput records one trade's depletion of an availability
type SaleInput struct {
	Quantity decimal.Decimal
	Amount   decimal.Decimal
	TradeID  *uuid.UUID
}

// RecordSale books a sale against the availability. Partial depletion emits
// availability.sale_recorded; reaching zero additionally emits
// availability.sold_out, in that order.
func (a *Availability) RecordSale(in SaleInput, userID string) ([]Event, error) {
	if !a.Status.Open() {
		return nil, NewInvalidStateError("record_sale", string(a.Status))
	}
	if !in.Quantity.IsPositive() {
		return nil, NewValidationError("quantity", "must be positive")
	}
	if in.Quantity.GreaterThan(a.AvailableQuantity) {
		return nil, NewValidationError("quantity",
			fmt.Sprintf("exceeds available quantity %s", a.AvailableQuantity))
	}
	if in.Amount.IsNegative() {
		return nil, NewValidationError("amount", "must not be negative")
	}

	a.AvailableQuantity = a.AvailableQuantity.Sub(in.Quantity)
	a.TotalSalesValue = a.TotalSalesValue.Add(in.Amount)

	soldOut := a.AvailableQuantity.IsZero()
	if soldOut {
		a.Status = AvailabilitySold
	} else {
		a.Status = AvailabilityPartiallySold
	}

	events := []Event{a.newEvent(EventAvailabilitySaleRecorded, userID, map[string]interface{}{
		"trade_id":           uuidValue(in.TradeID),
		"quantity":           decString(in.Quantity),
		"amount":             decString(in.Amount),
		"available_quantity": decString(a.AvailableQuantity),
		"total_sales_value":  decString(a.TotalSalesValue),
		"status":             string(a.Status),
	})}

	if soldOut {
		events = append(events, a.newEvent(EventAvailabilitySoldOut, userID, map[string]interface{}{
			"total_quantity":    decString(a.TotalQuantity),
			"total_sales_value": decString(a.TotalSalesValue),
			"sold_out_at":       timeString(time.Now().UTC()),
		}))
	}
	return events, nil
}

// Cancel closes the availability with a reason. Terminal statuses reject it.
func (a *Availability) Cancel(userID, reason string) ([]Event, error) {
	if a.Status.Terminal() {
		return nil, NewInvalidStateError("cancel", string(a.Status))
	}
	now := time.Now().UTC()
	a.Status = AvailabilityCancelled
	a.CancelledAt = &now
	if reason != "" {
		a.CancellationReason = &reason
	}

	event := a.newEvent(EventAvailabilityCancelled, userID, map[string]interface{}{
		"reason":             reason,
		"remaining_quantity": decString(a.AvailableQuantity),
		"cancelled_at":       timeString(now),
	})
	return []Event{event}, nil
}

// UpdateRiskPrecheck runs the seller-side precheck, stores its outcome, and
// fills the structured risk_flags record. Missing metrics degrade to
// worst-case scoring; the call never fails.
func (a *Availability) UpdateRiskPrecheck(creditLimitRemaining, rating *decimal.Decimal, deliveryPerformance *int, currentExposure decimal.Decimal, userID string) (RiskAssessment, []Event) {
	a.CalculateEstimatedTradeValue()
	assessment := EvaluateRisk(SellerScoreCard, RiskInputs{
		CreditLimitRemaining: creditLimitRemaining,
		Rating:               rating,
		Performance:          deliveryPerformance,
		EstimatedTradeValue:  a.EstimatedTradeValue,
		CurrentExposure:      currentExposure,
	})

	a.SellerCreditLimitRemaining = copyDec(creditLimitRemaining)
	a.SellerRatingScore = copyDec(rating)
	a.SellerDeliveryScore = copyInt(deliveryPerformance)
	a.RiskPrecheckStatus = assessment.Status
	score := assessment.Score
	a.RiskPrecheckScore = &score
	exposure := assessment.ExposureAfterTrade
	a.SellerExposureAfterTrade = &exposure
	assessedAt := assessment.AssessedAt
	a.RiskAssessedAt = &assessedAt

	flags := AvailabilityRiskFlags{
		RiskFactors:          assessment.RiskFactors,
		CreditLimitRemaining: copyDec(creditLimitRemaining),
		ExposureAfterTrade:   assessment.ExposureAfterTrade,
		RatingScore:          copyDec(rating),
		DeliveryScore:        copyInt(deliveryPerformance),
		AssessedAt:           assessment.AssessedAt,
	}
	if buf, err := json.Marshal(flags); err == nil {
		a.RiskFlags = buf
	}

	event := a.newEvent(EventAvailabilityRiskPrecheckUpdated, userID, map[string]interface{}{
		"status":                 string(assessment.Status),
		"score":                  decString(assessment.Score),
		"risk_factors":           assessment.RiskFactors,
		"estimated_trade_value":  decString(assessment.EstimatedTradeValue),
		"exposure_after_trade":   decString(assessment.ExposureAfterTrade),
		"credit_limit_remaining": decValue(creditLimitRemaining),
		"rating_score":           decValue(rating),
		"delivery_score":         intValue(deliveryPerformance),
		"assessed_at":            timeString(assessment.AssessedAt),
	})
	return assessment, []Event{event}
}

// Expire closes an open availability past its EOD cutoff. Statuses outside
// the open set reject it, which keeps a second sweep over the same row a
// no-op.
func (a *Availability) Expire(now time.Time, userID string) ([]Event, error) {
	if !a.Status.Open() {
		return nil, NewInvalidStateError("expire", string(a.Status))
	}
	expiredAt := now.UTC()
	a.Status = AvailabilityExpired
	a.ExpiredAt = &expiredAt

	var activeSeconds int64
	if a.PublishedAt != nil {
		activeSeconds = int64(expiredAt.Sub(*a.PublishedAt).Seconds())
	}
	event := a.newEvent(EventAvailabilityExpired, userID, map[string]interface{}{
		"remaining_quantity":      decString(a.AvailableQuantity),
		"active_duration_seconds": activeSeconds,
		"eod_cutoff":              timeString(a.EODCutoff),
	})
	return []Event{event}, nil
}

// CheckInternalTradeBlock reports whether a trade with the given buyer branch
// must be blocked as an internal trade
func (a *Availability) CheckInternalTradeBlock(buyerBranchID uuid.UUID) bool {
	return BlocksInternalTrade(a.BlockedForBranches, a.SellerBranchID, buyerBranchID)
}
