package partners

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PerformanceKind selects which performance figure a directory lookup returns.
type PerformanceKind string

const (
	// PaymentPerformance is the buyer-side settlement history score.
	PaymentPerformance PerformanceKind = "payment"
	// DeliveryPerformance is the seller-side delivery history score.
	DeliveryPerformance PerformanceKind = "delivery"
)

// ErrMetricUnavailable signals that the directory holds no figure for the
// partner. Callers degrade to worst-case risk scoring instead of failing.
var ErrMetricUnavailable = errors.New("partner metric unavailable")

// Directory supplies counterparty financial signals for risk prechecks.
// Implementations live in the partner master-data services; this module
// only consumes them.
type Directory interface {
	FetchCreditLimitRemaining(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error)
	FetchRating(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error)
	FetchPerformanceScore(ctx context.Context, partnerID uuid.UUID, kind PerformanceKind) (int, error)
}

// Unavailable is a Directory with no backing master-data service. Every
// lookup reports the metric as missing, so prechecks score worst-case.
type Unavailable struct{}

func (Unavailable) FetchCreditLimitRemaining(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, ErrMetricUnavailable
}

func (Unavailable) FetchRating(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, ErrMetricUnavailable
}

func (Unavailable) FetchPerformanceScore(context.Context, uuid.UUID, PerformanceKind) (int, error) {
	return 0, ErrMetricUnavailable
}
