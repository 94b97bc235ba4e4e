package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Risk factor strings, in the fixed precedence order credit, rating, performance
const (
	FactorInsufficientCredit = "Insufficient credit limit for estimated trade value"
	FactorLowRating          = "Low rating (<3.0)"

	factorCreditUnavailable      = "Credit limit unavailable, scored worst-case"
	factorRatingUnavailable      = "Rating unavailable, scored worst-case"
	factorPerformanceUnavailable = "Performance data unavailable, scored worst-case"
)

// Risk classification cut points
var (
	riskPassFloor = decimal.NewFromInt(80)
	riskWarnFloor = decimal.NewFromInt(50)

	ratingThreshold = decimal.NewFromFloat(3.0)
	ratingCeiling   = decimal.NewFromInt(5)
	scoreCeiling    = decimal.NewFromInt(100)
)

const performanceThreshold = 60

// ScoreCard fixes the per-metric weights for one side of a trade.
// The buyer and seller cards share cut points and thresholds but weight
// performance differently.
type ScoreCard struct {
	CreditWeight      decimal.Decimal
	RatingWeight      decimal.Decimal
	PerformanceWeight decimal.Decimal
	PerformanceLabel  string
}

// BuyerScoreCard weights payment history at 30
var BuyerScoreCard = ScoreCard{
	CreditWeight:      decimal.NewFromInt(40),
	RatingWeight:      decimal.NewFromInt(30),
	PerformanceWeight: decimal.NewFromInt(30),
	PerformanceLabel:  "payment history",
}

// SellerScoreCard weights delivery performance at 20
var SellerScoreCard = ScoreCard{
	CreditWeight:      decimal.NewFromInt(40),
	RatingWeight:      decimal.NewFromInt(30),
	PerformanceWeight: decimal.NewFromInt(20),
	PerformanceLabel:  "delivery performance",
}

// RiskInputs carries the counterparty metrics for one precheck.
// A nil metric means the figure could not be fetched; it scores worst-case
// instead of failing the precheck.
type RiskInputs struct {
	CreditLimitRemaining *decimal.Decimal
	Rating               *decimal.Decimal
	Performance          *int
	EstimatedTradeValue  decimal.Decimal
	CurrentExposure      decimal.Decimal
}

// RiskAssessment is the outcome of one precheck run
type RiskAssessment struct {
	Status              RiskStatus      `json:"status"`
	Score               decimal.Decimal `json:"score"`
	RiskFactors         []string        `json:"risk_factors"`
	EstimatedTradeValue decimal.Decimal `json:"estimated_trade_value"`
	ExposureAfterTrade  decimal.Decimal `json:"exposure_after_trade"`
	AssessedAt          time.Time       `json:"assessed_at"`
}

// EvaluateRisk scores a counterparty against a score card. Deterministic:
// the same inputs always produce the same score, status, and factor list.
func EvaluateRisk(card ScoreCard, in RiskInputs) RiskAssessment {
	score := decimal.Zero
	factors := []string{}

	// Credit sufficiency: full weight when remaining credit covers the
	// estimated value, scaled down proportionally below that.
	if in.CreditLimitRemaining == nil {
		factors = append(factors, factorCreditUnavailable)
	} else {
		ratio := decimal.NewFromInt(1)
		if in.EstimatedTradeValue.IsPositive() {
			ratio = in.CreditLimitRemaining.Div(in.EstimatedTradeValue)
			if ratio.GreaterThan(decimal.NewFromInt(1)) {
				ratio = decimal.NewFromInt(1)
			}
			if ratio.IsNegative() {
				ratio = decimal.Zero
			}
		}
		score = score.Add(card.CreditWeight.Mul(ratio))
		if in.CreditLimitRemaining.LessThan(in.EstimatedTradeValue) {
			factors = append(factors, FactorInsufficientCredit)
		}
	}

	// Rating on the 0-5 scale
	if in.Rating == nil {
		factors = append(factors, factorRatingUnavailable)
	} else {
		rating := clampDecimal(*in.Rating, decimal.Zero, ratingCeiling)
		score = score.Add(card.RatingWeight.Mul(rating.Div(ratingCeiling)))
		if rating.LessThan(ratingThreshold) {
			factors = append(factors, FactorLowRating)
		}
	}

	// Performance on the 0-100 scale, payment or delivery depending on side
	if in.Performance == nil {
		factors = append(factors, factorPerformanceUnavailable)
	} else {
		perf := clampInt(*in.Performance, 0, 100)
		score = score.Add(card.PerformanceWeight.Mul(decimal.NewFromInt(int64(perf)).Div(scoreCeiling)))
		if perf < performanceThreshold {
			factors = append(factors, fmt.Sprintf("Poor %s (<%d)", card.PerformanceLabel, performanceThreshold))
		}
	}

	score = clampDecimal(score, decimal.Zero, scoreCeiling)

	return RiskAssessment{
		Status:              classifyRiskScore(score),
		Score:               score,
		RiskFactors:         factors,
		EstimatedTradeValue: in.EstimatedTradeValue,
		ExposureAfterTrade:  in.CurrentExposure.Add(in.EstimatedTradeValue),
		AssessedAt:          time.Now().UTC(),
	}
}

func classifyRiskScore(score decimal.Decimal) RiskStatus {
	switch {
	case score.GreaterThanOrEqual(riskPassFloor):
		return RiskPass
	case score.GreaterThanOrEqual(riskWarnFloor):
		return RiskWarn
	default:
		return RiskFail
	}
}

func clampDecimal(d, min, max decimal.Decimal) decimal.Decimal {
	if d.LessThan(min) {
		return min
	}
	if d.GreaterThan(max) {
		return max
	}
	return d
}

func clampInt(i, min, max int) int {
	if i < min {
		return min
	}
	if i > max {
		return max
	}
	return i
}

func copyDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
