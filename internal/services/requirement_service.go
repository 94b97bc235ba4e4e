package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/cache"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/eventstore"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/metrics"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/partners"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/repositories"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/tracing"
)

// requirementRepository is the persistence surface the service consumes
type requirementRepository interface {
	CreateTx(tx *gorm.DB, requirement *domain.Requirement) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Requirement, error)
	GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.Requirement, error)
	UpdateTx(tx *gorm.DB, requirement *domain.Requirement) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Requirement, error)
}

// RequirementService orchestrates the requirement lifecycle. Every mutation
// loads the row, runs one domain transition, and persists the updated
// aggregate together with its events in a single transaction.
type RequirementService struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
	repo       requirementRepository
	eventStore eventstore.Store
	directory  partners.Directory
	cache      *cache.RedisCache
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewRequirementService creates a new requirement service
func NewRequirementService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	eventStore eventstore.Store,
	directory partners.Directory,
	redisCache *cache.RedisCache,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *RequirementService {
	return &RequirementService{
		db:         db,
		readOnlyDB: readOnlyDB,
		repo:       repositories.NewRequirementRepository(db, readOnlyDB),
		eventStore: eventStore,
		directory:  directory,
		cache:      redisCache,
		metrics:    m,
		tracer:     tracer,
	}
}

// Create validates the input and persists a new DRAFT requirement
func (s *RequirementService) Create(ctx context.Context, in domain.NewRequirementInput, userID string) (*domain.Requirement, error) {
	txn := s.tracer.StartTransaction("create-requirement")
	defer s.tracer.EndTransaction(txn)
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("create", domain.KindRequirement, time.Since(start)) }()

	requirement, events, err := domain.NewRequirement(in, userID)
	if err != nil {
		s.metrics.IncrementOperationError("create", domain.KindRequirement)
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		span := s.tracer.StartSpan("persist-requirement", txn)
		defer span.End()

		if err := s.repo.CreateTx(tx, requirement); err != nil {
			return err
		}
		return s.eventStore.AppendTx(tx, events...)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.IncrementOperationError("create", domain.KindRequirement)
		return nil, err
	}

	s.recordEvents(events)
	s.primeCache(ctx, requirement)

	log.Info().
		Str("requirement_id", requirement.ID.String()).
		Str("buyer_id", requirement.BuyerID.String()).
		Str("commodity_id", requirement.CommodityID.String()).
		Str("eod_cutoff", requirement.EODCutoff.Format(time.RFC3339)).
		Msg("Requirement created")

	return requirement, nil
}

// Get returns the requirement, served from cache when possible
func (s *RequirementService) Get(ctx context.Context, id uuid.UUID) (*domain.Requirement, error) {
	var cached domain.Requirement
	if found, err := s.cache.Get(ctx, cache.RequirementCacheKey(id), &cached); err == nil && found {
		return &cached, nil
	}

	requirement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.primeCache(ctx, requirement)
	return requirement, nil
}

// Publish moves a DRAFT requirement to ACTIVE
func (s *RequirementService) Publish(ctx context.Context, id uuid.UUID, userID string) (*domain.Requirement, error) {
	txn := s.tracer.StartTransaction("publish-requirement")
	defer s.tracer.EndTransaction(txn)

	requirement, err := s.mutate(ctx, "publish", id, txn, func(r *domain.Requirement) ([]domain.Event, error) {
		return r.Publish(userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("requirement_id", requirement.ID.String()).
		Str("intent_type", string(requirement.IntentType)).
		Str("urgency_level", string(requirement.UrgencyLevel)).
		Msg("Requirement published")

	return requirement, nil
}

// Cancel terminally cancels the requirement
func (s *RequirementService) Cancel(ctx context.Context, id uuid.UUID, reason, userID string) (*domain.Requirement, error) {
	txn := s.tracer.StartTransaction("cancel-requirement")
	defer s.tracer.EndTransaction(txn)

	requirement, err := s.mutate(ctx, "cancel", id, txn, func(r *domain.Requirement) ([]domain.Event, error) {
		return r.Cancel(userID, reason)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("requirement_id", requirement.ID.String()).
		Str("reason", reason).
		Msg("Requirement cancelled")

	return requirement, nil
}

// UpdateFulfillment books purchased quantity and spend against the requirement
func (s *RequirementService) UpdateFulfillment(ctx context.Context, id uuid.UUID, in domain.FulfillmentInput, userID string) (*domain.Requirement, error) {
	txn := s.tracer.StartTransaction("requirement-fulfillment")
	defer s.tracer.EndTransaction(txn)

	requirement, err := s.mutate(ctx, "update_fulfillment", id, txn, func(r *domain.Requirement) ([]domain.Event, error) {
		return r.UpdateFulfillment(in, userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("requirement_id", requirement.ID.String()).
		Str("purchased_quantity", in.PurchasedQuantity.String()).
		Str("total_purchased", requirement.TotalPurchasedQuantity.String()).
		Str("status", string(requirement.Status)).
		Msg("Requirement fulfillment updated")

	return requirement, nil
}

// ApplyAIAdjustment applies or records an AI parameter suggestion
func (s *RequirementService) ApplyAIAdjustment(ctx context.Context, id uuid.UUID, in domain.AIAdjustmentInput, userID string) (*domain.Requirement, error) {
	txn := s.tracer.StartTransaction("requirement-ai-adjustment")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "adjustment_type", string(in.Type))
	s.tracer.AddAttribute(txn, "auto_apply", in.AutoApply)

	requirement, err := s.mutate(ctx, "apply_ai_adjustment", id, txn, func(r *domain.Requirement) ([]domain.Event, error) {
		return r.ApplyAIAdjustment(in, userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("requirement_id", requirement.ID.String()).
		Str("adjustment_type", string(in.Type)).
		Bool("auto_applied", in.AutoApply).
		Float64("confidence", in.Confidence).
		Msg("Requirement AI adjustment processed")

	return requirement, nil
}

// UpdateRiskPrecheck fetches the buyer's financial signals and recomputes the
// advisory risk assessment. Missing or unfetchable metrics degrade to
// worst-case scoring instead of failing the call.
func (s *RequirementService) UpdateRiskPrecheck(ctx context.Context, id uuid.UUID, userID string) (*domain.Requirement, domain.RiskAssessment, error) {
	txn := s.tracer.StartTransaction("requirement-risk-precheck")
	defer s.tracer.EndTransaction(txn)

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.metrics.IncrementOperationError("update_risk_precheck", domain.KindRequirement)
		return nil, domain.RiskAssessment{}, err
	}

	credit, rating, performance := s.fetchBuyerMetrics(ctx, txn, current.BuyerID)

	var assessment domain.RiskAssessment
	requirement, err := s.mutate(ctx, "update_risk_precheck", id, txn, func(r *domain.Requirement) ([]domain.Event, error) {
		var events []domain.Event
		assessment, events = r.UpdateRiskPrecheck(credit, rating, performance, userID)
		return events, nil
	})
	if err != nil {
		return nil, domain.RiskAssessment{}, err
	}

	s.metrics.IncrementRiskPrecheck(domain.KindRequirement, string(assessment.Status))

	log.Info().
		Str("requirement_id", requirement.ID.String()).
		Str("status", string(assessment.Status)).
		Str("score", assessment.Score.String()).
		Strs("risk_factors", assessment.RiskFactors).
		Msg("Requirement risk precheck updated")

	return requirement, assessment, nil
}

// CheckInternalTradeBlock reports whether trading with the counterparty
// branch is blocked. Both sides of a prospective trade run their own check.
func (s *RequirementService) CheckInternalTradeBlock(ctx context.Context, id uuid.UUID, counterpartyBranchID uuid.UUID) (bool, error) {
	requirement, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return requirement.CheckInternalTradeBlock(counterpartyBranchID), nil
}

// Expire transitions a requirement past its EOD cutoff to EXPIRED
func (s *RequirementService) Expire(ctx context.Context, id uuid.UUID, now time.Time, userID string) (*domain.Requirement, error) {
	txn := s.tracer.StartTransaction("expire-requirement")
	defer s.tracer.EndTransaction(txn)

	requirement, err := s.mutate(ctx, "expire", id, txn, func(r *domain.Requirement) ([]domain.Event, error) {
		return r.Expire(now, userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("requirement_id", requirement.ID.String()).
		Str("eod_cutoff", requirement.EODCutoff.Format(time.RFC3339)).
		Msg("Requirement expired")

	return requirement, nil
}

// ListExpiryCandidates returns open requirements whose cutoff has passed
func (s *RequirementService) ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Requirement, error) {
	return s.repo.ListExpired(ctx, now, limit)
}

// AuditTrail returns the full event history of one requirement
func (s *RequirementService) AuditTrail(ctx context.Context, id uuid.UUID) ([]domain.Event, error) {
	return s.eventStore.GetByAggregate(ctx, id)
}

// mutate runs one domain transition inside a transaction: load, transition,
// versioned update, event append. A failed version check rolls everything
// back, events included.
func (s *RequirementService) mutate(
	ctx context.Context,
	op string,
	id uuid.UUID,
	txn *newrelic.Transaction,
	transition func(*domain.Requirement) ([]domain.Event, error),
) (*domain.Requirement, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(op, domain.KindRequirement, time.Since(start)) }()

	var requirement *domain.Requirement
	var events []domain.Event

	err := s.db.Transaction(func(tx *gorm.DB) error {
		span := s.tracer.StartSpan(op, txn)
		defer span.End()

		var err error
		requirement, err = s.repo.GetByIDTx(tx, id)
		if err != nil {
			return err
		}

		events, err = transition(requirement)
		if err != nil {
			return err
		}

		if err := s.repo.UpdateTx(tx, requirement); err != nil {
			return err
		}
		return s.eventStore.AppendTx(tx, events...)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.IncrementOperationError(op, domain.KindRequirement)
		return nil, err
	}

	s.recordEvents(events)
	s.primeCache(ctx, requirement)
	return requirement, nil
}

func (s *RequirementService) fetchBuyerMetrics(ctx context.Context, txn *newrelic.Transaction, buyerID uuid.UUID) (*decimal.Decimal, *decimal.Decimal, *int) {
	span := s.tracer.StartSpan("fetch-buyer-metrics", txn)
	defer span.End()

	var credit, rating *decimal.Decimal
	var performance *int

	if v, err := s.directory.FetchCreditLimitRemaining(ctx, buyerID); err != nil {
		log.Warn().Err(err).Str("buyer_id", buyerID.String()).Msg("Buyer credit limit unavailable")
	} else {
		credit = &v
	}

	if v, err := s.directory.FetchRating(ctx, buyerID); err != nil {
		log.Warn().Err(err).Str("buyer_id", buyerID.String()).Msg("Buyer rating unavailable")
	} else {
		rating = &v
	}

	if v, err := s.directory.FetchPerformanceScore(ctx, buyerID, partners.PaymentPerformance); err != nil {
		log.Warn().Err(err).Str("buyer_id", buyerID.String()).Msg("Buyer payment performance unavailable")
	} else {
		performance = &v
	}

	return credit, rating, performance
}

func (s *RequirementService) recordEvents(events []domain.Event) {
	for _, event := range events {
		s.metrics.IncrementEventsAppended(event.EventType)
	}
}

func (s *RequirementService) primeCache(ctx context.Context, requirement *domain.Requirement) {
	if err := s.cache.Set(ctx, cache.RequirementCacheKey(requirement.ID), requirement); err != nil {
		log.Warn().Err(err).Str("requirement_id", requirement.ID.String()).Msg("Failed to cache requirement")
	}
}
