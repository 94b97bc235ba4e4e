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

// availabilityRepository is the persistence surface the service consumes
type availabilityRepository interface {
	CreateTx(tx *gorm.DB, availability *domain.Availability) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Availability, error)
	GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.Availability, error)
	UpdateTx(tx *gorm.DB, availability *domain.Availability) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Availability, error)
}

// AvailabilityService orchestrates the availability lifecycle with the same
// transactional discipline as RequirementService.
type AvailabilityService struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
	repo       availabilityRepository
	eventStore eventstore.Store
	directory  partners.Directory
	cache      *cache.RedisCache
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	eventStore eventstore.Store,
	directory partners.Directory,
	redisCache *cache.RedisCache,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *AvailabilityService {
	return &AvailabilityService{
		db:         db,
		readOnlyDB: readOnlyDB,
		repo:       repositories.NewAvailabilityRepository(db, readOnlyDB),
		eventStore: eventStore,
		directory:  directory,
		cache:      redisCache,
		metrics:    m,
		tracer:     tracer,
	}
}

// Create validates the input and persists a new DRAFT availability
func (s *AvailabilityService) Create(ctx context.Context, in domain.NewAvailabilityInput, userID string) (*domain.Availability, error) {
	txn := s.tracer.StartTransaction("create-availability")
	defer s.tracer.EndTransaction(txn)
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("create", domain.KindAvailability, time.Since(start)) }()

	availability, events, err := domain.NewAvailability(in, userID)
	if err != nil {
		s.metrics.IncrementOperationError("create", domain.KindAvailability)
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		span := s.tracer.StartSpan("persist-availability", txn)
		defer span.End()

		if err := s.repo.CreateTx(tx, availability); err != nil {
			return err
		}
		return s.eventStore.AppendTx(tx, events...)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.IncrementOperationError("create", domain.KindAvailability)
		return nil, err
	}

	s.recordEvents(events)
	s.primeCache(ctx, availability)

	log.Info().
		Str("availability_id", availability.ID.String()).
		Str("seller_id", availability.SellerID.String()).
		Str("commodity_id", availability.CommodityID.String()).
		Str("total_quantity", availability.TotalQuantity.String()).
		Msg("Availability created")

	return availability, nil
}

// Get returns the availability, served from cache when possible
func (s *AvailabilityService) Get(ctx context.Context, id uuid.UUID) (*domain.Availability, error) {
	var cached domain.Availability
	if found, err := s.cache.Get(ctx, cache.AvailabilityCacheKey(id), &cached); err == nil && found {
		return &cached, nil
	}

	availability, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.primeCache(ctx, availability)
	return availability, nil
}

// Publish moves a DRAFT availability to ACTIVE. The current risk precheck
// status travels on the event; it advises subscribers, it does not gate.
func (s *AvailabilityService) Publish(ctx context.Context, id uuid.UUID, userID string) (*domain.Availability, error) {
	txn := s.tracer.StartTransaction("publish-availability")
	defer s.tracer.EndTransaction(txn)

	availability, err := s.mutate(ctx, "publish", id, txn, func(a *domain.Availability) ([]domain.Event, error) {
		return a.Publish(userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("availability_id", availability.ID.String()).
		Str("risk_precheck_status", string(availability.RiskPrecheckStatus)).
		Msg("Availability published")

	return availability, nil
}

// Cancel terminally cancels the availability
func (s *AvailabilityService) Cancel(ctx context.Context, id uuid.UUID, reason, userID string) (*domain.Availability, error) {
	txn := s.tracer.StartTransaction("cancel-availability")
	defer s.tracer.EndTransaction(txn)

	availability, err := s.mutate(ctx, "cancel", id, txn, func(a *domain.Availability) ([]domain.Event, error) {
		return a.Cancel(userID, reason)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("availability_id", availability.ID.String()).
		Str("reason", reason).
		Msg("Availability cancelled")

	return availability, nil
}

// RecordSale depletes available quantity after a matched trade
func (s *AvailabilityService) RecordSale(ctx context.Context, id uuid.UUID, in domain.SaleInput, userID string) (*domain.Availability, error) {
	txn := s.tracer.StartTransaction("availability-sale")
	defer s.tracer.EndTransaction(txn)

	availability, err := s.mutate(ctx, "record_sale", id, txn, func(a *domain.Availability) ([]domain.Event, error) {
		return a.RecordSale(in, userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("availability_id", availability.ID.String()).
		Str("quantity", in.Quantity.String()).
		Str("available_quantity", availability.AvailableQuantity.String()).
		Str("status", string(availability.Status)).
		Msg("Availability sale recorded")

	return availability, nil
}

// UpdateRiskPrecheck fetches the seller's financial signals and recomputes
// the advisory risk assessment. Sales value already committed on this
// availability counts as current exposure.
func (s *AvailabilityService) UpdateRiskPrecheck(ctx context.Context, id uuid.UUID, userID string) (*domain.Availability, domain.RiskAssessment, error) {
	txn := s.tracer.StartTransaction("availability-risk-precheck")
	defer s.tracer.EndTransaction(txn)

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.metrics.IncrementOperationError("update_risk_precheck", domain.KindAvailability)
		return nil, domain.RiskAssessment{}, err
	}

	credit, rating, performance := s.fetchSellerMetrics(ctx, txn, current.SellerID)

	var assessment domain.RiskAssessment
	availability, err := s.mutate(ctx, "update_risk_precheck", id, txn, func(a *domain.Availability) ([]domain.Event, error) {
		var events []domain.Event
		assessment, events = a.UpdateRiskPrecheck(credit, rating, performance, a.TotalSalesValue, userID)
		return events, nil
	})
	if err != nil {
		return nil, domain.RiskAssessment{}, err
	}

	s.metrics.IncrementRiskPrecheck(domain.KindAvailability, string(assessment.Status))

	log.Info().
		Str("availability_id", availability.ID.String()).
		Str("status", string(assessment.Status)).
		Str("score", assessment.Score.String()).
		Strs("risk_factors", assessment.RiskFactors).
		Msg("Availability risk precheck updated")

	return availability, assessment, nil
}

// CheckInternalTradeBlock reports whether selling to the buyer branch is
// blocked for this availability.
func (s *AvailabilityService) CheckInternalTradeBlock(ctx context.Context, id uuid.UUID, buyerBranchID uuid.UUID) (bool, error) {
	availability, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return availability.CheckInternalTradeBlock(buyerBranchID), nil
}

// Expire transitions an availability past its EOD cutoff to EXPIRED
func (s *AvailabilityService) Expire(ctx context.Context, id uuid.UUID, now time.Time, userID string) (*domain.Availability, error) {
	txn := s.tracer.StartTransaction("expire-availability")
	defer s.tracer.EndTransaction(txn)

	availability, err := s.mutate(ctx, "expire", id, txn, func(a *domain.Availability) ([]domain.Event, error) {
		return a.Expire(now, userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("availability_id", availability.ID.String()).
		Str("eod_cutoff", availability.EODCutoff.Format(time.RFC3339)).
		Msg("Availability expired")

	return availability, nil
}

// ListExpiryCandidates returns open availabilities whose cutoff has passed
func (s *AvailabilityService) ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Availability, error) {
	return s.repo.ListExpired(ctx, now, limit)
}

// AuditTrail returns the full event history of one availability
func (s *AvailabilityService) AuditTrail(ctx context.Context, id uuid.UUID) ([]domain.Event, error) {
	return s.eventStore.GetByAggregate(ctx, id)
}

func (s *AvailabilityService) mutate(
	ctx context.Context,
	op string,
	id uuid.UUID,
	txn *newrelic.Transaction,
	transition func(*domain.Availability) ([]domain.Event, error),
) (*domain.Availability, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(op, domain.KindAvailability, time.Since(start)) }()

	var availability *domain.Availability
	var events []domain.Event

	err := s.db.Transaction(func(tx *gorm.DB) error {
		span := s.tracer.StartSpan(op, txn)
		defer span.End()

		var err error
		availability, err = s.repo.GetByIDTx(tx, id)
		if err != nil {
			return err
		}

		events, err = transition(availability)
		if err != nil {
			return err
		}

		if err := s.repo.UpdateTx(tx, availability); err != nil {
			return err
		}
		return s.eventStore.AppendTx(tx, events...)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.IncrementOperationError(op, domain.KindAvailability)
		return nil, err
	}

	s.recordEvents(events)
	s.primeCache(ctx, availability)
	return availability, nil
}

func (s *AvailabilityService) fetchSellerMetrics(ctx context.Context, txn *newrelic.Transaction, sellerID uuid.UUID) (*decimal.Decimal, *decimal.Decimal, *int) {
	span := s.tracer.StartSpan("fetch-seller-metrics", txn)
	defer span.End()

	var credit, rating *decimal.Decimal
	var performance *int

	if v, err := s.directory.FetchCreditLimitRemaining(ctx, sellerID); err != nil {
		log.Warn().Err(err).Str("seller_id", sellerID.String()).Msg("Seller credit limit unavailable")
	} else {
		credit = &v
	}

	if v, err := s.directory.FetchRating(ctx, sellerID); err != nil {
		log.Warn().Err(err).Str("seller_id", sellerID.String()).Msg("Seller rating unavailable")
	} else {
		rating = &v
	}

	if v, err := s.directory.FetchPerformanceScore(ctx, sellerID, partners.DeliveryPerformance); err != nil {
		log.Warn().Err(err).Str("seller_id", sellerID.String()).Msg("Seller delivery performance unavailable")
	} else {
		performance = &v
	}

	return credit, rating, performance
}

func (s *AvailabilityService) recordEvents(events []domain.Event) {
	for _, event := range events {
		s.metrics.IncrementEventsAppended(event.EventType)
	}
}

func (s *AvailabilityService) primeCache(ctx context.Context, availability *domain.Availability) {
	if err := s.cache.Set(ctx, cache.AvailabilityCacheKey(availability.ID), availability); err != nil {
		log.Warn().Err(err).Str("availability_id", availability.ID.String()).Msg("Failed to cache availability")
	}
}
