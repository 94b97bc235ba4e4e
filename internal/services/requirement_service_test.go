package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/cache"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/eventstore"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/partners"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/tracing"
)

// Mock repositories for testing
type MockRequirementRepository struct {
	mock.Mock
}

func (m *MockRequirementRepository) CreateTx(tx *gorm.DB, requirement *domain.Requirement) error {
	args := m.Called(tx, requirement)
	return args.Error(0)
}

func (m *MockRequirementRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Requirement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Requirement), args.Error(1)
}

func (m *MockRequirementRepository) GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.Requirement, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Requirement), args.Error(1)
}

func (m *MockRequirementRepository) UpdateTx(tx *gorm.DB, requirement *domain.Requirement) error {
	args := m.Called(tx, requirement)
	return args.Error(0)
}

func (m *MockRequirementRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Requirement, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]domain.Requirement), args.Error(1)
}

// Mock event store for testing
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) AppendTx(tx *gorm.DB, events ...domain.Event) error {
	args := m.Called(tx, events)
	return args.Error(0)
}

func (m *MockEventStore) Append(ctx context.Context, events ...domain.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockEventStore) GetByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error) {
	args := m.Called(ctx, aggregateID)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventStore) GetByUser(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventStore) GetByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]domain.Event, error) {
	args := m.Called(ctx, from, to, limit)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventStore) CountByAggregate(ctx context.Context, aggregateID uuid.UUID) (int64, error) {
	args := m.Called(ctx, aggregateID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEventStore) ListUnpublished(ctx context.Context, limit int) ([]eventstore.EventRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]eventstore.EventRecord), args.Error(1)
}

func (m *MockEventStore) MarkPublished(ctx context.Context, recordID uint) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

func (m *MockEventStore) MarkPublishFailed(ctx context.Context, recordID uint, publishErr error) error {
	args := m.Called(ctx, recordID, publishErr)
	return args.Error(0)
}

// Mock partner directory for testing
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FetchCreditLimitRemaining(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, partnerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDirectory) FetchRating(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, partnerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDirectory) FetchPerformanceScore(ctx context.Context, partnerID uuid.UUID, kind partners.PerformanceKind) (int, error) {
	args := m.Called(ctx, partnerID, kind)
	return args.Get(0).(int), args.Error(1)
}

func disabledTracer(t *testing.T) tracing.Tracer {
	t.Helper()
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)
	return tracer
}

func disabledCache() *cache.RedisCache {
	return cache.NewRedisCache(config.RedisConfig{Enabled: false})
}

func TestRequirementServiceCreateValidation(t *testing.T) {
	service := &RequirementService{
		cache:   disabledCache(),
		tracer:  disabledTracer(t),
		metrics: nil,
	}

	_, err := service.Create(context.Background(), domain.NewRequirementInput{
		BuyerID: uuid.New(),
		// commodity missing
		MinQuantity:      decimal.NewFromInt(100),
		MaxQuantity:      decimal.NewFromInt(500),
		QuantityUnit:     "MT",
		MaxBudgetPerUnit: decimal.NewFromInt(76500),
		ValidUntil:       time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	}, "trader-1")

	require.Error(t, err)
	require.True(t, domain.IsValidation(err))
}

func TestRequirementServiceGet(t *testing.T) {
	requirementID := uuid.New()
	stored := &domain.Requirement{ID: requirementID, Status: domain.RequirementActive}

	mockRepo := new(MockRequirementRepository)
	mockRepo.On("GetByID", mock.Anything, requirementID).Return(stored, nil)

	service := &RequirementService{
		repo:   mockRepo,
		cache:  disabledCache(),
		tracer: disabledTracer(t),
	}

	got, err := service.Get(context.Background(), requirementID)
	require.NoError(t, err)
	require.Equal(t, requirementID, got.ID)
	mockRepo.AssertExpectations(t)
}

func TestRequirementServiceGetNotFound(t *testing.T) {
	mockRepo := new(MockRequirementRepository)
	mockRepo.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	service := &RequirementService{
		repo:   mockRepo,
		cache:  disabledCache(),
		tracer: disabledTracer(t),
	}

	_, err := service.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequirementServiceInternalTradeBlock(t *testing.T) {
	branchID := uuid.New()
	requirementID := uuid.New()
	stored := &domain.Requirement{
		ID:                    requirementID,
		BuyerBranchID:         &branchID,
		BlockedInternalTrades: true,
	}

	mockRepo := new(MockRequirementRepository)
	mockRepo.On("GetByID", mock.Anything, requirementID).Return(stored, nil)

	service := &RequirementService{
		repo:   mockRepo,
		cache:  disabledCache(),
		tracer: disabledTracer(t),
	}

	blocked, err := service.CheckInternalTradeBlock(context.Background(), requirementID, branchID)
	require.NoError(t, err)
	require.True(t, blocked)

	blocked, err = service.CheckInternalTradeBlock(context.Background(), requirementID, uuid.New())
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestFetchBuyerMetricsDegradation(t *testing.T) {
	buyerID := uuid.New()
	rating := decimal.RequireFromString("4.2")

	mockDir := new(MockDirectory)
	mockDir.On("FetchCreditLimitRemaining", mock.Anything, buyerID).
		Return(decimal.Zero, partners.ErrMetricUnavailable)
	mockDir.On("FetchRating", mock.Anything, buyerID).Return(rating, nil)
	mockDir.On("FetchPerformanceScore", mock.Anything, buyerID, partners.PaymentPerformance).
		Return(85, nil)

	service := &RequirementService{
		directory: mockDir,
		tracer:    disabledTracer(t),
	}

	credit, gotRating, performance := service.fetchBuyerMetrics(context.Background(), nil, buyerID)
	require.Nil(t, credit)
	require.NotNil(t, gotRating)
	require.True(t, gotRating.Equal(rating))
	require.NotNil(t, performance)
	require.Equal(t, 85, *performance)
	mockDir.AssertExpectations(t)
}

func TestRequirementServiceListExpiryCandidates(t *testing.T) {
	now := time.Now().UTC()
	expired := []domain.Requirement{{ID: uuid.New(), Status: domain.RequirementActive}}

	mockRepo := new(MockRequirementRepository)
	mockRepo.On("ListExpired", mock.Anything, now, 500).Return(expired, nil)

	service := &RequirementService{repo: mockRepo, tracer: disabledTracer(t)}

	got, err := service.ListExpiryCandidates(context.Background(), now, 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	mockRepo.AssertExpectations(t)
}

func TestRequirementServiceAuditTrail(t *testing.T) {
	requirementID := uuid.New()
	history := []domain.Event{
		domain.NewEvent(domain.EventRequirementCreated, requirementID, domain.KindRequirement, "trader-1", nil),
		domain.NewEvent(domain.EventRequirementPublished, requirementID, domain.KindRequirement, "trader-1", nil),
	}

	mockStore := new(MockEventStore)
	mockStore.On("GetByAggregate", mock.Anything, requirementID).Return(history, nil)

	service := &RequirementService{eventStore: mockStore, tracer: disabledTracer(t)}

	events, err := service.AuditTrail(context.Background(), requirementID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventRequirementCreated, events[0].EventType)
	mockStore.AssertExpectations(t)
}
