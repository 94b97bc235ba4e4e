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

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/partners"
)

type MockAvailabilityRepository struct {
	mock.Mock
}

func (m *MockAvailabilityRepository) CreateTx(tx *gorm.DB, availability *domain.Availability) error {
	args := m.Called(tx, availability)
	return args.Error(0)
}

func (m *MockAvailabilityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Availability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Availability), args.Error(1)
}

func (m *MockAvailabilityRepository) GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.Availability, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Availability), args.Error(1)
}

func (m *MockAvailabilityRepository) UpdateTx(tx *gorm.DB, availability *domain.Availability) error {
	args := m.Called(tx, availability)
	return args.Error(0)
}

func (m *MockAvailabilityRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Availability, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]domain.Availability), args.Error(1)
}

func TestAvailabilityServiceCreateValidation(t *testing.T) {
	service := &AvailabilityService{
		cache:  disabledCache(),
		tracer: disabledTracer(t),
	}

	_, err := service.Create(context.Background(), domain.NewAvailabilityInput{
		SellerID:      uuid.New(),
		CommodityID:   uuid.New(),
		LocationID:    uuid.New(),
		TotalQuantity: decimal.NewFromInt(-10),
		QuantityUnit:  "MT",
		BasePrice:     decimal.NewFromInt(52000),
		ValidUntil:    time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	}, "trader-2")

	require.Error(t, err)
	require.True(t, domain.IsValidation(err))
}

func TestAvailabilityServiceGet(t *testing.T) {
	availabilityID := uuid.New()
	stored := &domain.Availability{ID: availabilityID, Status: domain.AvailabilityActive}

	mockRepo := new(MockAvailabilityRepository)
	mockRepo.On("GetByID", mock.Anything, availabilityID).Return(stored, nil)

	service := &AvailabilityService{
		repo:   mockRepo,
		cache:  disabledCache(),
		tracer: disabledTracer(t),
	}

	got, err := service.Get(context.Background(), availabilityID)
	require.NoError(t, err)
	require.Equal(t, availabilityID, got.ID)
	mockRepo.AssertExpectations(t)
}

func TestAvailabilityServiceGetNotFound(t *testing.T) {
	mockRepo := new(MockAvailabilityRepository)
	mockRepo.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	service := &AvailabilityService{
		repo:   mockRepo,
		cache:  disabledCache(),
		tracer: disabledTracer(t),
	}

	_, err := service.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAvailabilityServiceInternalTradeBlock(t *testing.T) {
	branchID := uuid.New()
	availabilityID := uuid.New()
	stored := &domain.Availability{
		ID:                 availabilityID,
		SellerBranchID:     &branchID,
		BlockedForBranches: true,
	}

	mockRepo := new(MockAvailabilityRepository)
	mockRepo.On("GetByID", mock.Anything, availabilityID).Return(stored, nil)

	service := &AvailabilityService{
		repo:   mockRepo,
		cache:  disabledCache(),
		tracer: disabledTracer(t),
	}

	blocked, err := service.CheckInternalTradeBlock(context.Background(), availabilityID, branchID)
	require.NoError(t, err)
	require.True(t, blocked)

	blocked, err = service.CheckInternalTradeBlock(context.Background(), availabilityID, uuid.New())
	require.NoError(t, err)
	require.False(t, blocked)
}

// Seller precheck uses delivery performance, not payment history.
func TestFetchSellerMetricsUsesDeliveryPerformance(t *testing.T) {
	sellerID := uuid.New()
	credit := decimal.NewFromInt(50000000)
	rating := decimal.RequireFromString("4.5")

	mockDir := new(MockDirectory)
	mockDir.On("FetchCreditLimitRemaining", mock.Anything, sellerID).Return(credit, nil)
	mockDir.On("FetchRating", mock.Anything, sellerID).Return(rating, nil)
	mockDir.On("FetchPerformanceScore", mock.Anything, sellerID, partners.DeliveryPerformance).
		Return(95, nil)

	service := &AvailabilityService{
		directory: mockDir,
		tracer:    disabledTracer(t),
	}

	gotCredit, gotRating, gotPerformance := service.fetchSellerMetrics(context.Background(), nil, sellerID)
	require.NotNil(t, gotCredit)
	require.True(t, gotCredit.Equal(credit))
	require.NotNil(t, gotRating)
	require.True(t, gotRating.Equal(rating))
	require.NotNil(t, gotPerformance)
	require.Equal(t, 95, *gotPerformance)
	mockDir.AssertExpectations(t)
}

func TestFetchSellerMetricsDegradation(t *testing.T) {
	sellerID := uuid.New()

	mockDir := new(MockDirectory)
	mockDir.On("FetchCreditLimitRemaining", mock.Anything, sellerID).
		Return(decimal.Zero, partners.ErrMetricUnavailable)
	mockDir.On("FetchRating", mock.Anything, sellerID).
		Return(decimal.Zero, partners.ErrMetricUnavailable)
	mockDir.On("FetchPerformanceScore", mock.Anything, sellerID, partners.DeliveryPerformance).
		Return(0, partners.ErrMetricUnavailable)

	service := &AvailabilityService{
		directory: mockDir,
		tracer:    disabledTracer(t),
	}

	gotCredit, gotRating, gotPerformance := service.fetchSellerMetrics(context.Background(), nil, sellerID)
	require.Nil(t, gotCredit)
	require.Nil(t, gotRating)
	require.Nil(t, gotPerformance)
}

func TestAvailabilityServiceListExpiryCandidates(t *testing.T) {
	now := time.Now().UTC()
	expired := []domain.Availability{{ID: uuid.New(), Status: domain.AvailabilityActive}}

	mockRepo := new(MockAvailabilityRepository)
	mockRepo.On("ListExpired", mock.Anything, now, 500).Return(expired, nil)

	service := &AvailabilityService{repo: mockRepo, tracer: disabledTracer(t)}

	got, err := service.ListExpiryCandidates(context.Background(), now, 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	mockRepo.AssertExpectations(t)
}
