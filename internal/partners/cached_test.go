package partners

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/cache"
)

// Mock directory for testing
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

func (m *MockDirectory) FetchPerformanceScore(ctx context.Context, partnerID uuid.UUID, kind PerformanceKind) (int, error) {
	args := m.Called(ctx, partnerID, kind)
	return args.Get(0).(int), args.Error(1)
}

func disabledCache() *cache.RedisCache {
	return cache.NewRedisCache(config.RedisConfig{Enabled: false})
}

func TestCachedPassThrough(t *testing.T) {
	partnerID := uuid.New()
	credit := decimal.RequireFromString("10000000")
	rating := decimal.RequireFromString("4.5")

	mockDir := new(MockDirectory)
	mockDir.On("FetchCreditLimitRemaining", mock.Anything, partnerID).Return(credit, nil)
	mockDir.On("FetchRating", mock.Anything, partnerID).Return(rating, nil)
	mockDir.On("FetchPerformanceScore", mock.Anything, partnerID, DeliveryPerformance).Return(95, nil)

	dir := NewCached(mockDir, disabledCache())
	ctx := context.Background()

	gotCredit, err := dir.FetchCreditLimitRemaining(ctx, partnerID)
	require.NoError(t, err)
	require.True(t, gotCredit.Equal(credit))

	gotRating, err := dir.FetchRating(ctx, partnerID)
	require.NoError(t, err)
	require.True(t, gotRating.Equal(rating))

	gotScore, err := dir.FetchPerformanceScore(ctx, partnerID, DeliveryPerformance)
	require.NoError(t, err)
	require.Equal(t, 95, gotScore)

	mockDir.AssertExpectations(t)
}

func TestCachedPropagatesFetchError(t *testing.T) {
	dir := NewCached(Unavailable{}, disabledCache())
	ctx := context.Background()
	partnerID := uuid.New()

	_, err := dir.FetchCreditLimitRemaining(ctx, partnerID)
	require.ErrorIs(t, err, ErrMetricUnavailable)

	_, err = dir.FetchRating(ctx, partnerID)
	require.ErrorIs(t, err, ErrMetricUnavailable)

	_, err = dir.FetchPerformanceScore(ctx, partnerID, PaymentPerformance)
	require.ErrorIs(t, err, ErrMetricUnavailable)
}
