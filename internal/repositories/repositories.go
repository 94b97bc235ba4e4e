package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
)

// RequirementRepository provides access to requirement rows
type RequirementRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewRequirementRepository creates a new requirement repository
func NewRequirementRepository(db *gorm.DB, readOnlyDB *gorm.DB) *RequirementRepository {
	return &RequirementRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// CreateTx inserts a new requirement within the caller's transaction
func (r *RequirementRepository) CreateTx(tx *gorm.DB, requirement *domain.Requirement) error {
	if err := tx.Create(requirement).Error; err != nil {
		return errors.Wrap(err, "failed to create requirement")
	}
	return nil
}

// GetByID gets a requirement by id
func (r *RequirementRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Requirement, error) {
	var requirement domain.Requirement
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&requirement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get requirement")
	}
	return &requirement, nil
}

// GetByIDTx gets a requirement from the write database within the caller's
// transaction, ahead of a versioned update
func (r *RequirementRepository) GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.Requirement, error) {
	var requirement domain.Requirement
	err := tx.Where("id = ?", id).First(&requirement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get requirement")
	}
	return &requirement, nil
}

// UpdateTx persists the aggregate with an optimistic version check. A stale
// version leaves the row untouched and returns domain.ErrConcurrencyConflict.
func (r *RequirementRepository) UpdateTx(tx *gorm.DB, requirement *domain.Requirement) error {
	currentVersion := requirement.Version
	requirement.Version = currentVersion + 1

	result := tx.Model(&domain.Requirement{}).
		Where("id = ? AND version = ?", requirement.ID, currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(requirement)
	if result.Error != nil {
		requirement.Version = currentVersion
		return errors.Wrap(result.Error, "failed to update requirement")
	}
	if result.RowsAffected == 0 {
		requirement.Version = currentVersion
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// ListExpired returns open requirements whose EOD cutoff has passed
func (r *RequirementRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Requirement, error) {
	var requirements []domain.Requirement
	err := r.readOnlyDB.WithContext(ctx).
		Where("status IN ? AND eod_cutoff <= ?", domain.OpenRequirementStatuses, now).
		Order("eod_cutoff ASC").
		Limit(limit).
		Find(&requirements).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list expired requirements")
	}
	return requirements, nil
}

// AvailabilityRepository provides access to availability rows
type AvailabilityRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAvailabilityRepository creates a new availability repository
func NewAvailabilityRepository(db *gorm.DB, readOnlyDB *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// CreateTx inserts a new availability within the caller's transaction
func (r *AvailabilityRepository) CreateTx(tx *gorm.DB, availability *domain.Availability) error {
	if err := tx.Create(availability).Error; err != nil {
		return errors.Wrap(err, "failed to create availability")
	}
	return nil
}

// GetByID gets an availability by id
func (r *AvailabilityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Availability, error) {
	var availability domain.Availability
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&availability).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get availability")
	}
	return &availability, nil
}

// GetByIDTx gets an availability from the write database within the caller's
// transaction, ahead of a versioned update
func (r *AvailabilityRepository) GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.Availability, error) {
	var availability domain.Availability
	err := tx.Where("id = ?", id).First(&availability).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get availability")
	}
	return &availability, nil
}

// UpdateTx persists the aggregate with an optimistic version check. A stale
// version leaves the row untouched and returns domain.ErrConcurrencyConflict.
func (r *AvailabilityRepository) UpdateTx(tx *gorm.DB, availability *domain.Availability) error {
	currentVersion := availability.Version
	availability.Version = currentVersion + 1

	result := tx.Model(&domain.Availability{}).
		Where("id = ? AND version = ?", availability.ID, currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(availability)
	if result.Error != nil {
		availability.Version = currentVersion
		return errors.Wrap(result.Error, "failed to update availability")
	}
	if result.RowsAffected == 0 {
		availability.Version = currentVersion
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// ListExpired returns open availabilities whose EOD cutoff has passed
func (r *AvailabilityRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Availability, error) {
	var availabilities []domain.Availability
	err := r.readOnlyDB.WithContext(ctx).
		Where("status IN ? AND eod_cutoff <= ?", domain.OpenAvailabilityStatuses, now).
		Order("eod_cutoff ASC").
		Limit(limit).
		Find(&availabilities).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list expired availabilities")
	}
	return availabilities, nil
}
