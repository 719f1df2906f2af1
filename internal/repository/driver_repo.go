package repository

import (
	"context"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DriverRepository interface {
	Create(ctx context.Context, driver *model.Driver) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Driver, error)
	// GetByIDForUpdate locks the driver row only; User is not preloaded.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Driver, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Driver, error)
	GetByLicense(ctx context.Context, license string) (*model.Driver, error)
	List(ctx context.Context, status string, offset, limit int) ([]model.Driver, int64, error)
	Update(ctx context.Context, driver *model.Driver) error
}

type driverRepository struct {
	db *gorm.DB
}

func NewDriverRepository(db *gorm.DB) DriverRepository {
	return &driverRepository{db: db}
}

func (r *driverRepository) Create(ctx context.Context, driver *model.Driver) error {
	return GetDB(ctx, r.db).Omit("User").Create(driver).Error
}

func (r *driverRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Driver, error) {
	var driver model.Driver
	if err := GetDB(ctx, r.db).Preload("User").First(&driver, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "driver")
	}
	return &driver, nil
}

func (r *driverRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Driver, error) {
	var driver model.Driver
	if err := forUpdate(GetDB(ctx, r.db)).First(&driver, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "driver")
	}
	return &driver, nil
}

func (r *driverRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Driver, error) {
	var driver model.Driver
	if err := GetDB(ctx, r.db).First(&driver, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, "driver")
	}
	return &driver, nil
}

func (r *driverRepository) GetByLicense(ctx context.Context, license string) (*model.Driver, error) {
	var driver model.Driver
	if err := GetDB(ctx, r.db).First(&driver, "license_number = ?", license).Error; err != nil {
		return nil, notFound(err, "driver")
	}
	return &driver, nil
}

func (r *driverRepository) List(ctx context.Context, status string, offset, limit int) ([]model.Driver, int64, error) {
	var drivers []model.Driver
	var total int64

	db := GetDB(ctx, r.db)
	count := db.Model(&model.Driver{})
	fetch := db.Preload("User")
	if status != "" {
		count = count.Where("status = ?", status)
		fetch = fetch.Where("status = ?", status)
	}

	if err := count.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := fetch.Order("created_at DESC").Offset(offset).Limit(limit).Find(&drivers).Error; err != nil {
		return nil, 0, err
	}
	return drivers, total, nil
}

func (r *driverRepository) Update(ctx context.Context, driver *model.Driver) error {
	return GetDB(ctx, r.db).Omit("User").Save(driver).Error
}
