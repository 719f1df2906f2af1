package repository

import (
	"context"
	"time"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleFilter drives the availability search. A non-nil Date excludes
// vehicles already assigned to a requisition on that calendar day.
type VehicleFilter struct {
	Status      string
	Type        string
	MinCapacity int
	Date        *time.Time
}

type VehicleRepository interface {
	Create(ctx context.Context, vehicle *model.Vehicle) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	GetByRegistration(ctx context.Context, registration string) (*model.Vehicle, error)
	List(ctx context.Context, offset, limit int) ([]model.Vehicle, int64, error)
	Search(ctx context.Context, filter VehicleFilter) ([]model.Vehicle, error)
	Update(ctx context.Context, vehicle *model.Vehicle) error
}

type vehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	return GetDB(ctx, r.db).Create(vehicle).Error
}

func (r *vehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := GetDB(ctx, r.db).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "vehicle")
	}
	return &vehicle, nil
}

func (r *vehicleRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := forUpdate(GetDB(ctx, r.db)).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "vehicle")
	}
	return &vehicle, nil
}

func (r *vehicleRepository) GetByRegistration(ctx context.Context, registration string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := GetDB(ctx, r.db).First(&vehicle, "registration_number = ?", registration).Error; err != nil {
		return nil, notFound(err, "vehicle")
	}
	return &vehicle, nil
}

func (r *vehicleRepository) List(ctx context.Context, offset, limit int) ([]model.Vehicle, int64, error) {
	var vehicles []model.Vehicle
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Vehicle{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&vehicles).Error; err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

func (r *vehicleRepository) Search(ctx context.Context, filter VehicleFilter) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle

	query := GetDB(ctx, r.db).Model(&model.Vehicle{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type ILIKE ?", "%"+filter.Type+"%")
	}
	if filter.MinCapacity > 0 {
		query = query.Where("capacity >= ?", filter.MinCapacity)
	}
	if filter.Date != nil {
		start, end := dayBounds(*filter.Date)
		booked := GetDB(ctx, r.db).Model(&model.Requisition{}).
			Select("vehicle_id").
			Where("vehicle_id IS NOT NULL AND date_time_required >= ? AND date_time_required < ?", start, end)
		query = query.Where("id NOT IN (?)", booked)
	}

	if err := query.Order("capacity ASC").Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *vehicleRepository) Update(ctx context.Context, vehicle *model.Vehicle) error {
	return GetDB(ctx, r.db).Save(vehicle).Error
}

// dayBounds returns [00:00, next 00:00) of t's calendar day in t's location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
