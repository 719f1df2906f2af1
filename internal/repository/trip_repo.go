package repository

import (
	"context"
	"time"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TripSortFields are the columns trip searches may order by.
var TripSortFields = map[string]bool{
	"created_at":          true,
	"scheduled_date_time": true,
	"available_seats":     true,
	"status":              true,
}

// TripFilter is a conjunction of optional predicates; Date matches the
// scheduled calendar day.
type TripFilter struct {
	RouteID   *uuid.UUID
	VehicleID *uuid.UUID
	DriverID  *uuid.UUID
	Status    string
	Date      *time.Time

	SortBy    string // one of TripSortFields, default scheduled_date_time
	SortOrder string // asc or desc, default asc
	Offset    int
	Limit     int
}

type TripRepository interface {
	Create(ctx context.Context, trip *model.Trip) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Trip, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Trip, error)
	// FindByIDWithRelations loads route, vehicle, driver with its user and tickets.
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Trip, error)
	Search(ctx context.Context, filter TripFilter) ([]model.Trip, int64, error)
	Update(ctx context.Context, trip *model.Trip) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type tripRepository struct {
	db *gorm.DB
}

func NewTripRepository(db *gorm.DB) TripRepository {
	return &tripRepository{db: db}
}

func tripRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Route").
		Preload("Vehicle").
		Preload("Driver").
		Preload("Driver.User").
		Preload("Tickets", func(db *gorm.DB) *gorm.DB {
			return db.Order("tickets.booking_date_time ASC")
		})
}

func (r *tripRepository) Create(ctx context.Context, trip *model.Trip) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(trip).Error
}

func (r *tripRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Trip, error) {
	var trip model.Trip
	if err := GetDB(ctx, r.db).First(&trip, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "trip")
	}
	return &trip, nil
}

func (r *tripRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Trip, error) {
	var trip model.Trip
	if err := forUpdate(GetDB(ctx, r.db)).First(&trip, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "trip")
	}
	return &trip, nil
}

func (r *tripRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Trip, error) {
	var trip model.Trip
	if err := tripRelations(GetDB(ctx, r.db)).First(&trip, "trips.id = ?", id).Error; err != nil {
		return nil, notFound(err, "trip")
	}
	return &trip, nil
}

func (r *tripRepository) Search(ctx context.Context, f TripFilter) ([]model.Trip, int64, error) {
	var trips []model.Trip
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if f.RouteID != nil {
			db = db.Where("trips.route_id = ?", *f.RouteID)
		}
		if f.VehicleID != nil {
			db = db.Where("trips.vehicle_id = ?", *f.VehicleID)
		}
		if f.DriverID != nil {
			db = db.Where("trips.driver_id = ?", *f.DriverID)
		}
		if f.Status != "" {
			db = db.Where("trips.status = ?", f.Status)
		}
		if f.Date != nil {
			start, end := dayBounds(*f.Date)
			db = db.Where("trips.scheduled_date_time >= ? AND trips.scheduled_date_time < ?", start, end)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Trip{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if !TripSortFields[sortBy] {
		sortBy = "scheduled_date_time"
	}
	order := clause.OrderByColumn{
		Column: clause.Column{Table: "trips", Name: sortBy},
		Desc:   f.SortOrder == "desc",
	}

	fetch := tripRelations(db).Scopes(scope).Order(order)
	if f.Limit > 0 {
		fetch = fetch.Offset(f.Offset).Limit(f.Limit)
	}
	if err := fetch.Find(&trips).Error; err != nil {
		return nil, 0, err
	}
	return trips, total, nil
}

func (r *tripRepository) Update(ctx context.Context, trip *model.Trip) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(trip).Error
}

func (r *tripRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Delete(&model.Trip{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "trip")
	}
	return nil
}
