package repository

import (
	"context"
	"time"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequisitionSortFields are the columns a caller may order search results by.
var RequisitionSortFields = map[string]bool{
	"created_at":           true,
	"date_time_required":   true,
	"number_of_passengers": true,
	"purpose":              true,
	"status":               true,
}

// RequisitionFilter is a conjunction of optional predicates. Zero values are
// ignored. Department restricts results to requesters of that department.
type RequisitionFilter struct {
	RequesterID   *uuid.UUID
	Purpose       string
	PlacesToVisit string
	PlaceToPickup string
	ContactNumber string
	Passengers    *int
	MinPassengers *int
	MaxPassengers *int
	Date          *time.Time
	StartDate     *time.Time
	EndDate       *time.Time
	Status        string
	Department    string

	SortBy    string // one of RequisitionSortFields, default created_at
	SortOrder string // asc or desc, default desc
	Offset    int
	Limit     int
}

type RequisitionRepository interface {
	Create(ctx context.Context, req *model.Requisition) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	// FindByIDWithRelations loads requester, approvals oldest first, vehicle and driver with its user.
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	ListByRequester(ctx context.Context, userID uuid.UUID) ([]model.Requisition, error)
	ListAll(ctx context.Context, department string) ([]model.Requisition, error)
	Search(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error)
	// FindAssignmentConflicts returns APPROVED requisitions other than excludeID
	// using vehicleID or driverID with a required time strictly inside (from, to).
	FindAssignmentConflicts(ctx context.Context, excludeID, vehicleID, driverID uuid.UUID, from, to time.Time) ([]model.Requisition, error)
	CountUpcomingForVehicle(ctx context.Context, vehicleID uuid.UUID, from time.Time) (int64, error)
	CountUpcomingForDriver(ctx context.Context, driverID uuid.UUID, from time.Time) (int64, error)
	Update(ctx context.Context, req *model.Requisition) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type requisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) RequisitionRepository {
	return &requisitionRepository{db: db}
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Requester").
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("approvals.created_at ASC")
		}).
		Preload("Vehicle").
		Preload("Driver").
		Preload("Driver.User")
}

func byDepartment(department string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if department == "" {
			return db
		}
		return db.Joins("JOIN users ON users.id = requisitions.user_id").
			Where("users.department = ?", department)
	}
}

func (r *requisitionRepository) Create(ctx context.Context, req *model.Requisition) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(req).Error
}

func (r *requisitionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "requisition")
	}
	return &req, nil
}

func (r *requisitionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	if err := forUpdate(GetDB(ctx, r.db)).First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "requisition")
	}
	return &req, nil
}

func (r *requisitionRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	if err := withRelations(GetDB(ctx, r.db)).First(&req, "requisitions.id = ?", id).Error; err != nil {
		return nil, notFound(err, "requisition")
	}
	return &req, nil
}

func (r *requisitionRepository) ListByRequester(ctx context.Context, userID uuid.UUID) ([]model.Requisition, error) {
	var reqs []model.Requisition
	err := withRelations(GetDB(ctx, r.db)).
		Where("requisitions.user_id = ?", userID).
		Order("requisitions.created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *requisitionRepository) ListAll(ctx context.Context, department string) ([]model.Requisition, error) {
	var reqs []model.Requisition
	err := withRelations(GetDB(ctx, r.db)).
		Scopes(byDepartment(department)).
		Order("requisitions.created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *requisitionRepository) Search(ctx context.Context, f RequisitionFilter) ([]model.Requisition, int64, error) {
	var reqs []model.Requisition
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Scopes(byDepartment(f.Department))
		if f.RequesterID != nil {
			db = db.Where("requisitions.user_id = ?", *f.RequesterID)
		}
		if f.Purpose != "" {
			db = db.Where("requisitions.purpose ILIKE ?", "%"+f.Purpose+"%")
		}
		if f.PlacesToVisit != "" {
			db = db.Where("requisitions.places_to_visit ILIKE ?", "%"+f.PlacesToVisit+"%")
		}
		if f.PlaceToPickup != "" {
			db = db.Where("requisitions.place_to_pickup ILIKE ?", "%"+f.PlaceToPickup+"%")
		}
		if f.ContactNumber != "" {
			db = db.Where("requisitions.contact_person_number LIKE ?", "%"+f.ContactNumber+"%")
		}
		if f.Passengers != nil {
			db = db.Where("requisitions.number_of_passengers = ?", *f.Passengers)
		} else {
			if f.MinPassengers != nil {
				db = db.Where("requisitions.number_of_passengers >= ?", *f.MinPassengers)
			}
			if f.MaxPassengers != nil {
				db = db.Where("requisitions.number_of_passengers <= ?", *f.MaxPassengers)
			}
		}
		if f.Date != nil {
			start, end := dayBounds(*f.Date)
			db = db.Where("requisitions.date_time_required >= ? AND requisitions.date_time_required < ?", start, end)
		} else {
			if f.StartDate != nil {
				db = db.Where("requisitions.date_time_required >= ?", *f.StartDate)
			}
			if f.EndDate != nil {
				db = db.Where("requisitions.date_time_required <= ?", *f.EndDate)
			}
		}
		if f.Status != "" {
			db = db.Where("requisitions.status = ?", f.Status)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Requisition{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if !RequisitionSortFields[sortBy] {
		sortBy = "created_at"
	}
	order := clause.OrderByColumn{
		Column: clause.Column{Table: "requisitions", Name: sortBy},
		Desc:   f.SortOrder != "asc",
	}

	fetch := withRelations(db).Scopes(scope).Order(order)
	if f.Limit > 0 {
		fetch = fetch.Offset(f.Offset).Limit(f.Limit)
	}
	if err := fetch.Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

func (r *requisitionRepository) FindAssignmentConflicts(ctx context.Context, excludeID, vehicleID, driverID uuid.UUID, from, to time.Time) ([]model.Requisition, error) {
	var reqs []model.Requisition
	err := GetDB(ctx, r.db).
		Where("id <> ? AND status = ?", excludeID, model.StatusApproved).
		Where("(vehicle_id = ? OR driver_id = ?)", vehicleID, driverID).
		Where("date_time_required > ? AND date_time_required < ?", from, to).
		Order("date_time_required ASC").
		Find(&reqs).Error
	return reqs, err
}

func (r *requisitionRepository) CountUpcomingForVehicle(ctx context.Context, vehicleID uuid.UUID, from time.Time) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Requisition{}).
		Where("vehicle_id = ? AND status = ? AND date_time_required >= ?", vehicleID, model.StatusApproved, from).
		Count(&count).Error
	return count, err
}

func (r *requisitionRepository) CountUpcomingForDriver(ctx context.Context, driverID uuid.UUID, from time.Time) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Requisition{}).
		Where("driver_id = ? AND status = ? AND date_time_required >= ?", driverID, model.StatusApproved, from).
		Count(&count).Error
	return count, err
}

func (r *requisitionRepository) Update(ctx context.Context, req *model.Requisition) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(req).Error
}

func (r *requisitionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := GetDB(ctx, r.db).Model(&model.Requisition{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "requisition")
	}
	return nil
}

func (r *requisitionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Delete(&model.Requisition{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "requisition")
	}
	return nil
}
