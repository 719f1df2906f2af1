package repository

import (
	"context"
	"time"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketSortFields are the columns ticket searches may order by.
var TicketSortFields = map[string]bool{
	"booking_date_time": true,
	"fare":              true,
	"status":            true,
}

// TicketFilter is a conjunction of optional predicates; Date matches the
// booking calendar day.
type TicketFilter struct {
	TripID *uuid.UUID
	UserID *uuid.UUID
	Status string
	Date   *time.Time

	SortBy    string // one of TicketSortFields, default booking_date_time
	SortOrder string // asc or desc, default desc
	Offset    int
	Limit     int
}

type TicketRepository interface {
	Create(ctx context.Context, ticket *model.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	// FindByIDWithRelations loads the holder and the trip with its route, vehicle and driver.
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	ListConfirmedByTrip(ctx context.Context, tripID uuid.UUID) ([]model.Ticket, error)
	Search(ctx context.Context, filter TicketFilter) ([]model.Ticket, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func ticketRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Trip").
		Preload("Trip.Route").
		Preload("Trip.Vehicle").
		Preload("Trip.Driver").
		Preload("Trip.Driver.User")
}

func (r *ticketRepository) Create(ctx context.Context, ticket *model.Ticket) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(ticket).Error
}

func (r *ticketRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := GetDB(ctx, r.db).First(&ticket, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "ticket")
	}
	return &ticket, nil
}

func (r *ticketRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := forUpdate(GetDB(ctx, r.db)).First(&ticket, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "ticket")
	}
	return &ticket, nil
}

func (r *ticketRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := ticketRelations(GetDB(ctx, r.db)).First(&ticket, "tickets.id = ?", id).Error; err != nil {
		return nil, notFound(err, "ticket")
	}
	return &ticket, nil
}

func (r *ticketRepository) ListConfirmedByTrip(ctx context.Context, tripID uuid.UUID) ([]model.Ticket, error) {
	var tickets []model.Ticket
	err := forUpdate(GetDB(ctx, r.db)).
		Where("trip_id = ? AND status = ?", tripID, model.TicketStatusConfirmed).
		Order("booking_date_time ASC").
		Find(&tickets).Error
	return tickets, err
}

func (r *ticketRepository) Search(ctx context.Context, f TicketFilter) ([]model.Ticket, int64, error) {
	var tickets []model.Ticket
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if f.TripID != nil {
			db = db.Where("tickets.trip_id = ?", *f.TripID)
		}
		if f.UserID != nil {
			db = db.Where("tickets.user_id = ?", *f.UserID)
		}
		if f.Status != "" {
			db = db.Where("tickets.status = ?", f.Status)
		}
		if f.Date != nil {
			start, end := dayBounds(*f.Date)
			db = db.Where("tickets.booking_date_time >= ? AND tickets.booking_date_time < ?", start, end)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Ticket{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if !TicketSortFields[sortBy] {
		sortBy = "booking_date_time"
	}
	order := clause.OrderByColumn{
		Column: clause.Column{Table: "tickets", Name: sortBy},
		Desc:   f.SortOrder != "asc",
	}

	fetch := ticketRelations(db).Scopes(scope).Order(order)
	if f.Limit > 0 {
		fetch = fetch.Offset(f.Offset).Limit(f.Limit)
	}
	if err := fetch.Find(&tickets).Error; err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := GetDB(ctx, r.db).Model(&model.Ticket{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "ticket")
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Delete(&model.Ticket{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "ticket")
	}
	return nil
}
